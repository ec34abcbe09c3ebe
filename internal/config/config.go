package config

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type Config struct {
	DataFileName        string `json:"data_file_name"`
	ConfigFileName      string `json:"config_file_name"`
	HighlightUnresolved bool   `json:"highlight_unresolved"`
	ScrollDebounceMS    int    `json:"scroll_debounce_ms"`
	NotifyWindowSeconds int    `json:"notify_window_seconds"`
	CacheTTLSeconds     int    `json:"cache_ttl_seconds"`
	WatchIntervalMS     int    `json:"watch_interval_ms"`
	Snapshots           bool   `json:"snapshots"`
}

var defaultConfig = Config{
	DataFileName:        "_variables.yml",
	ConfigFileName:      "_quarto.yml",
	HighlightUnresolved: true,
	ScrollDebounceMS:    100,
	NotifyWindowSeconds: 60,
	CacheTTLSeconds:     0,
	WatchIntervalMS:     2000,
	Snapshots:           true,
}

// Load merges client-provided settings over the defaults. v is the raw
// initializationOptions value; only fields present in it overwrite.
func Load(v any) (Config, error) {
	cfg := defaultConfig
	if v == nil {
		return cfg, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, nil
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := defaultConfig

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) ScrollDebounce() time.Duration {
	return time.Duration(c.ScrollDebounceMS) * time.Millisecond
}

func (c Config) NotifyWindow() time.Duration {
	return time.Duration(c.NotifyWindowSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMS) * time.Millisecond
}
