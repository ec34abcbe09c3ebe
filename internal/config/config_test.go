package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataFileName != "_variables.yml" || cfg.ConfigFileName != "_quarto.yml" {
		t.Errorf("file names = %q / %q", cfg.DataFileName, cfg.ConfigFileName)
	}
	if !cfg.HighlightUnresolved || cfg.ScrollDebounceMS != 100 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	cfg, err := Load(map[string]any{
		"scroll_debounce_ms":   250,
		"highlight_unresolved": false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScrollDebounceMS != 250 || cfg.HighlightUnresolved {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.DataFileName != "_variables.yml" || cfg.NotifyWindowSeconds != 60 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON(strings.NewReader(`{"data_file_name": "vars.yml"}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataFileName != "vars.yml" {
		t.Errorf("DataFileName = %q", cfg.DataFileName)
	}
	if cfg.ConfigFileName != "_quarto.yml" {
		t.Errorf("ConfigFileName = %q", cfg.ConfigFileName)
	}
}
