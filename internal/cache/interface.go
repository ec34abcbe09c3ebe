// Package cache memoizes parsed variables per project and owns every
// mutation of the parsed data. Consumers receive read-only snapshots;
// changes go through UpdateVariable, which enforces reload-after-write.
package cache

import (
	"errors"
	"time"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/varfile"
)

// Predefined errors returned by cache operations.
var (
	ErrNotFound = errors.New("cache: variables file not found")
	ErrDecode   = errors.New("cache: variables file could not be decoded")
)

// Entry is one project's cached variables. Callers must treat both
// maps and the structure as read-only snapshots.
type Entry struct {
	Data         map[string]any
	Structure    *varfile.Structure
	Version      uint64
	LastModified time.Time

	loadedAt time.Time
}

// Notifier displays a short user-visible message. The store
// rate-limits calls per project.
type Notifier interface {
	Notify(message string)
}

// NopNotifier drops all messages.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}
