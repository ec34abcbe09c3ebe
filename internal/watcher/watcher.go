// Package watcher polls variables files for external modification and
// feeds change events into the cache.
package watcher

import (
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
)

var log = commonlog.GetLogger("qvar.watcher")

const defaultInterval = 2 * time.Second

// Source lists the files to watch.
type Source interface {
	DataFilePaths() []string
}

// Watcher compares file modification times on a fixed interval and
// calls onChange for every file whose mtime moved. Editors save through
// their own buffers, so polling covers writes the server never sees.
type Watcher struct {
	fs       fsio.FileSystem
	source   Source
	onChange func(path string)
	interval time.Duration

	mu    sync.Mutex
	seen  map[string]time.Time
	stop  chan struct{}
	done  chan struct{}
	alive bool
}

func New(fs fsio.FileSystem, source Source, onChange func(path string), interval time.Duration) *Watcher {
	if interval == 0 {
		interval = defaultInterval
	}
	return &Watcher{
		fs:       fs,
		source:   source,
		onChange: onChange,
		interval: interval,
		seen:     make(map[string]time.Time),
	}
}

// Start launches the polling loop. Calling Start on a running watcher
// is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.alive {
		return
	}
	w.alive = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run(w.stop, w.done)
}

// Stop terminates the loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.alive {
		w.mu.Unlock()
		return
	}
	w.alive = false
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done
}

func (w *Watcher) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Poll()
		case <-stop:
			return
		}
	}
}

// Poll performs one comparison pass. Exposed so callers can force a
// check without waiting out the interval.
func (w *Watcher) Poll() {
	for _, path := range w.source.DataFilePaths() {
		modTime, err := w.fs.ModTime(path)
		if err != nil {
			// Deleted or unreadable; forget it so reappearance fires.
			w.mu.Lock()
			delete(w.seen, path)
			w.mu.Unlock()
			continue
		}

		w.mu.Lock()
		previous, known := w.seen[path]
		w.seen[path] = modTime
		w.mu.Unlock()

		if known && !modTime.Equal(previous) {
			log.Debugf("detected change: %s", path)
			w.onChange(path)
		}
	}
}
