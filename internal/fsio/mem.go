package fsio

import (
	"fmt"
	"sync"
	"time"
)

// Mem is an in-memory FileSystem used by tests and by hosts that
// shadow unsaved buffers over the disk.
type Mem struct {
	mu     sync.Mutex
	files  map[string][]byte
	mtimes map[string]time.Time
	reads  map[string]int
}

func NewMem() *Mem {
	return &Mem{
		files:  make(map[string][]byte),
		mtimes: make(map[string]time.Time),
		reads:  make(map[string]int),
	}
}

func (m *Mem) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("mem: file does not exist: %s", path)
	}
	m.reads[path]++
	return append([]byte(nil), data...), nil
}

func (m *Mem) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	m.mtimes[path] = time.Now()
	return nil
}

func (m *Mem) ModTime(path string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.mtimes[path]
	if !ok {
		return time.Time{}, fmt.Errorf("mem: file does not exist: %s", path)
	}
	return t, nil
}

func (m *Mem) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// SetModTime overrides a file's modification time.
func (m *Mem) SetModTime(path string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mtimes[path] = t
}

// ReadCount reports how many times a path has been read.
func (m *Mem) ReadCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[path]
}
