// Package fsio abstracts the file access the host grants to the core:
// whole-file reads, whole-file writes and modification times. Tests and
// embedding hosts inject their own implementation.
package fsio

import (
	"os"
	"time"
)

// FileSystem is the file-access capability required from the host.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	ModTime(path string) (time.Time, error)
	Exists(path string) bool
}

// OS implements FileSystem against the real filesystem.
type OS struct{}

func NewOS() OS {
	return OS{}
}

func (OS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OS) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func (OS) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (OS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
