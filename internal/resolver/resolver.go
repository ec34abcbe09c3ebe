// Package resolver maps a document path onto its Quarto project: the
// nearest ancestor directory containing the project config file.
package resolver

import (
	"path/filepath"
	"sync"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
)

// Project identifies one logical project. All documents under Root
// share its variables file.
type Project struct {
	Root           string
	DataFilePath   string
	ConfigFilePath string
}

// Resolver supplies the document-to-project mapping. The core treats
// it as an injected lookup.
type Resolver interface {
	ResolveDocument(path string) (Project, bool)
}

// Filesystem resolves projects by walking a document's ancestors until
// it finds the config file. Lookups are memoized per directory.
type Filesystem struct {
	fs         fsio.FileSystem
	configName string
	dataName   string

	mu   sync.RWMutex
	memo map[string]*Project // directory -> project, nil when none found
}

func NewFilesystem(fs fsio.FileSystem, configName, dataName string) *Filesystem {
	return &Filesystem{
		fs:         fs,
		configName: configName,
		dataName:   dataName,
		memo:       make(map[string]*Project),
	}
}

// ResolveDocument returns the project governing the document, or false
// when no ancestor carries the config file.
func (r *Filesystem) ResolveDocument(path string) (Project, bool) {
	dir := filepath.Dir(filepath.Clean(path))

	r.mu.RLock()
	if project, ok := r.memo[dir]; ok {
		r.mu.RUnlock()
		if project == nil {
			return Project{}, false
		}
		return *project, true
	}
	r.mu.RUnlock()

	project := r.walkUp(dir)

	r.mu.Lock()
	r.memo[dir] = project
	r.mu.Unlock()

	if project == nil {
		return Project{}, false
	}
	return *project, true
}

// Invalidate clears the memo, forcing fresh ancestor walks. Called
// when project files appear or disappear.
func (r *Filesystem) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo = make(map[string]*Project)
}

func (r *Filesystem) walkUp(dir string) *Project {
	for {
		if r.fs.Exists(filepath.Join(dir, r.configName)) {
			return &Project{
				Root:           dir,
				ConfigFilePath: filepath.Join(dir, r.configName),
				DataFilePath:   filepath.Join(dir, r.dataName),
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
