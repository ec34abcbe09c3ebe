package cache

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/varfile"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/writer"
)

var log = commonlog.GetLogger("qvar.cache")

// defaultNotifyWindow limits failure notifications to one per project
// per window.
const defaultNotifyWindow = 60 * time.Second

// Options tune a Store. Zero values select the defaults.
type Options struct {
	Notifier     Notifier
	Snapshots    *SnapshotStore
	TTL          time.Duration
	NotifyWindow time.Duration
}

// Store is the process-wide variables cache, constructed once and
// handed to all consumers. It is the sole writer of its own maps.
type Store struct {
	fs        fsio.FileSystem
	writer    *writer.Writer
	notifier  Notifier
	snapshots *SnapshotStore
	ttl       time.Duration
	window    time.Duration

	version atomic.Uint64

	mu           sync.Mutex
	entries      map[string]*Entry
	projects     map[string]resolver.Project
	loading      map[string]*inflight
	lastNotified map[string]time.Time
}

// inflight is one in-progress load. Waiters block on done and then
// read the shared result.
type inflight struct {
	done  chan struct{}
	entry *Entry
	err   error
}

func NewStore(fs fsio.FileSystem, w *writer.Writer, opts Options) *Store {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.NotifyWindow == 0 {
		opts.NotifyWindow = defaultNotifyWindow
	}
	return &Store{
		fs:           fs,
		writer:       w,
		notifier:     opts.Notifier,
		snapshots:    opts.Snapshots,
		ttl:          opts.TTL,
		window:       opts.NotifyWindow,
		entries:      make(map[string]*Entry),
		projects:     make(map[string]resolver.Project),
		loading:      make(map[string]*inflight),
		lastNotified: make(map[string]time.Time),
	}
}

// LoadVariables returns the cached entry for the project, reading and
// parsing the data file only when no valid entry exists. Loads are
// single-flight per project: a request issued while another is in
// progress waits for and shares its result.
func (s *Store) LoadVariables(project resolver.Project) (*Entry, error) {
	s.mu.Lock()
	if entry, ok := s.entries[project.Root]; ok {
		if s.ttl == 0 || time.Since(entry.loadedAt) <= s.ttl {
			s.mu.Unlock()
			return entry, nil
		}
		delete(s.entries, project.Root)
	}
	if fl, ok := s.loading[project.Root]; ok {
		s.mu.Unlock()
		<-fl.done
		return fl.entry, fl.err
	}
	fl := &inflight{done: make(chan struct{})}
	s.loading[project.Root] = fl
	s.mu.Unlock()

	entry, err := s.load(project)

	s.mu.Lock()
	delete(s.loading, project.Root)
	if entry != nil {
		s.entries[project.Root] = entry
		s.projects[project.Root] = project
	}
	fl.entry, fl.err = entry, err
	close(fl.done)
	s.mu.Unlock()

	if err != nil {
		s.notifyFailure(project, err)
		return nil, err
	}
	return entry, nil
}

// load performs the file read and parse outside the store lock.
func (s *Store) load(project resolver.Project) (*Entry, error) {
	modTime, statErr := s.fs.ModTime(project.DataFilePath)

	var raw []byte
	if s.snapshots != nil && statErr == nil {
		if content, ok := s.snapshots.Lookup(project.Root, modTime); ok {
			log.Debugf("warm start for %s from snapshot", project.Root)
			raw = content
		}
	}
	if raw == nil {
		var err error
		raw, err = s.fs.ReadFile(project.DataFilePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, project.DataFilePath)
		}
		if s.snapshots != nil && statErr == nil {
			if err := s.snapshots.Save(project.Root, project.DataFilePath, modTime, raw); err != nil {
				log.Debugf("snapshot save failed for %s: %s", project.Root, err)
			}
		}
	}

	structure := varfile.Parse(string(raw))
	if structure.DecodeFailed {
		return nil, fmt.Errorf("%w: %s", ErrDecode, project.DataFilePath)
	}
	for _, warning := range structure.Warnings {
		log.Warningf("%s: %s", project.DataFilePath, warning)
	}

	return &Entry{
		Data:         structure.Data,
		Structure:    structure,
		Version:      s.version.Add(1),
		LastModified: modTime,
		loadedAt:     time.Now(),
	}, nil
}

// Get resolves a dotted key to its display text. It returns false the
// moment a segment is missing, the traversal hits a non-container, or
// the project has no cached entry.
func (s *Store) Get(project resolver.Project, dottedKey string) (string, bool) {
	s.mu.Lock()
	entry := s.entries[project.Root]
	s.mu.Unlock()
	if entry == nil {
		return "", false
	}

	container := entry.Data
	segments := strings.Split(dottedKey, ".")
	for i, segment := range segments {
		value, ok := container[segment]
		if !ok {
			return "", false
		}
		if i == len(segments)-1 {
			return displayText(value), true
		}
		container, ok = value.(map[string]any)
		if !ok {
			return "", false
		}
	}
	return "", false
}

// GetStructure returns the cached parse for the project, or nil.
func (s *Store) GetStructure(project resolver.Project) *varfile.Structure {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry := s.entries[project.Root]; entry != nil {
		return entry.Structure
	}
	return nil
}

// UpdateVariable writes a new value through the Writer and eagerly
// reloads the project so subsequent reads are consistent. On failure
// the existing cache is left untouched.
func (s *Store) UpdateVariable(project resolver.Project, dottedKey string, newValue any) error {
	entry, err := s.LoadVariables(project)
	if err != nil {
		return err
	}
	if err := s.writer.UpdateVariable(project, entry.Structure, dottedKey, newValue); err != nil {
		return err
	}

	s.InvalidateProject(project.Root)
	if _, err := s.LoadVariables(project); err != nil {
		return fmt.Errorf("reload after write failed: %w", err)
	}
	return nil
}

// GetCurrentVersion exposes the monotonically increasing counter so
// dependents can detect change without comparing values.
func (s *Store) GetCurrentVersion() uint64 {
	return s.version.Load()
}

// InvalidateProject evicts one project's entry.
func (s *Store) InvalidateProject(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, root)
}

// ClearCache evicts every entry.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

// HandleFileEvent refreshes any project whose data file matches path.
// The refresh is push-based: the entry is replaced immediately, not on
// the next read.
func (s *Store) HandleFileEvent(path string) {
	s.mu.Lock()
	var affected []resolver.Project
	for root, project := range s.projects {
		if project.DataFilePath == path {
			delete(s.entries, root)
			affected = append(affected, project)
		}
	}
	s.mu.Unlock()

	for _, project := range affected {
		if _, err := s.LoadVariables(project); err != nil {
			log.Debugf("refresh after change failed for %s: %s", project.Root, err)
		}
	}
}

// DataFilePaths lists the data files of every project seen so far.
func (s *Store) DataFilePaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.projects))
	for _, project := range s.projects {
		paths = append(paths, project.DataFilePath)
	}
	return paths
}

// notifyFailure surfaces a load failure to the user, at most once per
// project per notification window.
func (s *Store) notifyFailure(project resolver.Project, err error) {
	s.mu.Lock()
	last, seen := s.lastNotified[project.Root]
	if seen && time.Since(last) < s.window {
		s.mu.Unlock()
		return
	}
	s.lastNotified[project.Root] = time.Now()
	s.mu.Unlock()

	s.notifier.Notify(fmt.Sprintf("Quarto variables unavailable: %s", err))
}

// displayText coerces a value to the text form decorations show.
// Nested objects are summarized, not traversed.
func displayText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, element := range v {
			parts[i] = displayText(element)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return "[object]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
