package server

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/cache"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/config"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/decoration"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/watcher"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/writer"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.notifier.set(context)

	cfg, err := config.Load(params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	s.config = cfg
	log.Infof("config: %+v", cfg)

	if cfg.Snapshots {
		if stateDir, err := getXDGStateHome(serverName); err == nil {
			dbDir := stateDir
			if params.RootURI != nil {
				if rootURL, err := url.Parse(*params.RootURI); err == nil {
					dbDir = filepath.Join(stateDir, url.PathEscape(rootURL.Path))
				}
			}
			if err := os.MkdirAll(dbDir, 0700); err == nil {
				snapshots, err := cache.OpenSnapshotStore(filepath.Join(dbDir, "snapshots.db"))
				if err != nil {
					log.Warningf("snapshot store unavailable: %s", err)
				} else {
					s.snapshots = snapshots
				}
			}
		}
	}

	s.writer = writer.New(s.fs)
	s.store = cache.NewStore(s.fs, s.writer, cache.Options{
		Notifier:     s.notifier,
		Snapshots:    s.snapshots,
		TTL:          cfg.CacheTTL(),
		NotifyWindow: cfg.NotifyWindow(),
	})
	s.resolver = resolver.NewFilesystem(s.fs, cfg.ConfigFileName, cfg.DataFileName)
	s.engine = decoration.NewEngine(s.store, s.resolver, decoration.Options{
		HighlightUnresolved: cfg.HighlightUnresolved,
		ScrollDebounce:      cfg.ScrollDebounce(),
		Sink:                s.publishDecorations,
	})
	s.watcher = watcher.New(s.fs, s.store, s.store.HandleFileEvent, cfg.WatchInterval())

	syncKind := protocol.TextDocumentSyncKindFull

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: commandNames(),
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	s.notifier.set(context)
	s.watcher.Start()
	log.Info("client initialized")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.snapshots != nil {
		s.snapshots.Close()
	}
	return nil
}

func getXDGStateHome(appName string) (string, error) {
	xdgStateHome := os.Getenv("XDG_STATE_HOME")
	if xdgStateHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		xdgStateHome = filepath.Join(homeDir, ".local", "state")
	}

	appStateDir := filepath.Join(xdgStateHome, appName)
	if err := os.MkdirAll(appStateDir, 0700); err != nil {
		return "", err
	}

	return appStateDir, nil
}
