// Package server wires the variable engine into an LSP transport.
package server

import (
	"sync"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/cache"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/config"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/decoration"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/watcher"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/writer"
)

const serverName = "quarto-variables"

var log = commonlog.GetLogger("qvar.server")

type Server struct {
	handler  *protocol.Handler
	config   config.Config
	notifier *clientNotifier

	fs        fsio.FileSystem
	store     *cache.Store
	writer    *writer.Writer
	resolver  *resolver.Filesystem
	engine    *decoration.Engine
	watcher   *watcher.Watcher
	snapshots *cache.SnapshotStore

	mu   sync.Mutex
	docs map[string]string // path -> full text
}

// NewServer builds the LSP server. Component construction happens in
// initialize, once client settings are known.
func NewServer() (*glspserver.Server, error) {
	s := &Server{
		fs:       fsio.OS{},
		notifier: &clientNotifier{},
		docs:     make(map[string]string),
	}
	s.handler = &protocol.Handler{
		Initialize:              s.initialize,
		Initialized:             s.initialized,
		TextDocumentDidOpen:     s.textDocumentDidOpen,
		TextDocumentDidChange:   s.textDocumentDidChange,
		TextDocumentDidSave:     s.textDocumentDidSave,
		TextDocumentDidClose:    s.textDocumentDidClose,
		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
		Shutdown:                s.shutdown,
	}

	return glspserver.NewServer(s.handler, serverName, false), nil
}
