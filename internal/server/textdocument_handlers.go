package server

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/decoration"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.notifier.set(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[path] = params.TextDocument.Text
	s.mu.Unlock()

	s.engine.Update(s.fullView(path), decoration.TriggerEdit)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	s.notifier.set(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	// Full sync: the last change event carries the whole document.
	for _, raw := range params.ContentChanges {
		if change, ok := raw.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[path] = change.Text
			s.mu.Unlock()
		}
	}

	s.engine.Update(s.fullView(path), decoration.TriggerEdit)
	return nil
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	s.notifier.set(context)
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	if params.Text != nil {
		s.mu.Lock()
		s.docs[path] = *params.Text
		s.mu.Unlock()
	}

	// Saving the variables file itself refreshes every dependent view.
	if project, ok := s.resolver.ResolveDocument(path); ok && path == project.DataFilePath {
		s.store.HandleFileEvent(path)
	}

	s.engine.Update(s.fullView(path), decoration.TriggerEdit)
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()

	s.engine.CloseView(path)
	return nil
}

// fullView treats the whole stored document as the viewport. Clients
// with real viewport tracking use the decorations command instead.
func (s *Server) fullView(path string) decoration.View {
	s.mu.Lock()
	text := s.docs[path]
	s.mu.Unlock()
	return decoration.View{Path: path, Text: text, Cursor: -1}
}
