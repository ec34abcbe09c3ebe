package server

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/decoration"
)

func uriToPath(documentURI protocol.URI) (string, error) {
	parsed, err := url.Parse(documentURI)
	if err != nil {
		return "", fmt.Errorf("failed to parse uri: %w", err)
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme: %s", parsed.Scheme)
	}
	if parsed.Path == "" {
		return documentURI, nil
	}
	return parsed.Path, nil
}

func pathToURI(path string) protocol.URI {
	return (&url.URL{Scheme: "file", Path: path}).String()
}

// clientNotifier forwards messages to the client over window/showMessage.
// It tracks the most recent request context, since notifications can
// originate from background work.
type clientNotifier struct {
	mu  sync.Mutex
	ctx *glsp.Context
}

func (n *clientNotifier) set(ctx *glsp.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctx = ctx
}

func (n *clientNotifier) Notify(message string) {
	n.mu.Lock()
	ctx := n.ctx
	n.mu.Unlock()
	if ctx == nil {
		return
	}
	ctx.Notify("window/showMessage", protocol.ShowMessageParams{
		Type:    protocol.MessageTypeWarning,
		Message: message,
	})
}

// publishDecorations pushes a completed rebuild to the client as a
// custom notification.
func (s *Server) publishDecorations(path string, decorations []decoration.Decoration) {
	s.notifier.mu.Lock()
	ctx := s.notifier.ctx
	s.notifier.mu.Unlock()
	if ctx == nil {
		return
	}
	ctx.Notify("quartoVariables/decorations", decorationsNotification{
		URI:         pathToURI(path),
		Decorations: decorations,
	})
}

type decorationsNotification struct {
	URI         protocol.URI            `json:"uri"`
	Decorations []decoration.Decoration `json:"decorations"`
}
