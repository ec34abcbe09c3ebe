package server

import (
	"encoding/json"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/decoration"
)

const (
	cmdDecorations = "quartoVariables.decorations"
	cmdGet         = "quartoVariables.get"
	cmdUpdate      = "quartoVariables.update"
	cmdAdd         = "quartoVariables.add"
	cmdCreateFile  = "quartoVariables.createFile"
	cmdClearCache  = "quartoVariables.clearCache"
	cmdVersion     = "quartoVariables.version"
)

func commandNames() []string {
	return []string{
		cmdDecorations, cmdGet, cmdUpdate, cmdAdd,
		cmdCreateFile, cmdClearCache, cmdVersion,
	}
}

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	s.notifier.set(context)

	switch params.Command {
	case cmdDecorations:
		return s.cmdDecorations(params.Arguments)
	case cmdGet:
		return s.cmdGet(params.Arguments)
	case cmdUpdate:
		return nil, s.cmdUpdate(params.Arguments)
	case cmdAdd:
		return nil, s.cmdAdd(params.Arguments)
	case cmdCreateFile:
		return nil, s.cmdCreateFile(params.Arguments)
	case cmdClearCache:
		s.store.ClearCache()
		return nil, nil
	case cmdVersion:
		return s.store.GetCurrentVersion(), nil
	}
	return nil, fmt.Errorf("unknown command: %s", params.Command)
}

type decorationsArgs struct {
	URI      protocol.URI `json:"uri"`
	ViewFrom int          `json:"viewFrom"`
	ViewTo   int          `json:"viewTo"`
	Cursor   int          `json:"cursor"`
}

func (s *Server) cmdDecorations(arguments []any) (any, error) {
	var args decorationsArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	path, err := uriToPath(args.URI)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	text, ok := s.docs[path]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("document not open: %s", path)
	}

	from, to := args.ViewFrom, args.ViewTo
	if to <= 0 || to > len(text) {
		to = len(text)
	}
	if from < 0 || from > to {
		from = 0
	}

	return s.engine.Rebuild(decoration.View{
		Path:   path,
		Text:   text[from:to],
		Offset: from,
		Cursor: args.Cursor,
	}), nil
}

type getArgs struct {
	URI protocol.URI `json:"uri"`
	Key string       `json:"key"`
}

type getResult struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

func (s *Server) cmdGet(arguments []any) (any, error) {
	var args getArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	path, err := uriToPath(args.URI)
	if err != nil {
		return nil, err
	}
	project, ok := s.resolver.ResolveDocument(path)
	if !ok {
		return getResult{}, nil
	}
	if _, err := s.store.LoadVariables(project); err != nil {
		return getResult{}, nil
	}
	value, found := s.store.Get(project, args.Key)
	return getResult{Value: value, Found: found}, nil
}

type updateArgs struct {
	URI   protocol.URI `json:"uri"`
	Key   string       `json:"key"`
	Value any          `json:"value"`
}

func (s *Server) cmdUpdate(arguments []any) error {
	var args updateArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return err
	}
	path, err := uriToPath(args.URI)
	if err != nil {
		return err
	}
	project, ok := s.resolver.ResolveDocument(path)
	if !ok {
		return fmt.Errorf("no project for %s", path)
	}
	return s.store.UpdateVariable(project, args.Key, args.Value)
}

type addArgs struct {
	URI     protocol.URI `json:"uri"`
	Section string       `json:"section"`
	Key     string       `json:"key"`
	Value   any          `json:"value"`
}

func (s *Server) cmdAdd(arguments []any) error {
	var args addArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return err
	}
	path, err := uriToPath(args.URI)
	if err != nil {
		return err
	}
	project, ok := s.resolver.ResolveDocument(path)
	if !ok {
		return fmt.Errorf("no project for %s", path)
	}
	entry, err := s.store.LoadVariables(project)
	if err != nil {
		return err
	}
	if err := s.writer.AddVariable(project, entry.Structure, args.Section, args.Key, args.Value); err != nil {
		return err
	}
	s.store.InvalidateProject(project.Root)
	_, err = s.store.LoadVariables(project)
	return err
}

type createFileArgs struct {
	URI protocol.URI `json:"uri"`
}

func (s *Server) cmdCreateFile(arguments []any) error {
	var args createFileArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return err
	}
	path, err := uriToPath(args.URI)
	if err != nil {
		return err
	}
	project, ok := s.resolver.ResolveDocument(path)
	if !ok {
		return fmt.Errorf("no project for %s", path)
	}
	return s.writer.CreateVariablesFile(project)
}

// decodeArgs maps the first positional command argument onto a typed
// struct. Only fields present in the argument are set.
func decodeArgs(arguments []any, target any) error {
	if len(arguments) == 0 {
		return fmt.Errorf("missing command arguments")
	}
	data, err := json.Marshal(arguments[0])
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}
	return nil
}
