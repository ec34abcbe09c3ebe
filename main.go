// Package main implements the Quarto variables language server.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/server"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var (
	logfile   string
	verbosity int
)

func main() {
	cmd := &cobra.Command{
		Use:   "quarto-variables",
		Short: "Language server for Quarto variable shortcodes",
		Long: `quarto-variables is a language server that resolves ` + "`{{< var key >}}`" + `
shortcodes against a project's _variables.yml. It serves inline value
decorations, lookups and in-place variable edits over stdio.`,
		Example: "quarto-variables --logfile /tmp/qvar.log",
		Args:    cobra.NoArgs,
		RunE:    runServer,
	}
	cmd.Flags().StringVar(&logfile, "logfile", "", "path to log file")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	if err := fang.Execute(
		context.Background(),
		cmd,
		fang.WithVersion(Version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if logfile != "" {
		commonlog.Configure(verbosity, &logfile)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	s, err := server.NewServer()
	if err != nil {
		return err
	}
	return s.RunStdio()
}
