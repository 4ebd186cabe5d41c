package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sanjit/redprl-mcp/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the RedPRL language server over stdio",
	RunE:  runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.Options{
		Session:             env.session,
		Runner:              env.runner,
		Debounce:            env.cfg.Editor.Debounce.Duration,
		DiagnosticsOnSave:   env.cfg.Editor.DiagnosticsOnSave,
		DiagnosticsOnChange: env.cfg.Editor.DiagnosticsOnChange,
		Logger:              env.log.Logger,
		Version:             version,
	})
	env.log.Info().Str("binary", env.runner.Binary).Msg("serving LSP on stdio")
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
