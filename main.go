package main

// main.go: CLI entrypoint. Without a subcommand it serves MCP over stdio.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sanjit/redprl-mcp/internal/config"
	"github.com/sanjit/redprl-mcp/internal/logging"
	"github.com/sanjit/redprl-mcp/internal/redprl"
)

const version = "0.1.0"

// errFoundErrors makes the process exit non-zero without printing anything
// beyond the diagnostics themselves.
var errFoundErrors = errors.New("errors found")

var rootCmd = &cobra.Command{
	Use:   "redprl-mcp",
	Short: "RedPRL diagnostics, obligations and symbols for agents and editors",
	Long: `redprl-mcp runs the redprl binary on .prl files and reports what it found.
Without a subcommand it serves the MCP tools over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMCP,
}

func main() {
	rootCmd.Version = version
	rootCmd.AddCommand(lspCmd, checkCmd, watchCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to redprl.toml (default ./redprl.toml when present)")
	pf.String("log-level", "", "log level (trace|debug|info|warn|error), overrides [log].level")
	pf.String("binary", "", "redprl binary, overrides [redprl].path and REDPRL_PATH")
	pf.String("color", "auto", "colorize output (auto|on|off)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errFoundErrors) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// environment is what every subcommand builds from flags and redprl.toml.
type environment struct {
	cfg     config.Config
	log     *logging.Logger
	runner  *redprl.ProcessRunner
	session *redprl.Session
}

func setup(cmd *cobra.Command) (*environment, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if binary, _ := flags.GetString("binary"); binary != "" {
		cfg.RedPRL.Path = binary
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File, os.Stderr)
	if err != nil {
		return nil, err
	}
	runner := cfg.Runner(logger.Logger)
	opts, err := cfg.SessionOptions(logger.Logger)
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &environment{
		cfg:     cfg,
		log:     logger,
		runner:  runner,
		session: redprl.NewSession(runner, opts...),
	}, nil
}

func (e *environment) close() {
	if err := e.log.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close log:", err)
	}
}

func runMCP(cmd *cobra.Command, _ []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "redprl-mcp",
		Version: version,
	}, nil)
	registerTools(server, env.session)

	env.log.Info().Str("binary", env.runner.Binary).Msg("serving MCP on stdio")
	if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// useColor resolves the --color flag against the output file.
func useColor(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return os.Getenv("NO_COLOR") == "" && isTerminal(f), nil
	}
	return false, fmt.Errorf("--color must be auto, on or off, got %q", mode)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
