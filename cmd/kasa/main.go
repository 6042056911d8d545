// Package main is the entry point for the kasa CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "kasa:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that builds the runtime.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	logJSON    bool
}

func (g *globalFlags) params(cmd *cobra.Command, defaultLevel slog.Level) (app.Params, error) {
	level := defaultLevel
	if g.logLevel != "" {
		if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
			return app.Params{}, fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
		}
	}
	return app.Params{
		ConfigPath: g.configPath,
		DataDir:    g.dataDir,
		Version:    version,
		LogLevel:   level,
		LogJSON:    g.logJSON,
		LogOutput:  cmd.ErrOrStderr(),
	}, nil
}

// withRuntime builds the runtime for a one-shot command and closes it when
// fn returns. One-shot commands log warnings and above unless asked.
func (g *globalFlags) withRuntime(cmd *cobra.Command, fn func(*app.Runtime) error) error {
	p, err := g.params(cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	rt, err := app.Build(cmd.Context(), p)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close(context.WithoutCancel(cmd.Context())) }()
	return fn(rt)
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "kasa",
		Short:         "Bookkeeping assistant tools with propose-then-confirm writes and a signed audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	pf.StringVar(&g.dataDir, "data-dir", "", "Persistent data directory")
	pf.StringVar(&g.logLevel, "log-level", "", "Minimum log level (debug, info, warn, error)")
	pf.BoolVar(&g.logJSON, "log-json", false, "Write logs as JSON")

	root.AddCommand(
		versionCmd(),
		serveCmd(g),
		toolsCmd(g),
		invokeCmd(g),
		auditCmd(g),
		mcpCmd(g),
		configCmd(g),
		serviceCmd(g),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kasa %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run every configured module until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.params(cmd, slog.LevelInfo)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), p)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
