package main

import (
	"os"

	"github.com/kaysia/kasa/internal/mcpserver"
	"github.com/kaysia/kasa/pkg/app"
	"github.com/spf13/cobra"
)

func mcpCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdin/stdout",
		Long: `Serve the tool catalogue as an MCP server over stdio.

Stdout carries the protocol; logs always go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withRuntime(cmd, func(rt *app.Runtime) error {
				s := mcpserver.New(rt.Dispatcher, version)
				rt.Logger.Info("mcp server listening on stdio", "tools", len(rt.Dispatcher.Registry().Names()))
				return mcpserver.ServeStdio(cmd.Context(), s, os.Stdin, os.Stdout)
			})
		},
	}
}
