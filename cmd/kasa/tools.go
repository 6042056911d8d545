package main

import (
	"errors"
	"fmt"

	"github.com/kaysia/kasa/pkg/app"
	"github.com/spf13/cobra"
)

func toolsCmd(g *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withRuntime(cmd, func(rt *app.Runtime) error {
				reg := rt.Dispatcher.Registry()
				switch format {
				case "kasa":
					return printJSON(cmd.OutOrStdout(), map[string]any{"tools": reg.Catalogue()})
				case "openai":
					return printJSON(cmd.OutOrStdout(), map[string]any{"tools": reg.OpenAITools()})
				default:
					return fmt.Errorf("unknown format %q (want kasa or openai)", format)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "kasa", "Catalogue format: kasa or openai")
	return cmd
}

// errChainBroken makes `audit verify` exit non-zero.
var errChainBroken = errors.New("audit chain is broken")

func auditCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the latest audit entries, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			return g.withRuntime(cmd, func(rt *app.Runtime) error {
				entries, err := rt.Journal.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"entries": entries})
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries (0 for all)")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain and signatures of the whole log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withRuntime(cmd, func(rt *app.Runtime) error {
				rep, err := rt.Journal.Verify(cmd.Context())
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
				if !rep.Valid {
					return fmt.Errorf("%w at seq %d: %s", errChainBroken, rep.BrokeAt, rep.Reason)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, verify)
	return cmd
}
