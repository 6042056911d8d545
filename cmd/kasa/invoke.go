package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/kaysia/kasa/internal/tool"
	"github.com/kaysia/kasa/pkg/app"
	"github.com/spf13/cobra"
)

// errToolFailed makes the process exit non-zero after an error envelope
// has been printed.
var errToolFailed = errors.New("tool returned an error")

// confirmPrompt asks the operator to approve a proposal. Tests replace it.
var confirmPrompt = func(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Apply").
			Negative("Cancel").
			Value(&ok),
	)).Run()
	return ok, err
}

func invokeCmd(g *globalFlags) *cobra.Command {
	var (
		rawArgs     string
		confirm     bool
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "invoke <tool>",
		Short: "Invoke one tool and print its result envelope",
		Long: `Invoke one tool with a JSON argument object and print the envelope.

Writes are proposed unless --confirm is given. With --interactive the
proposal is shown and applied only after confirmation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			if confirm && interactive {
				return errors.New("--confirm and --interactive are mutually exclusive")
			}
			args, err := readArgs(rawArgs, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return g.withRuntime(cmd, func(rt *app.Runtime) error {
				return invoke(cmd, rt.Dispatcher, argv[0], args, confirm, interactive)
			})
		},
	}
	cmd.Flags().StringVarP(&rawArgs, "args", "a", "{}", `Argument object as JSON, or "-" to read it from stdin`)
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Apply a write immediately (sets dryRun to false)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Propose, ask for confirmation, then apply")
	return cmd
}

func readArgs(raw string, stdin io.Reader) (map[string]any, error) {
	data := []byte(raw)
	if raw == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read arguments: %w", err)
		}
		data = b
	}
	args := map[string]any{}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("--args must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func invoke(cmd *cobra.Command, d *tool.Dispatcher, name string, args map[string]any, confirm, interactive bool) error {
	out := cmd.OutOrStdout()
	if confirm {
		args["dryRun"] = false
	}
	if interactive && isMutating(d, name) {
		// The prompt is the only way to apply in interactive mode.
		args["dryRun"] = true
	}

	env := d.InvokeArgs(cmd.Context(), name, args)
	if interactive && env.Status == tool.StatusProposed {
		ok, err := confirmPrompt("Apply "+name+"?", env.Message)
		if err != nil {
			return fmt.Errorf("confirmation prompt: %w", err)
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled; nothing was changed.")
			return nil
		}
		args["dryRun"] = false
		env = d.InvokeArgs(cmd.Context(), name, args)
	}

	if err := printJSON(out, env); err != nil {
		return err
	}
	if env.Status == tool.StatusError {
		return errToolFailed
	}
	return nil
}

func isMutating(d *tool.Dispatcher, name string) bool {
	t, err := d.Registry().Get(name)
	return err == nil && t.Definition().Mutating
}
