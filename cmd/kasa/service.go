package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/kaysia/kasa/pkg/app"
	"github.com/spf13/cobra"
)

// program adapts the runtime to the service manager's Start/Stop contract.
// Start must not block.
type program struct {
	params app.Params
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Run(ctx, p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	if err := <-p.done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serviceConfig describes the installed unit. The config and data paths
// are made absolute because service managers start from another directory.
func serviceConfig(g *globalFlags) (*service.Config, error) {
	args := []string{"service", "run"}
	if g.configPath != "" {
		abs, err := filepath.Abs(g.configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if g.dataDir != "" {
		abs, err := filepath.Abs(g.dataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	if g.logJSON {
		args = append(args, "--log-json")
	}
	return &service.Config{
		Name:        "kasa",
		DisplayName: "Kasa bookkeeping assistant",
		Description: "Serves the kasa tool gateway and payment reminders.",
		Arguments:   args,
	}, nil
}

func newService(cmd *cobra.Command, g *globalFlags) (service.Service, *program, error) {
	p, err := g.params(cmd, slog.LevelInfo)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := serviceConfig(g)
	if err != nil {
		return nil, nil, err
	}
	prg := &program{params: p}
	s, err := service.New(prg, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("service: %w", err)
	}
	return s, prg, nil
}

func serviceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage kasa as a system service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: "Service " + action,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, _, err := newService(cmd, g)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService(cmd, g)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st, err))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := newService(cmd, g)
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func statusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
