package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/tool"
	"gopkg.in/yaml.v3"
)

// ModuleID identifies the reminder scheduler in configuration.
const ModuleID = "scheduler.reminders"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ModuleConfig configures the reminder scheduler.
type ModuleConfig struct {
	// Schedule of the reminder digest. Default "0 9 * * *".
	Schedule string `yaml:"schedule"`
	// Timezone the schedules are evaluated in. Default UTC.
	Timezone string `yaml:"timezone"`
	// Days is the look-ahead window for upcoming payments. Default 7.
	Days int `yaml:"days"`
	// VerifySchedule of the audit chain check. Default "30 3 * * *";
	// "off" disables it.
	VerifySchedule string `yaml:"verify_schedule"`
}

// Module is the scheduler.reminders module.
type Module struct {
	config    ModuleConfig
	appCtx    *core.AppContext
	logger    *slog.Logger
	location  *time.Location
	scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	if m.config.Schedule == "" {
		m.config.Schedule = "0 9 * * *"
	}
	if m.config.VerifySchedule == "" {
		m.config.VerifySchedule = "30 3 * * *"
	}
	if m.config.Days <= 0 {
		m.config.Days = 7
	}
	m.appCtx = ctx
	m.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	var errs []error
	if err := ParseSchedule(m.config.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("cron: schedule %q: %w", m.config.Schedule, err))
	}
	if m.config.VerifySchedule != "off" {
		if err := ParseSchedule(m.config.VerifySchedule); err != nil {
			errs = append(errs, fmt.Errorf("cron: verify_schedule %q: %w", m.config.VerifySchedule, err))
		}
	}
	loc, err := time.LoadLocation(m.config.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("cron: timezone %q: %w", m.config.Timezone, err))
	}
	m.location = loc
	return errors.Join(errs...)
}

// Start implements core.Starter. The dispatcher is required; the audit
// check is scheduled only when a journal is registered.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service(tool.ServiceName)
	if !ok {
		return errors.New("cron: no tool dispatcher registered")
	}
	inv, ok := svc.(Invoker)
	if !ok {
		return fmt.Errorf("cron: service %s has type %T", tool.ServiceName, svc)
	}

	m.scheduler = NewScheduler(m.logger, m.location)
	if err := m.scheduler.RegisterJob(&ReminderJob{
		Invoker:      inv,
		Calls:        DefaultReminderCalls(m.config.Days),
		Logger:       m.logger,
		ScheduleExpr: m.config.Schedule,
	}); err != nil {
		return err
	}

	if m.config.VerifySchedule != "off" {
		if svc, ok := m.appCtx.Service(audit.ServiceName); ok {
			if v, ok := svc.(Verifier); ok {
				if err := m.scheduler.RegisterJob(&AuditVerifyJob{
					Verifier:     v,
					Logger:       m.logger,
					ScheduleExpr: m.config.VerifySchedule,
				}); err != nil {
					return err
				}
			}
		}
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}
