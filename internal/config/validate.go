package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/core"
)

const maxCurrencyRunes = 4

// Validate checks the structural validity of a Config and reports every
// problem at once: the version, module IDs against the registry, exactly
// one store module, and the assistant and telemetry sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var stores []string
	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if isStore(id) {
			stores = append(stores, id)
		}
	}
	if len(cfg.Modules) > 0 && len(stores) != 1 {
		errs = append(errs, fmt.Errorf("config: exactly one store module is required, got %d %v", len(stores), stores))
	}

	errs = append(errs, validateAssistant(cfg.Assistant)...)
	errs = append(errs, validateTelemetry(cfg)...)

	return errors.Join(errs...)
}

func validateAssistant(a AssistantConfig) []error {
	var errs []error
	if _, err := a.Location(); err != nil {
		errs = append(errs, fmt.Errorf("config: assistant.timezone: %w", err))
	}
	if utf8.RuneCountInString(a.Currency) > maxCurrencyRunes {
		errs = append(errs, fmt.Errorf("config: assistant.currency %q is longer than %d characters", a.Currency, maxCurrencyRunes))
	}
	if a.SigningKey != "" {
		if _, err := audit.NewSigner(a.SigningKey); err != nil {
			errs = append(errs, fmt.Errorf("config: assistant.signing_key: %w", err))
		}
	}
	if a.TaxBrackets != nil {
		if err := a.TaxBrackets.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: assistant.tax_brackets: %w", err))
		}
	}
	return errs
}

func validateTelemetry(cfg *Config) []error {
	t := cfg.Telemetry
	var errs []error
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.sample_ratio %v outside [0,1]", t.SampleRatio))
	}
	if t.Enabled && strings.Contains(t.Endpoint, "://") {
		errs = append(errs, fmt.Errorf("config: telemetry.endpoint %q must be host:port without a scheme", t.Endpoint))
	}
	return errs
}
