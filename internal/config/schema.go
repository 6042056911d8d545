// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for kasa.
package config

import (
	"time"

	"github.com/kaysia/kasa/internal/tax"
	"github.com/kaysia/kasa/internal/telemetry"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Assistant holds the settings shared by every tool.
	Assistant AssistantConfig `yaml:"assistant"`

	// Telemetry configures OpenTelemetry tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// AssistantConfig configures the bookkeeping tools and the audit trail.
type AssistantConfig struct {
	// Timezone fixes what "today" means for due dates and deadlines.
	// Defaults to the process local zone.
	Timezone string `yaml:"timezone"`

	// Currency is the symbol prefixed to amounts in proposal messages,
	// e.g. "₺" or "$". Defaults to "₺".
	Currency string `yaml:"currency"`

	// SigningKey is the HMAC key of the audit chain: at least 32 bytes, or
	// at least 64 hex characters. Empty selects a development key.
	SigningKey string `yaml:"signing_key"`

	// AuditLog is an optional JSONL file receiving a copy of every audit
	// entry next to the store.
	AuditLog string `yaml:"audit_log"`

	// TaxBrackets overrides the income tax table.
	TaxBrackets tax.Brackets `yaml:"tax_brackets"`
}

// Location resolves Timezone.
func (a AssistantConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}
