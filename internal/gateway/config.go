package gateway

import (
	"time"

	"github.com/kaysia/kasa/internal/security"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string                      `yaml:"bind"`
	Auth            AuthConfig                  `yaml:"auth"`
	RateLimit       security.RateLimitConfig    `yaml:"rate_limit"`
	Hooks           map[string]HookSourceConfig `yaml:"hooks"`
	MaxBodyBytes    int                         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration               `yaml:"read_timeout"`
	WriteTimeout    time.Duration               `yaml:"write_timeout"`
	ShutdownTimeout time.Duration               `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = security.DefaultMaxBodySize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// AuthConfig protects the /v1 API. Without credentials the API is only
// mounted when AllowAnonymous is set.
type AuthConfig struct {
	Tokens         []string `yaml:"tokens"`
	BasicUser      string   `yaml:"basic_user"`
	BasicPass      string   `yaml:"basic_pass"`
	AllowAnonymous bool     `yaml:"allow_anonymous"`
}

// IsConfigured reports whether any credential is set.
func (a AuthConfig) IsConfigured() bool {
	return len(a.Tokens) > 0 || (a.BasicUser != "" && a.BasicPass != "")
}

// Secrets lists the values the log redactor must mask.
func (a AuthConfig) Secrets() []string {
	return append([]string{a.BasicPass}, a.Tokens...)
}

// HookSourceConfig configures one signed invocation source, such as a bank
// feed posting incomes. Requests must carry an X-Signature-256 HMAC of the
// body and may only call the listed tools.
type HookSourceConfig struct {
	Secret string   `yaml:"secret"`
	Tools  []string `yaml:"tools"`
}
