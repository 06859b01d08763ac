// Package config loads agent and collector configuration from vitals.yaml
// and VITALS_ environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "vitals.yaml"

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. VITALS_REPORT__URL.
const EnvPrefix = "VITALS_"

type Config struct {
	Exception          bool            `koanf:"exception"`
	PerformanceMetrics bool            `koanf:"performance_metrics"`
	Report             ReportConfig    `koanf:"report"`
	Dedup              DedupConfig     `koanf:"dedup"`
	Retention          RetentionConfig `koanf:"retention"`
	Page               PageConfig      `koanf:"page"`
	Telemetry          TelemetryConfig `koanf:"telemetry"`
	Collector          CollectorConfig `koanf:"collector"`
}

type ReportConfig struct {
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`
	// QueueURL delivers reports to an SQS queue instead of over HTTP.
	QueueURL string `koanf:"queue_url"`
}

type DedupConfig struct {
	// Policy is "timestamped" or "stable".
	Policy string `koanf:"policy"`
}

type RetentionConfig struct {
	MaxRecords int `koanf:"max_records"`
}

type PageConfig struct {
	Href      string `koanf:"href"`
	UserAgent string `koanf:"user_agent"`
}

type TelemetryConfig struct {
	Tracing bool `koanf:"tracing"`
}

type CollectorConfig struct {
	Port int `koanf:"port"`
	// Database is a SQLite path; empty keeps reports in memory.
	Database string `koanf:"database"`
	// APIKey, when set, is required as a bearer token on POST /report.
	APIKey string `koanf:"api_key"`
	// QueueURL is an SQS queue drained into the store.
	QueueURL string `koanf:"queue_url"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath (if present) and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path (if present) and the environment. Environment values
// override the file.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// A missing file leaves the environment and defaults
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, domain.ErrConfigInvalid("read "+path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, domain.ErrConfigInvalid("read environment", err)
	}

	defaults := map[string]any{
		"exception":             true,
		"dedup.policy":          "timestamped",
		"retention.max_records": domain.DefaultMaxRecords,
		"page.href":             hostname(),
		"page.user_agent":       "errorvitals-go",
		"collector.port":        8080,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, domain.ErrConfigInvalid("decode configuration", err)
	}

	for name, value := range cfg.Report.Headers {
		cfg.Report.Headers[name] = substituteEnvVars(value)
	}
	cfg.Report.URL = substituteEnvVars(cfg.Report.URL)
	cfg.Report.QueueURL = substituteEnvVars(cfg.Report.QueueURL)
	cfg.Collector.APIKey = substituteEnvVars(cfg.Collector.APIKey)
	cfg.Collector.QueueURL = substituteEnvVars(cfg.Collector.QueueURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values koanf cannot type-check.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Dedup.Policy) {
	case "", "timestamped", "stable":
	default:
		return domain.ErrConfigInvalid("dedup.policy must be timestamped or stable, got "+c.Dedup.Policy, nil)
	}
	if c.Retention.MaxRecords < 0 {
		return domain.ErrConfigInvalid("retention.max_records must not be negative", nil)
	}
	if len(c.Report.Headers) > 0 && c.Report.URL == "" {
		return domain.ErrConfigInvalid("report.headers requires report.url", nil)
	}
	return nil
}

// DomainReport converts the report section to the agent's report configuration.
// The SQS callback is attached by the runtime.
func (c *Config) DomainReport() domain.ReportConfig {
	var headers map[string]string
	if len(c.Report.Headers) > 0 {
		headers = make(map[string]string, len(c.Report.Headers))
		for k, v := range c.Report.Headers {
			headers[k] = v
		}
	}
	return domain.ReportConfig{URL: c.Report.URL, Headers: headers}
}

// PageInfo returns the configured page description.
func (c *Config) PageInfo() domain.PageInfo {
	return domain.PageInfo{Href: c.Page.Href, UserAgent: c.Page.UserAgent}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return "app://" + name
}
