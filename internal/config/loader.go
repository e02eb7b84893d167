package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"workerd/internal/common/fsutil"
)

// Defaults applied by WithDefaults when the corresponding field is zero.
const (
	DefaultAddr                = ":8000"
	DefaultTokenizerAddr       = ":8101"
	DefaultDescriptorsPath     = "/app/models/model-descriptors.json"
	DefaultMetricsDir          = "/app/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultReadyTimeout        = 300
	DefaultStartupReadyTimeout = 120
	DefaultPromptTimeout       = 500
	DefaultTokenizerSettleMS   = 1500
	DefaultDependencyPollMS    = 100
	DefaultMaxBodyBytes        = 1 << 20
)

// CORS controls the optional CORS middleware on both routers.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// Config holds runtime parameters for both services.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr                       string `json:"addr" yaml:"addr" toml:"addr"`
	TokenizerAddr              string `json:"tokenizer_addr" yaml:"tokenizer_addr" toml:"tokenizer_addr"`
	DescriptorsPath            string `json:"descriptors_path" yaml:"descriptors_path" toml:"descriptors_path"`
	MetricsDir                 string `json:"metrics_dir" yaml:"metrics_dir" toml:"metrics_dir"`
	LogLevel                   string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat                  string `json:"log_format" yaml:"log_format" toml:"log_format"`
	ReadyTimeoutSeconds        int    `json:"ready_timeout_seconds" yaml:"ready_timeout_seconds" toml:"ready_timeout_seconds"`
	StartupReadyTimeoutSeconds int    `json:"startup_ready_timeout_seconds" yaml:"startup_ready_timeout_seconds" toml:"startup_ready_timeout_seconds"`
	PromptTimeoutSeconds       int    `json:"prompt_timeout_seconds" yaml:"prompt_timeout_seconds" toml:"prompt_timeout_seconds"`
	TokenizerSettleMS          int    `json:"tokenizer_settle_ms" yaml:"tokenizer_settle_ms" toml:"tokenizer_settle_ms"`
	DependencyPollMS           int    `json:"dependency_poll_ms" yaml:"dependency_poll_ms" toml:"dependency_poll_ms"`
	MaxBodyBytes               int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS                       CORS   `json:"cors" yaml:"cors" toml:"cors"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	if err := fsutil.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WithDefaults returns a copy with every unset field defaulted.
func (c Config) WithDefaults() Config {
	setStr := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	setInt := func(p *int, v int) {
		if *p <= 0 {
			*p = v
		}
	}
	setStr(&c.Addr, DefaultAddr)
	setStr(&c.TokenizerAddr, DefaultTokenizerAddr)
	setStr(&c.DescriptorsPath, DefaultDescriptorsPath)
	setStr(&c.MetricsDir, DefaultMetricsDir)
	setStr(&c.LogLevel, DefaultLogLevel)
	setStr(&c.LogFormat, DefaultLogFormat)
	setInt(&c.ReadyTimeoutSeconds, DefaultReadyTimeout)
	setInt(&c.StartupReadyTimeoutSeconds, DefaultStartupReadyTimeout)
	setInt(&c.PromptTimeoutSeconds, DefaultPromptTimeout)
	setInt(&c.TokenizerSettleMS, DefaultTokenizerSettleMS)
	setInt(&c.DependencyPollMS, DefaultDependencyPollMS)
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// ApplyEnv overrides fields from WORKERD_* variables read through lookup
// (os.LookupEnv in production). Malformed numbers are reported, not ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := map[string]*string{
		"WORKERD_ADDR":             &c.Addr,
		"WORKERD_TOKENIZER_ADDR":   &c.TokenizerAddr,
		"WORKERD_DESCRIPTORS_PATH": &c.DescriptorsPath,
		"WORKERD_METRICS_DIR":      &c.MetricsDir,
		"WORKERD_LOG_LEVEL":        &c.LogLevel,
		"WORKERD_LOG_FORMAT":       &c.LogFormat,
	}
	for k, p := range str {
		if v, ok := lookup(k); ok && v != "" {
			*p = v
		}
	}
	ints := map[string]*int{
		"WORKERD_READY_TIMEOUT_SECONDS":         &c.ReadyTimeoutSeconds,
		"WORKERD_STARTUP_READY_TIMEOUT_SECONDS": &c.StartupReadyTimeoutSeconds,
		"WORKERD_PROMPT_TIMEOUT_SECONDS":        &c.PromptTimeoutSeconds,
		"WORKERD_TOKENIZER_SETTLE_MS":           &c.TokenizerSettleMS,
		"WORKERD_DEPENDENCY_POLL_MS":            &c.DependencyPollMS,
	}
	for k, p := range ints {
		v, ok := lookup(k)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*p = n
	}
	if v, ok := lookup("WORKERD_CORS_ORIGINS"); ok && v != "" {
		c.CORS.Enabled = true
		c.CORS.AllowedOrigins = SplitCSV(v)
	}
	return nil
}

// SplitCSV splits a comma-separated list and drops empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

func (c Config) StartupReadyTimeout() time.Duration {
	return time.Duration(c.StartupReadyTimeoutSeconds) * time.Second
}

func (c Config) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutSeconds) * time.Second
}

func (c Config) TokenizerSettle() time.Duration {
	return time.Duration(c.TokenizerSettleMS) * time.Millisecond
}

func (c Config) DependencyPoll() time.Duration {
	return time.Duration(c.DependencyPollMS) * time.Millisecond
}
