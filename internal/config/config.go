// ABOUTME: Configuration loading and parsing for interview-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete interview-gateway configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Artifacts ArtifactsConfig `yaml:"artifacts" toml:"artifacts"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools"`
	Phases    []PhaseConfig   `yaml:"phases" toml:"phases"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ArtifactsConfig controls how uploaded documents are batched into model messages
type ArtifactsConfig struct {
	PerDocumentTimeout time.Duration `yaml:"-" toml:"-"`
	SummaryChars       int           `yaml:"summary_chars" toml:"summary_chars"`
	// Artifacts with these purposes are sent to the model in full
	InterviewContextPurposes []string `yaml:"interview_context_purposes" toml:"interview_context_purposes"`
	// Upload targets that are not documents (e.g. profile photos)
	IgnoredTargets []string `yaml:"ignored_targets" toml:"ignored_targets"`

	PerDocumentTimeoutRaw string `yaml:"per_document_timeout" toml:"per_document_timeout"`
}

// ToolsConfig holds tool execution settings
type ToolsConfig struct {
	DedupeTTL time.Duration `yaml:"-" toml:"-"`
	DedupeMax int           `yaml:"dedupe_max" toml:"dedupe_max"`

	DedupeTTLRaw string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// PhaseConfig is one interview phase and its tool allow-list
type PhaseConfig struct {
	Name         string   `yaml:"name" toml:"name"`
	AllowedTools []string `yaml:"allowed_tools" toml:"allowed_tools"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Missing optional values are filled from Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used by `init` and to fill unset values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./interview.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Artifacts: ArtifactsConfig{
			PerDocumentTimeout:       2 * time.Minute,
			PerDocumentTimeoutRaw:    "2m",
			SummaryChars:             600,
			InterviewContextPurposes: []string{"writing_sample"},
			IgnoredTargets:           []string{"basics.image"},
		},
		Tools: ToolsConfig{
			DedupeTTL:    10 * time.Minute,
			DedupeTTLRaw: "10m",
			DedupeMax:    1024,
		},
		Phases: DefaultPhases(),
	}
}

// DefaultPhases returns the standard interview phases.
func DefaultPhases() []PhaseConfig {
	common := []string{"ask_user_question", "get_user_upload", "get_artifact", "list_artifacts", "update_objective", "next_phase"}
	with := func(extra ...string) []string {
		return append(append([]string{}, common...), extra...)
	}
	return []PhaseConfig{
		{Name: "phase1_core_facts", AllowedTools: with("agent_ready")},
		{Name: "phase2_deep_dive", AllowedTools: with("validate_profile", "submit_for_validation")},
		{Name: "phase3_writing_corpus", AllowedTools: with()},
		{Name: "complete", AllowedTools: []string{"get_artifact", "list_artifacts"}},
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Artifacts.PerDocumentTimeout == 0 {
		c.Artifacts.PerDocumentTimeout = d.Artifacts.PerDocumentTimeout
	}
	if c.Artifacts.SummaryChars == 0 {
		c.Artifacts.SummaryChars = d.Artifacts.SummaryChars
	}
	if c.Artifacts.InterviewContextPurposes == nil {
		c.Artifacts.InterviewContextPurposes = d.Artifacts.InterviewContextPurposes
	}
	if c.Artifacts.IgnoredTargets == nil {
		c.Artifacts.IgnoredTargets = d.Artifacts.IgnoredTargets
	}
	if c.Tools.DedupeTTL == 0 {
		c.Tools.DedupeTTL = d.Tools.DedupeTTL
	}
	if c.Tools.DedupeMax == 0 {
		c.Tools.DedupeMax = d.Tools.DedupeMax
	}
	if len(c.Phases) == 0 {
		c.Phases = d.Phases
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Artifacts.PerDocumentTimeout < 0 {
		return fmt.Errorf("artifacts.per_document_timeout must not be negative")
	}
	if c.Artifacts.SummaryChars < 0 {
		return fmt.Errorf("artifacts.summary_chars must not be negative")
	}
	if c.Tools.DedupeTTL < 0 {
		return fmt.Errorf("tools.dedupe_ttl must not be negative")
	}
	if c.Tools.DedupeMax < 0 {
		return fmt.Errorf("tools.dedupe_max must not be negative")
	}

	if len(c.Phases) == 0 {
		return fmt.Errorf("at least one phase is required")
	}
	seen := make(map[string]bool, len(c.Phases))
	for i, p := range c.Phases {
		if p.Name == "" {
			return fmt.Errorf("phases[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate phase %q", p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Artifacts.PerDocumentTimeoutRaw != "" {
		cfg.Artifacts.PerDocumentTimeout, err = time.ParseDuration(cfg.Artifacts.PerDocumentTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing per_document_timeout %q: %w", cfg.Artifacts.PerDocumentTimeoutRaw, err)
		}
	}

	if cfg.Tools.DedupeTTLRaw != "" {
		cfg.Tools.DedupeTTL, err = time.ParseDuration(cfg.Tools.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Tools.DedupeTTLRaw, err)
		}
	}

	return nil
}

// EncodeYAML renders the config as YAML, for writing default config files.
func (c *Config) EncodeYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}
