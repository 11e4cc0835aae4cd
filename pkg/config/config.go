// Package config loads the orchestrator configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/Josephrp/creditnexus-sub000/pkg/core"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "creditnexus.yaml"

type API struct {
	BaseURL string `yaml:"base_url"`
	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`
}

type Fusion struct {
	UseLLM bool `yaml:"use_llm"`
}

type Workflow struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	RetryBudget  int           `yaml:"retry_budget"`
}

// Inbox maps file name patterns to source kinds for the inbox watcher.
type Inbox struct {
	Dir      string            `yaml:"dir"`
	Patterns map[string]string `yaml:"patterns"`
}

// Output is where fused records are written when no path is given.
type Output struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// Config is the file layout.
type Config struct {
	API      API      `yaml:"api"`
	Fusion   Fusion   `yaml:"fusion"`
	Workflow Workflow `yaml:"workflow"`
	Inbox    Inbox    `yaml:"inbox"`
	Output   Output   `yaml:"output"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		API:      API{BaseURL: "http://localhost:8000", TokenEnv: "CREDITNEXUS_TOKEN"},
		Workflow: Workflow{PollInterval: 3 * time.Second},
		Inbox: Inbox{
			Dir: "inbox",
			Patterns: map[string]string{
				"**/*.audio.json":    "audio",
				"**/*.image.json":    "image",
				"**/*.document.json": "document",
				"**/*.text.json":     "text",
			},
		},
		Output: Output{Dir: "out", Format: "json"},
	}
}

// Load reads path over the defaults. A missing DefaultFile is not an error;
// any other missing path is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	// patterns in the file replace the defaults instead of merging into them
	cfg.Inbox.Patterns = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, &core.ValidationError{Field: "config", Reason: err.Error()})
	}
	if cfg.Inbox.Patterns == nil {
		cfg.Inbox.Patterns = Default().Inbox.Patterns
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return core.Invalid("api.base_url", "%q is not an absolute URL", c.API.BaseURL)
	}
	if c.Workflow.PollInterval <= 0 {
		return core.Invalid("workflow.poll_interval", "must be positive, got %s", c.Workflow.PollInterval)
	}
	if c.Workflow.RetryBudget < 0 {
		return core.Invalid("workflow.retry_budget", "must not be negative")
	}
	for pattern, kind := range c.Inbox.Patterns {
		if !doublestar.ValidatePattern(pattern) {
			return core.Invalid("inbox.patterns", "bad pattern %q", pattern)
		}
		if _, err := core.ParseSourceKind(kind); err != nil {
			return core.Invalid("inbox.patterns", "pattern %q: unknown source kind %q", pattern, kind)
		}
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "json", "yaml", "yml":
	default:
		return core.Invalid("output.format", "unsupported format %q", c.Output.Format)
	}
	return nil
}

// Token reads the bearer token from the configured environment variable.
func (c Config) Token() string {
	if c.API.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.API.TokenEnv))
}

// SourcePatterns resolves the inbox patterns to source kinds.
func (c Config) SourcePatterns() (map[string]core.SourceKind, error) {
	out := make(map[string]core.SourceKind, len(c.Inbox.Patterns))
	for pattern, name := range c.Inbox.Patterns {
		kind, err := core.ParseSourceKind(name)
		if err != nil {
			return nil, core.Invalid("inbox.patterns", "pattern %q: unknown source kind %q", pattern, name)
		}
		out[pattern] = kind
	}
	return out, nil
}

// RecordPath returns where a record named name is written by default: the
// output dir, with the extension of the output format.
func (c Config) RecordPath(name string) string {
	ext := ".json"
	switch strings.ToLower(c.Output.Format) {
	case "yaml", "yml":
		ext = ".yaml"
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "agreement"
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return filepath.Join(c.Output.Dir, name+ext)
}
