// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/docent/ai"
)

// Environment variables that override file settings.
const (
	EnvAPIKey      = "DOCENT_LLM_API_KEY"
	EnvBackend     = "DOCENT_LLM_BACKEND"
	EnvHost        = "DOCENT_LLM_HOST"
	EnvModel       = "DOCENT_LLM_MODEL"
	EnvWatchRoot   = "DOCENT_WATCH_ROOT"
	EnvStoragePath = "DOCENT_STORAGE_PATH"
)

var (
	// ErrInvalidConfig is returned when a loaded configuration fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnsupportedConfigFormat is returned for config files that are
	// neither TOML nor YAML.
	ErrUnsupportedConfigFormat = errors.New("unsupported config format")
)

type StorageConfig struct {
	// Path is the badger data directory.
	Path string `toml:"path" yaml:"path"`

	// InMemory keeps everything in memory; Path is ignored.
	InMemory bool `toml:"in_memory" yaml:"in_memory"`
}

type LLMConfig struct {
	Backend           string   `toml:"backend" yaml:"backend"`
	Host              string   `toml:"host" yaml:"host"`
	Model             string   `toml:"model" yaml:"model"`
	APIKey            string   `toml:"api_key" yaml:"api_key"`
	Timeout           Duration `toml:"timeout" yaml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second" yaml:"requests_per_second"`
}

type WatchConfig struct {
	Root       string   `toml:"root" yaml:"root"`
	Debounce   Duration `toml:"debounce" yaml:"debounce"`
	Extensions []string `toml:"extensions" yaml:"extensions"`
}

type IngestionConfig struct {
	// Workers bounds concurrent enrichments, and with them concurrent
	// provider calls.
	Workers    int      `toml:"workers" yaml:"workers"`
	MaxRetries int      `toml:"max_retries" yaml:"max_retries"`
	RetryDelay Duration `toml:"retry_delay" yaml:"retry_delay"`
}

type AgentConfig struct {
	MaxToolCalls  int `toml:"max_tool_calls" yaml:"max_tool_calls"`
	HistoryWindow int `toml:"history_window" yaml:"history_window"`
}

// Config is the complete application configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	LLM       LLMConfig       `toml:"llm" yaml:"llm"`
	Watch     WatchConfig     `toml:"watch" yaml:"watch"`
	Ingestion IngestionConfig `toml:"ingestion" yaml:"ingestion"`
	Agent     AgentConfig     `toml:"agent" yaml:"agent"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Storage: StorageConfig{Path: defaultStoragePath()},
		LLM: LLMConfig{
			Backend: aiDefaults.Backend,
			Host:    aiDefaults.Host,
			Model:   aiDefaults.Model,
			Timeout: Duration(aiDefaults.Timeout),
		},
		Watch: WatchConfig{
			Root:       ".",
			Debounce:   Duration(500 * time.Millisecond),
			Extensions: []string{".txt", ".md", ".csv", ".json", ".pdf", ".docx"},
		},
		Ingestion: IngestionConfig{
			Workers:    max(1, runtime.NumCPU()/2),
			MaxRetries: 3,
			RetryDelay: Duration(time.Second),
		},
		Agent: AgentConfig{
			MaxToolCalls:  6,
			HistoryWindow: 30,
		},
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".docent", "data")
	}
	return filepath.Join(home, ".docent", "data")
}

// Load builds the configuration: defaults, then the file at path (TOML or
// YAML by extension), then environment variables. A .env file in the
// working directory is loaded into the environment first; variables that
// are already set win over it. A missing config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.LLM.APIKey, EnvAPIKey)
	set(&c.LLM.Backend, EnvBackend)
	set(&c.LLM.Host, EnvHost)
	set(&c.LLM.Model, EnvModel)
	set(&c.Watch.Root, EnvWatchRoot)
	set(&c.Storage.Path, EnvStoragePath)
}

// Normalize puts the configuration in canonical form: lowercase backend,
// absolute watch root and dotted lowercase extensions without duplicates.
func (c *Config) Normalize() {
	c.LLM.Backend = strings.ToLower(strings.TrimSpace(c.LLM.Backend))
	if c.Watch.Root != "" {
		if abs, err := filepath.Abs(c.Watch.Root); err == nil {
			c.Watch.Root = abs
		}
	}

	seen := make(map[string]bool, len(c.Watch.Extensions))
	exts := make([]string, 0, len(c.Watch.Extensions))
	for _, ext := range c.Watch.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if !seen[ext] {
			seen[ext] = true
			exts = append(exts, ext)
		}
	}
	c.Watch.Extensions = exts
}

// Validate checks that the configuration is complete and consistent.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	var errs []error
	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	if err := c.AI().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Watch.Debounce <= 0 {
		errs = append(errs, errors.New("watch.debounce must be positive"))
	}
	if len(c.Watch.Extensions) == 0 {
		errs = append(errs, errors.New("watch.extensions must not be empty"))
	}
	if c.Ingestion.Workers < 1 {
		errs = append(errs, fmt.Errorf("ingestion.workers must be at least 1, got %d", c.Ingestion.Workers))
	}
	if c.Ingestion.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("ingestion.max_retries must be at least 1, got %d", c.Ingestion.MaxRetries))
	}
	if c.Ingestion.RetryDelay < 0 {
		errs = append(errs, errors.New("ingestion.retry_delay cannot be negative"))
	}
	if c.Agent.MaxToolCalls < 1 {
		errs = append(errs, fmt.Errorf("agent.max_tool_calls must be at least 1, got %d", c.Agent.MaxToolCalls))
	}
	if c.Agent.HistoryWindow < 1 {
		errs = append(errs, fmt.Errorf("agent.history_window must be at least 1, got %d", c.Agent.HistoryWindow))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AI returns the provider configuration in normalized form.
func (c *Config) AI() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithBackend(c.LLM.Backend),
		ai.WithHost(c.LLM.Host),
		ai.WithModel(c.LLM.Model),
		ai.WithAPIKey(c.LLM.APIKey),
		ai.WithTimeout(c.LLM.Timeout.Std()),
		ai.WithRequestsPerSecond(c.LLM.RequestsPerSecond),
	)
	cfg.Normalize()
	return cfg
}
