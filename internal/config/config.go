// Package config loads and resolves runtime configuration for rift.
// The file-based defaults follow the teacher's YAML+embed pattern
// (ConfigDir/DataDir/ResolveConfigPath/parse-with-defaults); per-request
// tunables (budgets, timeouts, reader policy) are also overridable via
// environment variables per spec §6, the way the teacher reads
// per-provider API keys via os.Getenv(apiKeyEnv).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Config is the fully-resolved runtime configuration.
type Config struct {
	Providers Providers `yaml:"providers"`
	Server    Server    `yaml:"server"`
	Budgets   Budgets   `yaml:"budgets"`
	Reader    Reader    `yaml:"reader"`
	Logging   Logging   `yaml:"logging"`
	Output    Output    `yaml:"output"`
}

// Providers configures the pluggable LLM/search/reader/rerank backends.
// Concrete vendor names are treated as opaque strings resolved by the
// gateway, not enumerated here.
type Providers struct {
	LLM    LLMProvider    `yaml:"llm"`
	Search SearchProvider `yaml:"search"`
	Reader ReaderProvider `yaml:"reader"`
	Rerank RerankProvider `yaml:"rerank"`
}

type LLMProvider struct {
	Provider  string `yaml:"provider"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Models    struct {
		Plan      string `yaml:"plan"`
		Answer    string `yaml:"answer"`
		Verify    string `yaml:"verify"`
		Reasoning string `yaml:"reasoning"`
	} `yaml:"models"`
}

type SearchProvider struct {
	Provider         string `yaml:"provider"`
	APIKeyEnv        string `yaml:"api_key_env"`
	FallbackProvider string `yaml:"fallback_provider"`
}

type ReaderProvider struct {
	Provider  string `yaml:"provider"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type RerankProvider struct {
	Provider  string `yaml:"provider"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Server struct {
	Port int `yaml:"port"`
}

// Budgets holds the token-budget and request-shape knobs from spec §6.
type Budgets struct {
	AnswerInputTokens      int  `yaml:"answer_input_budget_tokens"`
	AnswerPromptOverhead   int  `yaml:"answer_prompt_overhead_tokens"`
	AnswerMaxCharsPerChunk int  `yaml:"answer_max_chars_per_chunk"`
	VerifyInputTokens      int  `yaml:"verify_input_budget_tokens"`
	VerifyPromptOverhead   int  `yaml:"verify_prompt_overhead_tokens"`
	SkipVerifyOnTPM        bool `yaml:"skip_verify_on_tpm"`
	RequestTimeoutMs       int  `yaml:"request_timeout_ms"`
	MaxSourcesInline       int  `yaml:"max_sources_inline"`
	EnableRerank           bool `yaml:"enable_rerank"`
}

// Reader holds the reader-policy knobs from spec §6.
type Reader struct {
	Prefer      string `yaml:"prefer"` // "primary" | "raw"
	RawDomains  string `yaml:"raw_domains"`
	Concurrency int    `yaml:"concurrency"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
}

// ConfigDir returns the XDG config directory for rift.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "rift")
}

// DataDir returns the XDG data directory for rift.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "rift")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/rift/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'rift init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file, then applies environment
// variable overrides on top of it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	applyEnvOverlay(cfg)
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults first so
// that a partial YAML document only overrides what it sets.
func parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Budgets: Budgets{
			AnswerInputTokens:      3200,
			AnswerPromptOverhead:   800,
			AnswerMaxCharsPerChunk: 900,
			VerifyInputTokens:      1500,
			VerifyPromptOverhead:   500,
			SkipVerifyOnTPM:        true,
			RequestTimeoutMs:       30000,
			MaxSourcesInline:       12,
			EnableRerank:           false,
		},
		Reader: Reader{
			Prefer:      "primary",
			Concurrency: 3,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}
	cfg.Providers.LLM.Provider = "ollama"
	cfg.Providers.LLM.BaseURL = "http://localhost:11434"
	cfg.Providers.LLM.Models.Plan = "qwen2.5:7b"
	cfg.Providers.LLM.Models.Answer = "qwen2.5:7b"
	cfg.Providers.LLM.Models.Verify = "qwen2.5:7b"
	cfg.Providers.LLM.Models.Reasoning = "qwen2.5:7b"
	cfg.Providers.Search.Provider = "brave"
	cfg.Providers.Search.APIKeyEnv = "SEARCH_API_KEY"
	cfg.Providers.Reader.Provider = "internal"
	cfg.Providers.Rerank.Provider = "none"
	return cfg
}

// applyEnvOverlay applies the recognized environment variables from
// spec §6 on top of the YAML-derived config, the way the teacher reads
// a provider's key via os.Getenv(cfg.APIKeyEnv) at call time.
func applyEnvOverlay(cfg *Config) {
	if v, ok := envInt("REQUEST_TIMEOUT_MS"); ok {
		cfg.Budgets.RequestTimeoutMs = v
	}
	if v, ok := envInt("MAX_SOURCES_INLINE"); ok {
		cfg.Budgets.MaxSourcesInline = clamp(v, 1, 24)
	}
	if v, ok := envBool("ENABLE_RERANK"); ok {
		cfg.Budgets.EnableRerank = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := envInt("ANSWER_INPUT_BUDGET_TOKENS"); ok {
		cfg.Budgets.AnswerInputTokens = v
	}
	if v, ok := envInt("ANSWER_PROMPT_OVERHEAD_TOKENS"); ok {
		cfg.Budgets.AnswerPromptOverhead = v
	}
	if v, ok := envInt("ANSWER_MAX_CHARS_PER_CHUNK"); ok {
		cfg.Budgets.AnswerMaxCharsPerChunk = v
	}
	if v, ok := envInt("VERIFY_INPUT_BUDGET_TOKENS"); ok {
		cfg.Budgets.VerifyInputTokens = v
	}
	if v, ok := envInt("VERIFY_PROMPT_OVERHEAD_TOKENS"); ok {
		cfg.Budgets.VerifyPromptOverhead = v
	}
	if v, ok := envBool("SKIP_VERIFY_ON_TPM"); ok {
		cfg.Budgets.SkipVerifyOnTPM = v
	}
	if v := os.Getenv("READER_PREFER"); v != "" {
		cfg.Reader.Prefer = v
	}
	if v := os.Getenv("READER_RAW_DOMAINS"); v != "" {
		cfg.Reader.RawDomains = v
	}
	if v, ok := envInt("READER_CONCURRENCY"); ok {
		cfg.Reader.Concurrency = clamp(v, 1, 4)
	}
	if v := os.Getenv("DB_URL"); v != "" {
		cfg.Output.DBPath = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RawDomainsList splits the CSV READER_RAW_DOMAINS setting into a
// clean slice of hostnames.
func (r Reader) RawDomainsList() []string {
	if r.RawDomains == "" {
		return nil
	}
	parts := strings.Split(r.RawDomains, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetDBPath returns the effective SQLite database path.
func (c *Config) GetDBPath() string {
	if c.Output.DBPath != "" {
		return c.Output.DBPath
	}
	return filepath.Join(c.GetDataDir(), "rift.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
