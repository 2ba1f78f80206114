package config

import "time"

// Config is the fully resolved revbot configuration: defaults merged with
// whatever revbot.yaml (and environment overrides) supplied.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	SourceHost SourceHostConfig `yaml:"source_host"`
	LLM        LLMConfig        `yaml:"llm"`
	CodeModel  CodeModelConfig  `yaml:"code_model"`
	Results    ResultsConfig    `yaml:"results"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// ServerConfig controls the ingress HTTP/WebSocket listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SourceHostConfig configures the adapter that talks to the PR host.
type SourceHostConfig struct {
	BaseURL  string `yaml:"base_url"`
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"token_env"`
}

// LLMConfig configures the Anthropic-backed classification/fix/question
// collaborator.
type LLMConfig struct {
	APIKey         string        `yaml:"api_key"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	DefaultModel   string        `yaml:"default_model"`
	HighModel      string        `yaml:"high_model"`
	SmallModel     string        `yaml:"small_model"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	ThinkingBudget int           `yaml:"thinking_budget"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CodeModelConfig configures the local, OpenAI-compatible model used by the
// Test Agent to generate test code.
type CodeModelConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ResultsConfig controls delivery of the comprehensive results record.
type ResultsConfig struct {
	WebhookURL     string        `yaml:"webhook_url"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	BackupDir      string        `yaml:"backup_dir"`
}

// PipelineConfig controls orchestrator-wide behavior.
type PipelineConfig struct {
	RecursionMarkers []string      `yaml:"recursion_markers"`
	BuildTimeout     time.Duration `yaml:"build_timeout"`
	TestTimeout      time.Duration `yaml:"test_timeout"`
	MaxConcurrent    int           `yaml:"max_concurrent"`
}
