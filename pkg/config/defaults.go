package config

import "time"

// Defaults returns the built-in configuration merged under any document
// loaded from revbot.yaml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		SourceHost: SourceHostConfig{
			BaseURL:  "https://api.github.com",
			TokenEnv: "SOURCE_HOST_TOKEN",
		},
		LLM: LLMConfig{
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			DefaultModel:   "claude-sonnet-4-5",
			HighModel:      "claude-opus-4-1",
			SmallModel:     "claude-haiku-4-5",
			MaxTokens:      4096,
			Temperature:    0.2,
			RequestTimeout: 60 * time.Second,
		},
		CodeModel: CodeModelConfig{
			BaseURL:        "http://localhost:1234/v1",
			APIKeyEnv:      "CODE_MODEL_API_KEY",
			Model:          "qwen2.5-coder-7b-instruct",
			RequestTimeout: 120 * time.Second,
		},
		Results: ResultsConfig{
			WebhookTimeout: 30 * time.Second,
			BackupDir:      "./revbot-results",
		},
		Pipeline: PipelineConfig{
			RecursionMarkers: []string{"[skip-pipeline]", "🤖 AI Fix:", "🤖 AI Test:", "🤖 AI Refactor:", "[ai-generated]", "[hackademia-ai]"},
			BuildTimeout:     5 * time.Minute,
			TestTimeout:      5 * time.Minute,
			MaxConcurrent:    4,
		},
	}
}
