package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads path (if it exists), expands ${VAR}-style environment
// references, parses it as YAML, and merges it over Defaults(). A missing
// path is not an error: Load then returns Defaults() with secrets resolved
// from the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = ExpandEnv(data)
			doc := Defaults()
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
			if err := mergo.Merge(&cfg, doc, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
				return Config{}, fmt.Errorf("config: merge %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through with defaults only
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	resolveSecrets(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveSecrets fills in credential fields from their *Env-named
// environment variable when the field itself was left blank in the
// document, so revbot.yaml never needs to carry a literal secret.
func resolveSecrets(cfg *Config) {
	if cfg.SourceHost.Token == "" && cfg.SourceHost.TokenEnv != "" {
		cfg.SourceHost.Token = os.Getenv(cfg.SourceHost.TokenEnv)
	}
	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyEnv != "" {
		cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	if cfg.CodeModel.APIKey == "" && cfg.CodeModel.APIKeyEnv != "" {
		cfg.CodeModel.APIKey = os.Getenv(cfg.CodeModel.APIKeyEnv)
	}
	if cfg.Results.WebhookURL == "" {
		if v := os.Getenv("RESULTS_WEBHOOK_URL"); v != "" {
			cfg.Results.WebhookURL = v
		}
	}
}
