package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure from validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

func validate(cfg Config) error {
	var errs []error
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", cfg.Server.Port))
	}
	if cfg.SourceHost.BaseURL == "" {
		errs = append(errs, errors.New("source_host.base_url must not be empty"))
	}
	if cfg.Pipeline.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_concurrent must be positive, got %d", cfg.Pipeline.MaxConcurrent))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
