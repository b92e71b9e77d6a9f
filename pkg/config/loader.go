// Package config loads environment-driven configuration structs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs that check their own ranges
// after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into cfg using its `env` tags and then
// runs cfg.Validate when cfg implements Validator.
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	return LoadWithPrefix(cfg, "")
}

// LoadWithPrefix is Load with every variable name prefixed, e.g. "CC_" turns
// HTTP_PORT into CC_HTTP_PORT.
func LoadWithPrefix(cfg any, prefix string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
