// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs that check cross-field rules
// after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into a new T using `env` and
// `envDefault` struct tags, then runs T's Validate method if it has one.
//
//	type Config struct {
//	    Port int `env:"HTTP_PORT" envDefault:"8080"`
//	}
//	cfg, err := config.Load[Config]()
func Load[T any]() (*T, error) {
	return LoadWithPrefix[T]("")
}

// LoadWithPrefix is Load with every variable name prefixed by prefix.
func LoadWithPrefix[T any](prefix string) (*T, error) {
	cfg := new(T)
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if v, ok := any(cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}
