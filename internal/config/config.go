// Package config loads driver-level configuration: the defaults a CLI or
// HTTP driver falls back to when a flag isn't supplied. It has nothing to do
// with plan JSON, which is parsed by internal/plan instead.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/pkg/dferrors"
)

// Config is the driver-level configuration document, typically loaded from
// a `dataflow.yaml` file beside the plans a driver serves.
type Config struct {
	OutputDir  string     `yaml:"output_dir,omitempty" validate:"omitempty,min=1"`
	TraceLevel string     `yaml:"trace_level,omitempty" validate:"omitempty,oneof=quiet normal debug"`
	HTTP       HTTPConfig `yaml:"http,omitempty"`
}

// HTTPConfig configures the net/http driver.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty" validate:"omitempty,hostname_port"`
	PlansDir   string `yaml:"plans_dir,omitempty" validate:"omitempty,min=1"`
}

// Default returns the configuration a driver uses when no config file is
// present.
func Default() Config {
	return Config{
		OutputDir:  ".",
		TraceLevel: "normal",
		HTTP: HTTPConfig{
			ListenAddr: ":8080",
			PlansDir:   "./plans",
		},
	}
}

// Load reads and validates a YAML config file at path, filling unset fields
// from Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func instance() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// Validate runs struct-tag validation over cfg, wrapping any failure as a
// dferrors.ValidationError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return dferrors.NewValidationError("config is nil", nil)
	}
	if err := instance().Struct(cfg); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(ves))
			for _, fe := range ves {
				msgs = append(msgs, fmt.Sprintf("%s failed validation for tag %q", fe.Namespace(), fe.Tag()))
			}
			return dferrors.NewValidationError("invalid driver configuration", msgs)
		}
		return dferrors.NewValidationError(err.Error(), nil)
	}
	return nil
}

// OutputMode maps the configured trace level string to an execctx.OutputMode,
// defaulting to Normal for an unset or unrecognized value.
func (c Config) OutputMode() execctx.OutputMode {
	switch c.TraceLevel {
	case "quiet":
		return execctx.Quiet
	case "debug":
		return execctx.Debug
	default:
		return execctx.Normal
	}
}
