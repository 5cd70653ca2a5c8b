// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package config loads the configuration of the vmemu command.
//
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/db47h/vmsim/controller"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Built-in function policies.
//
const (
	BuiltinsAsk = "ask"
	BuiltinsYes = "yes"
	BuiltinsNo  = "no"
)

// Config is the configuration of the vmemu command.
//
type Config struct {
	Speed         int    `toml:"speed"`
	AnimationMode string `toml:"animation_mode"`
	NumericFormat string `toml:"numeric_format"`
	Builtins      string `toml:"builtins"`
	LogLevel      string `toml:"log_level"`
}

// Default returns the default configuration.
//
func Default() Config {
	return Config{
		Speed:         controller.InitialSpeed,
		AnimationMode: controller.NoDisplayChanges.String(),
		NumericFormat: controller.Decimal.String(),
		Builtins:      BuiltinsAsk,
		LogLevel:      zerolog.WarnLevel.String(),
	}
}

// Load reads the configuration file at path on top of the default
// configuration. A missing file is not an error.
//
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return c, errors.Wrapf(err, "load config %s", path)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return c, errors.Errorf("%s: unknown configuration keys: %s", path, strings.Join(names, ", "))
	}
	if err = c.Validate(); err != nil {
		return c, errors.WithMessage(err, path)
	}
	return c, nil
}

// Validate checks that all values are valid.
//
func (c *Config) Validate() error {
	if c.Speed < 1 || c.Speed > controller.NumSpeedUnits {
		return errors.Errorf("speed must be between 1 and %d, got %d", controller.NumSpeedUnits, c.Speed)
	}
	if _, ok := controller.ParseAnimationMode(c.AnimationMode); !ok {
		return errors.Errorf("invalid animation_mode %q", c.AnimationMode)
	}
	if _, ok := controller.ParseNumericFormat(c.NumericFormat); !ok {
		return errors.Errorf("invalid numeric_format %q", c.NumericFormat)
	}
	switch c.Builtins {
	case BuiltinsAsk, BuiltinsYes, BuiltinsNo:
	default:
		return errors.Errorf("invalid builtins policy %q", c.Builtins)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Animation returns the configured animation mode.
//
func (c *Config) Animation() controller.AnimationMode {
	m, _ := controller.ParseAnimationMode(c.AnimationMode)
	return m
}

// Format returns the configured numeric format.
//
func (c *Config) Format() controller.NumericFormat {
	f, _ := controller.ParseNumericFormat(c.NumericFormat)
	return f
}

// Level returns the configured log level.
//
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.WarnLevel
	}
	return l
}
