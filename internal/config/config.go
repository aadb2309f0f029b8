package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Config represents the optional per-user prolet configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Nil means unset.
type DefaultsConfig struct {
	Workers *int    `toml:"workers"`
	Retries *int    `toml:"retries"`
	BWLimit *string `toml:"bwlimit"`
	Timeout *string `toml:"timeout"`
}

// Path returns the resolved path to the user config file.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "prolet", "config.toml")
}

// Load reads the user config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. This file is always optional.
func Load() (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(Path(), &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
