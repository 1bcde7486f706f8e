// Package config loads daemon and CLI settings: built-in defaults,
// overridden by ember.yaml, overridden by EMBER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the default name of the config file.
const ConfigFileName = "ember.yaml"

// EnvPrefix is the prefix for environment variable overrides, e.g.
// EMBER_DATA_FILE or EMBER_LISTEN_ADDR.
const EnvPrefix = "EMBER_"

// Config holds every tunable of the store.
type Config struct {
	// Engine selects the backend: "file" or "badger".
	Engine string `koanf:"engine"`
	// DataFile is the JSON backing file for the file engine.
	DataFile string `koanf:"data_file"`
	// BadgerDir is the database directory for the badger engine.
	BadgerDir string `koanf:"badger_dir"`
	// ListenAddr is the daemon's HTTP listen address.
	ListenAddr string `koanf:"listen_addr"`
	// EncryptionKey is an optional hex-encoded 32-byte key. When set, the
	// file engine seals snapshots with AES-GCM.
	EncryptionKey string `koanf:"encryption_key"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
}

func defaults() map[string]any {
	return map[string]any{
		"engine":      "file",
		"data_file":   "data/ember.json",
		"badger_dir":  "data/badger",
		"listen_addr": ":7102",
		"log_level":   "info",
	}
}

// Load reads configuration from path (ConfigFileName when empty). A
// missing config file is not an error; the defaults and environment still
// apply.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, err
	}

	if path == "" {
		path = ConfigFileName
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Engine != "file" && cfg.Engine != "badger" {
		return Config{}, fmt.Errorf("unknown engine %q (want file or badger)", cfg.Engine)
	}
	return cfg, nil
}
