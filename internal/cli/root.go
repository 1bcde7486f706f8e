// Package cli implements the ember console: object CRUD against the
// locally configured store, as cobra subcommands.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberworks/ember-store/internal/config"
	"github.com/emberworks/ember-store/internal/engine"
	"github.com/emberworks/ember-store/internal/vault"
)

// NewRootCmd builds the ember command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ember",
		Short:         "Console for the ember object store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to ember.yaml")

	root.AddCommand(
		newCreateCmd(&configPath),
		newShowCmd(&configPath),
		newAllCmd(&configPath),
		newUpdateCmd(&configPath),
		newDestroyCmd(&configPath),
		newCountCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}

// openStore builds the configured engine and loads its persisted records.
func openStore(configPath string) (engine.Store, error) {
	_, store, err := openConfigured(configPath)
	return store, err
}

// openConfigured is openStore plus the resolved config, for commands that
// need to know which backend is active.
func openConfigured(configPath string) (config.Config, engine.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	store, err := openEngine(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := store.Reload(); err != nil {
		return config.Config{}, nil, errors.Join(err, store.Close())
	}
	return cfg, store, nil
}

func openEngine(cfg config.Config) (engine.Store, error) {
	switch cfg.Engine {
	case "badger":
		return engine.OpenBadger(cfg.BadgerDir, nil)
	default:
		var key []byte
		if cfg.EncryptionKey != "" {
			var err error
			key, err = vault.ParseKey(cfg.EncryptionKey)
			if err != nil {
				return nil, err
			}
		}
		p, err := engine.NewPersistence(cfg.DataFile, key)
		if err != nil {
			return nil, err
		}
		return engine.NewFileStore(p, nil), nil
	}
}

// otherEngine opens the backend the config does not select, for migrate.
func otherEngine(cfg config.Config) (engine.Store, string, error) {
	flipped := cfg
	if cfg.Engine == "badger" {
		flipped.Engine = "file"
	} else {
		flipped.Engine = "badger"
	}
	store, err := openEngine(flipped)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s engine: %w", flipped.Engine, err)
	}
	return store, flipped.Engine, nil
}
