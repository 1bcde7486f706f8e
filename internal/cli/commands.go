package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberworks/ember-store/internal/engine"
	"github.com/emberworks/ember-store/pkg/model"
)

func newCreateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <Type> [attrs-json]",
		Short: "Create and persist a new object",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &attrs); err != nil {
					return fmt.Errorf("attrs must be a JSON object: %w", err)
				}
			}

			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			obj, err := model.Types.New(args[0], attrs)
			if err != nil {
				return err
			}
			if err := store.SaveObject(obj); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), obj.ObjectID())
			return nil
		},
	}
}

func newShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <Type> <id>",
		Short: "Print one object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			obj, ok := store.Get(args[0], args[1])
			if !ok {
				return fmt.Errorf("no %s with id %s", args[0], args[1])
			}
			return printJSON(cmd, obj.ToMap())
		},
	}
}

func newAllCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "all [Type]",
		Short: "Print all objects, optionally of one type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName := ""
			if len(args) == 1 {
				typeName = args[0]
			}

			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records := make(map[string]map[string]any)
			for key, obj := range store.All(typeName) {
				records[key] = obj.ToMap()
			}
			return printJSON(cmd, records)
		},
	}
}

func newUpdateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update <Type> <id> <attrs-json>",
		Short: "Apply attributes onto an object and persist it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var attrs map[string]any
			if err := json.Unmarshal([]byte(args[2]), &attrs); err != nil {
				return fmt.Errorf("attrs must be a JSON object: %w", err)
			}

			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			obj, err := store.Update(args[0], args[1], attrs)
			if err != nil {
				return err
			}
			return printJSON(cmd, obj.ToMap())
		},
	}
}

func newDestroyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <Type> <id>",
		Short: "Delete an object and persist the removal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if !store.Delete(args[0], args[1]) {
				return fmt.Errorf("no %s with id %s", args[0], args[1])
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

func newCountCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "count [Type]",
		Short: "Count stored objects, optionally of one type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName := ""
			if len(args) == 1 {
				typeName = args[0]
			}

			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintln(cmd.OutOrStdout(), store.Count(typeName))
			return nil
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Copy all objects from the configured engine into the other backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, src, err := openConfigured(*configPath)
			if err != nil {
				return err
			}
			defer src.Close()

			dst, dstName, err := otherEngine(cfg)
			if err != nil {
				return err
			}
			defer dst.Close()

			if err := engine.Migrate(src, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d objects to the %s engine\n", src.Count(""), dstName)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
