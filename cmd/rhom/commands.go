package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List configured types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOutput() {
				out := make([]map[string]any, 0, a.types.Len())
				a.types.Range(func(name string, d *rhom.Descriptor) bool {
					out = append(out, map[string]any{
						"name":       name,
						"prefix":     d.Prefix(),
						"properties": d.Properties(),
						"accessors":  d.Accessors(),
					})
					return true
				})
				return a.printJSON(cmd.OutOrStdout(), out)
			}
			var lines []string
			a.types.Range(func(name string, d *rhom.Descriptor) bool {
				lines = append(lines, fmt.Sprintf("%s\t%s\t%s", name, d.Prefix(), strings.Join(d.Properties(), ",")))
				return true
			})
			return a.printLines(cmd.OutOrStdout(), lines)
		},
	}
}

func newPluginsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins <type>",
		Short: "List the plugins installed on a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			plugins := d.Plugins()
			if a.jsonOutput() {
				return a.printJSON(cmd.OutOrStdout(), plugins)
			}
			lines := make([]string, len(plugins))
			for i, p := range plugins {
				lines[i] = p.Name + "\t" + p.Description
			}
			return a.printLines(cmd.OutOrStdout(), lines)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id>...",
		Short: "Get instances by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			list, err := d.GetMany(cmd.Context(), args[1:]).Await(cmd.Context())
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			return a.printInstances(cmd.OutOrStdout(), list)
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "set <type> field=value...",
		Short: "Create or update an instance",
		Long: `Set saves an instance. With --id, an existing instance is loaded and
updated; otherwise a new instance gets a generated id.

Values are read as JSON when they parse as a number, bool, null, object or
array, and as strings otherwise. A null value clears the field.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			var inst *rhom.Instance
			if id != "" {
				if inst, err = d.Get(ctx, id).Await(ctx); err != nil {
					return fmt.Errorf("get: %w", err)
				}
				if inst == nil {
					inst = d.Hydrate(id, nil)
				}
			} else {
				inst = d.NewInstance()
			}
			for name, value := range fields {
				if value == nil {
					inst.Unset(name)
					continue
				}
				if err := inst.Set(name, value); err != nil {
					return err
				}
			}

			saved, err := inst.Save(ctx).Await(ctx)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			return a.printInstances(cmd.OutOrStdout(), []*rhom.Instance{saved})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "id of the instance to create or update")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete an instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			inst, err := d.Get(ctx, args[1]).Await(ctx)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if inst == nil {
				return fmt.Errorf("%s %q not found", d.Name(), args[1])
			}
			if _, err := inst.Delete(ctx).Await(ctx); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			return a.printLines(cmd.OutOrStdout(), []string{"deleted " + inst.Key()})
		},
	}
}

func newAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all <type>",
		Short: "List every stored id of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			ids, err := d.All(cmd.Context()).Await(cmd.Context())
			if err != nil {
				return fmt.Errorf("all: %w", err)
			}
			return a.printLines(cmd.OutOrStdout(), ids)
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <type>",
		Short: "Delete every stored instance of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.lookup(args[0])
			if err != nil {
				return err
			}
			if _, err := d.Purge(cmd.Context()).Await(cmd.Context()); err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			return a.printLines(cmd.OutOrStdout(), []string{"purged " + d.Name()})
		},
	}
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <type> <field> <value>",
		Short: "Find instances through a secondary index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.lookup(args[0]); err != nil {
				return err
			}
			ix, err := a.index(args[0], args[1])
			if err != nil {
				return err
			}
			list, err := ix.By(cmd.Context(), parseValue(args[2])).Await(cmd.Context())
			if err != nil {
				return fmt.Errorf("find: %w", err)
			}
			return a.printInstances(cmd.OutOrStdout(), list)
		},
	}
}
