package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Viper keys, shared by flags and RHOM_* environment variables.
const (
	keyConfig   = "config"
	keyDataDir  = "data-dir"
	keyJSON     = "json"
	keyLogLevel = "log-level"
)

// newRootCmd builds the command tree. Each call gets fresh state so
// tests can run commands side by side.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RHOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	a := &app{v: v}

	root := &cobra.Command{
		Use:           "rhom",
		Short:         "Typed records with pluggable storage, caching and indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "config file declaring types (.yaml, .json or .toml)")
	flags.String(keyDataDir, "", "directory holding rhom.db (default: settings.data_dir or .)")
	flags.Bool(keyJSON, false, "output as JSON")
	flags.String(keyLogLevel, "", "log level: debug|info|warn|error")
	for _, key := range []string{keyConfig, keyDataDir, keyJSON, keyLogLevel} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", key, err))
		}
	}

	root.AddCommand(
		newTypesCmd(a),
		newPluginsCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newDeleteCmd(a),
		newAllCmd(a),
		newPurgeCmd(a),
		newFindCmd(a),
	)
	return root
}
