package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/cache"
	"github.com/randalmurphal/rhom/pkg/rhom/config"
	"github.com/randalmurphal/rhom/pkg/rhom/index"
	"github.com/randalmurphal/rhom/pkg/rhom/publish"
	"github.com/randalmurphal/rhom/pkg/rhom/registry"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
	"github.com/randalmurphal/rhom/pkg/rhom/validation"
)

const dbFile = "rhom.db"

// app is the state shared by every command for one invocation.
type app struct {
	v *viper.Viper

	logger  *slog.Logger
	backend *store.SQLiteBackend
	bus     *publish.Bus
	types   *registry.Registry[string, *rhom.Descriptor]
	indexes map[string]map[string]*index.Plugin
}

// open loads the config, opens the database and builds every type.
func (a *app) open(cmd *cobra.Command) error {
	cfg := config.New(nil)
	if path := a.v.GetString(keyConfig); path != "" {
		var err error
		if cfg, err = config.FromFile(path); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	settings, err := cfg.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if a.v.IsSet(keyDataDir) && a.v.GetString(keyDataDir) != "" {
		settings.DataDir = a.v.GetString(keyDataDir)
	}
	if a.v.IsSet(keyLogLevel) && a.v.GetString(keyLogLevel) != "" {
		settings.LogLevel = a.v.GetString(keyLogLevel)
	}

	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: settings.Level()}))

	if err := os.MkdirAll(settings.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	a.backend, err = store.NewSQLiteBackend(filepath.Join(settings.DataDir, dbFile))
	if err != nil {
		return err
	}

	a.bus = publish.NewBus(publish.BusConfig{NonBlocking: true})
	a.bus.Subscribe("", func(_ context.Context, n publish.Notice) error {
		a.logger.Debug("change", slog.String("channel", n.Channel), slog.String("node", n.NodeID))
		return nil
	})

	typeConfigs, err := cfg.Types()
	if err != nil {
		return err
	}
	a.types = registry.New[string, *rhom.Descriptor]()
	a.indexes = make(map[string]map[string]*index.Plugin)
	for _, tc := range typeConfigs {
		d, err := a.build(tc, settings.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("type %s: %w", tc.Name, err)
		}
		if err := a.types.Register(tc.Name, d); err != nil {
			return fmt.Errorf("type %s: %w", tc.Name, err)
		}
	}
	return nil
}

// build creates a type with its plugins. Validation runs first so an
// invalid save never reaches the cache or the store.
func (a *app) build(tc config.TypeConfig, defaultTimeout time.Duration) (*rhom.Descriptor, error) {
	opts, err := tc.Options(defaultTimeout)
	if err != nil {
		return nil, err
	}
	d := rhom.New(tc.Name, append(opts, rhom.WithLogger(a.logger))...)

	var plugins []rhom.Plugin
	if tc.Schema != nil {
		v, err := validation.FromMap(tc.Schema)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, v)
	}
	if tc.Cache {
		plugins = append(plugins, cache.New(cache.WithTTL(tc.CacheTTL)))
	}
	plugins = append(plugins, store.New(a.backend))

	a.indexes[tc.Name] = make(map[string]*index.Plugin, len(tc.Indexes))
	for _, field := range tc.Indexes {
		ix := index.New(field, a.backend)
		a.indexes[tc.Name][field] = ix
		plugins = append(plugins, ix)
	}
	plugins = append(plugins, publish.New(a.bus))

	if err := d.Use(plugins...); err != nil {
		return nil, err
	}
	return d, nil
}

func (a *app) close() error {
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.backend != nil {
		return a.backend.Close()
	}
	return nil
}

func (a *app) lookup(name string) (*rhom.Descriptor, error) {
	d, ok := a.types.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown type %q (known: %v)", name, a.types.Keys())
	}
	return d, nil
}

func (a *app) index(typeName, field string) (*index.Plugin, error) {
	ix, ok := a.indexes[typeName][field]
	if !ok {
		return nil, fmt.Errorf("no index on %s.%s", typeName, field)
	}
	return ix, nil
}
