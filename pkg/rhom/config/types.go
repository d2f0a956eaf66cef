package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// TypeConfig is one entry of the types section.
type TypeConfig struct {
	Name        string
	Properties  []string
	Prefix      string
	HasPrefix   bool
	IDGenerator string
	Override    bool
	Timeout     time.Duration
	CacheTTL    time.Duration
	Cache       bool
	Indexes     []string
	Schema      map[string]any
}

// Types decodes the types section, sorted by name.
func (c Config) Types() ([]TypeConfig, error) {
	section := c.Sub("types")
	names := section.Keys()
	slices.Sort(names)

	out := make([]TypeConfig, 0, len(names))
	for _, name := range names {
		if section.Map(name) == nil {
			return nil, fmt.Errorf("type %s: expected a map", name)
		}
		tc := parseType(name, section.Sub(name))
		if _, err := tc.idGenerator(); err != nil {
			return nil, fmt.Errorf("type %s: %w", name, err)
		}
		out = append(out, tc)
	}
	return out, nil
}

func parseType(name string, c Config) TypeConfig {
	return TypeConfig{
		Name:        name,
		Properties:  c.StringSlice("properties", nil),
		Prefix:      c.String("prefix", ""),
		HasPrefix:   c.Has("prefix"),
		IDGenerator: c.String("id_generator", "uuid"),
		Override:    c.Bool("override", false),
		Timeout:     c.Duration("timeout", 0),
		CacheTTL:    c.Duration("cache_ttl", 0),
		Cache:       c.Bool("cache", c.Has("cache_ttl")),
		Indexes:     c.StringSlice("indexes", nil),
		Schema:      c.Map("schema"),
	}
}

func (tc TypeConfig) idGenerator() (rhom.IDGenerator, error) {
	switch tc.IDGenerator {
	case "", "uuid":
		return rhom.UUID(), nil
	case "uuidv7":
		return rhom.UUIDv7(), nil
	case "sequence":
		return rhom.Sequence(0), nil
	default:
		return nil, fmt.Errorf("unknown id generator %q", tc.IDGenerator)
	}
}

// Options converts the entry to descriptor options. defaultTimeout
// applies when the entry sets no timeout of its own.
func (tc TypeConfig) Options(defaultTimeout time.Duration) ([]rhom.Option, error) {
	gen, err := tc.idGenerator()
	if err != nil {
		return nil, err
	}
	opts := []rhom.Option{
		rhom.WithIDGenerator(gen),
		rhom.WithOverride(tc.Override),
	}
	if tc.Properties != nil {
		opts = append(opts, rhom.WithProperties(tc.Properties...))
	}
	if tc.HasPrefix {
		opts = append(opts, rhom.WithPrefix(tc.Prefix))
	}
	timeout := tc.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeout > 0 {
		opts = append(opts, rhom.WithTimeout(timeout))
	}
	return opts, nil
}
