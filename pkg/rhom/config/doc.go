/*
Package config loads rhom type definitions and runtime settings from
YAML, JSON or TOML files, with environment overrides.

# Overview

A Config wraps a decoded map[string]any. Its accessors return a default
when a key is missing or has the wrong type, so file loading never needs
type assertions:

	cfg, err := config.FromFile("rhom.yaml")
	if err != nil {
	    return err
	}
	ttl := cfg.Sub("types").Sub("User").Duration("cache_ttl", 0)

# Type Definitions

The types section declares one entry per entity type:

	types:
	  User:
	    properties: [email, name]
	    prefix: app:user
	    id_generator: uuidv7     # uuid (default), uuidv7, sequence
	    timeout: 500ms
	    cache_ttl: 1m
	    indexes: [email]
	    schema:
	      type: object
	      required: [email]

Types returns them sorted by name; TypeConfig.Options turns one into
rhom options. Plugins (cache, index, validation) are wired by the caller
from the remaining fields.

# Settings

The settings section holds process options. LoadSettings reads it and
then applies RHOM_DATA_DIR, RHOM_DEFAULT_TIMEOUT and RHOM_LOG_LEVEL from
the environment, which win over the file.

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
