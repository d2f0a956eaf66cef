package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type format struct {
	name      string
	unmarshal func([]byte, any) error
}

var (
	yamlFormat = format{"yaml", yaml.Unmarshal}
	jsonFormat = format{"json", json.Unmarshal}
	tomlFormat = format{"toml", toml.Unmarshal}
)

// formats maps file extensions to decoders.
var formats = map[string]format{
	".yaml": yamlFormat,
	".yml":  yamlFormat,
	".json": jsonFormat,
	".toml": tomlFormat,
}

// FromFile loads a config file, choosing the format by extension:
// .yaml, .yml, .json or .toml.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, ok := formats[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return f.decode(data)
}

// FromYAML parses a YAML document.
func FromYAML(data []byte) (Config, error) { return yamlFormat.decode(data) }

// FromJSON parses a JSON document.
func FromJSON(data []byte) (Config, error) { return jsonFormat.decode(data) }

// FromTOML parses a TOML document.
func FromTOML(data []byte) (Config, error) { return tomlFormat.decode(data) }

func (f format) decode(data []byte) (Config, error) {
	var m map[string]any
	if err := f.unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", f.name, err)
	}
	return New(m), nil
}
