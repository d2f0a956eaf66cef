package config

import (
	"time"
)

// Config wraps a decoded configuration map for typed value extraction.
// Accessors return defaultVal if the key is missing or the value cannot
// be converted to the requested type.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map behaves as an empty section.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// String returns the string value for key.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration value for key. Strings go through
// time.ParseDuration; bare numbers are seconds, whichever numeric type
// the decoder produced (int from YAML, int64 from TOML, float64 from
// JSON).
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return defaultVal
}

// Bool returns the boolean value for key.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key. A float64 converts only if it
// has no fractional part.
func (c Config) Int(key string, defaultVal int) int {
	switch val := c.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// StringSlice returns the string list for key. Every element must be a
// string, otherwise defaultVal is returned.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	switch val := c.data[key].(type) {
	case []string:
		return val
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Map returns the nested map for key, or nil if key is not a map.
func (c Config) Map(key string) map[string]any {
	switch val := c.data[key].(type) {
	case map[string]any:
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			if ks, ok := k.(string); ok {
				out[ks] = v
			}
		}
		return out
	}
	return nil
}

// Sub returns the nested section for key as a Config. A missing or
// non-map key yields an empty Config.
func (c Config) Sub(key string) Config {
	return New(c.Map(key))
}

// Keys returns the top-level keys, unordered.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys
}

// Has reports whether key is present, even with a nil value.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw exposes the decoded map. Callers must treat it as read-only.
func (c Config) Raw() map[string]any {
	return c.data
}
