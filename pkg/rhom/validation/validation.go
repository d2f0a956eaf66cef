// Package validation checks instances against a JSON schema before they
// are saved.
//
// The plugin listens on beforeSave. An instance that fails the schema
// settles the save with an *Error, so the primary phase is skipped and
// nothing reaches storage.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("validation failed")

// Error reports why an instance did not match the schema.
type Error struct {
	Type string
	ID   string
	Err  error
}

// Error implements error.
func (e *Error) Error() string {
	return "validation error(s): " + e.Err.Error()
}

// Unwrap returns ErrInvalid and the schema error.
func (e *Error) Unwrap() []error {
	return []error{ErrInvalid, e.Err}
}

// Plugin validates saves against a resolved schema.
type Plugin struct {
	schema *jsonschema.Resolved
}

var _ rhom.Plugin = (*Plugin)(nil)

// New resolves schema and returns a plugin enforcing it.
func New(schema *jsonschema.Schema) (*Plugin, error) {
	if schema == nil {
		return nil, errors.New("validation: nil schema")
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return &Plugin{schema: resolved}, nil
}

// FromJSON decodes and resolves a JSON schema document.
func FromJSON(data []byte) (*Plugin, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return New(&schema)
}

// FromMap builds a plugin from a decoded schema, such as the schema
// section of a type in a config file.
func FromMap(m map[string]any) (*Plugin, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return FromJSON(data)
}

// Name implements rhom.Plugin.
func (p *Plugin) Name() string { return "Validator" }

// Description implements rhom.Plugin.
func (p *Plugin) Description() string { return "JSON schema validation on save" }

// Install implements rhom.Plugin.
func (p *Plugin) Install(d *rhom.Descriptor) error {
	d.Subscribe(rhom.Before(rhom.OpSave), func(ev *rhom.Event) {
		if ev.Handled() {
			return
		}
		if err := p.Validate(ev.Instance()); err != nil {
			ev.Failure(err)
		}
	})
	return nil
}

// Validate checks the instance's set fields. Unset fields are absent
// from the document, so "required" applies to them.
func (p *Plugin) Validate(inst *rhom.Instance) error {
	doc, err := document(inst)
	if err != nil {
		return err
	}
	if err := p.schema.Validate(doc); err != nil {
		return &Error{Type: inst.Descriptor().Name(), ID: inst.ID(), Err: err}
	}
	return nil
}

// document normalizes the field map to JSON value types.
func document(inst *rhom.Instance) (map[string]any, error) {
	fields := inst.ToFieldMap()
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", inst.Descriptor().Name(), err)
	}
	doc := make(map[string]any, len(fields))
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", inst.Descriptor().Name(), err)
	}
	return doc, nil
}
