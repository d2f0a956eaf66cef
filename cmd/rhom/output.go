package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// record is the printed form of an instance.
func record(inst *rhom.Instance) map[string]any {
	if inst == nil {
		return nil
	}
	out := inst.Fields()
	out["id"] = inst.ID()
	return out
}

func (a *app) jsonOutput() bool { return a.v.GetBool(keyJSON) }

func (a *app) printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printInstances writes one block per instance: the id, then each set
// field as "  name: value" in name order.
func (a *app) printInstances(w io.Writer, list []*rhom.Instance) error {
	if a.jsonOutput() {
		records := make([]map[string]any, len(list))
		for i, inst := range list {
			records[i] = record(inst)
		}
		return a.printJSON(w, records)
	}

	var b strings.Builder
	for _, inst := range list {
		if inst == nil {
			b.WriteString("(not found)\n")
			continue
		}
		fields := inst.Fields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		slices.Sort(names)

		b.WriteString(inst.ID())
		b.WriteByte('\n')
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %v\n", name, fields[name])
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (a *app) printLines(w io.Writer, lines []string) error {
	if a.jsonOutput() {
		if lines == nil {
			lines = []string{}
		}
		return a.printJSON(w, lines)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// parseValue reads a command-line value as JSON when it parses as a
// number, bool, null, object or array, and as a plain string otherwise.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		if _, isString := v.(string); !isString {
			return v
		}
	}
	return s
}

// parseAssignments splits field=value arguments.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		out[name] = parseValue(value)
	}
	return out, nil
}
