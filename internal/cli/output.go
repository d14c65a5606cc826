// Package cli holds output formatting and the config file of the flagship CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goexperiment/internal/sdk"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Table is the tabular rendering of a value.
type Table struct {
	Header []string
	Rows   [][]string
}

// Print writes data as JSON or YAML, or table when format is table.
func Print(w io.Writer, format OutputFormat, data any, table Table) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(data)
	case FormatTable:
		return printTable(w, table)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTable(w io.Writer, t Table) error {
	table := tablewriter.NewWriter(w)
	table.Header(toAny(t.Header)...)
	for _, row := range t.Rows {
		if err := table.Append(toAny(row)...); err != nil {
			return err
		}
	}
	return table.Render()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// PrintDecisions outputs flag decisions in the specified format
func PrintDecisions(w io.Writer, decisions []sdk.Decision, format OutputFormat) error {
	t := Table{Header: []string{"Flag", "Enabled", "Variation", "Rule", "Source", "Variables"}}
	for _, d := range decisions {
		t.Rows = append(t.Rows, []string{
			d.FlagKey,
			strconv.FormatBool(d.Enabled),
			orDash(d.VariationKey),
			orDash(d.RuleKey),
			d.Source,
			formatVariables(d.Variables),
		})
	}
	if format == FormatJSON {
		return Print(w, format, map[string][]sdk.Decision{"decisions": decisions}, t)
	}
	return Print(w, format, decisions, t)
}

// formatVariables renders variables as sorted key=value pairs.
func formatVariables(vars map[string]any) string {
	if len(vars) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		v := vars[k]
		if m, ok := v.(map[string]any); ok {
			b, _ := json.Marshal(m)
			v = string(b)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	description := strings.Join(parts, " ")
	if len(description) > 60 {
		description = description[:57] + "..."
	}
	return description
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ParseAttributes converts --attr key=value strings into typed attributes:
// numbers become float64, true/false become bool, the rest stay strings.
func ParseAttributes(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	attrs := make(map[string]any, len(raw))
	for k, v := range raw {
		switch {
		case v == "true" || v == "false":
			attrs[k] = v == "true"
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				attrs[k] = f
			} else {
				attrs[k] = v
			}
		}
	}
	return attrs
}
