package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goexperiment/internal/sdk"
)

var decisions = []sdk.Decision{
	{FlagKey: "flag-checkout", Enabled: true, VariationKey: "feature-on", RuleKey: "exp-feature", Source: "feature-test",
		Variables: map[string]any{"color": "red", "config": map[string]any{"a": 2}}},
	{FlagKey: "flag-dark", Source: "rollout", Variables: map[string]any{}},
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPrintDecisions_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintDecisions(&buf, decisions, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Decisions []sdk.Decision `json:"decisions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(out.Decisions) != 2 || out.Decisions[0].VariationKey != "feature-on" {
		t.Errorf("unexpected decisions: %+v", out.Decisions)
	}
}

func TestPrintDecisions_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintDecisions(&buf, decisions, FormatYAML); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(out) != 2 || out[0]["flagKey"] != "flag-checkout" || out[0]["enabled"] != true {
		t.Errorf("unexpected YAML: %v", out)
	}
}

func TestPrintDecisions_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintDecisions(&buf, decisions, FormatTable); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"flag-checkout", "feature-on", "exp-feature", "color=red", "flag-dark"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestPrint_UnsupportedFormat(t *testing.T) {
	if err := Print(&bytes.Buffer{}, "xml", nil, Table{}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatVariables(t *testing.T) {
	if got := formatVariables(nil); got != "-" {
		t.Errorf("formatVariables(nil) = %q", got)
	}
	long := map[string]any{"a": strings.Repeat("x", 100)}
	if got := formatVariables(long); len(got) != 60 || !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation, got %q", got)
	}
}

func TestParseAttributes(t *testing.T) {
	got := ParseAttributes(map[string]string{
		"browser": "chrome",
		"age":     "30",
		"price":   "9.5",
		"premium": "true",
		"version": "2.0.1",
	})
	want := map[string]any{
		"browser": "chrome",
		"age":     float64(30),
		"price":   9.5,
		"premium": true,
		"version": "2.0.1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %#v, want %#v", k, got[k], v)
		}
	}
	if ParseAttributes(nil) != nil {
		t.Error("expected nil for no attributes")
	}
}
