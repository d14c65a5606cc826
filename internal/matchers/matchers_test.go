package matchers

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/TimurManjosov/goexperiment/internal/condition"
)

const beyondSafe = float64(1<<53) + 2

func leaf(match string, value any) *condition.Leaf {
	return &condition.Leaf{Name: "attr", Type: condition.TypeCustomAttribute, Match: match, Value: value}
}

func attrs(v any) User {
	return User{Attributes: map[string]any{"attr": v}}
}

func TestMatch_Exact(t *testing.T) {
	tests := []struct {
		name      string
		condition any
		user      User
		want      condition.Tristate
	}{
		{name: "string equal", condition: "chrome", user: attrs("chrome"), want: condition.True},
		{name: "string differs", condition: "chrome", user: attrs("firefox"), want: condition.False},
		{name: "bool equal", condition: true, user: attrs(true), want: condition.True},
		{name: "bool differs", condition: true, user: attrs(false), want: condition.False},
		{name: "int equals float", condition: 10, user: attrs(10.0), want: condition.True},
		{name: "json number", condition: json.Number("3.5"), user: attrs(float32(3.5)), want: condition.True},
		{name: "number differs", condition: 10, user: attrs(int64(11)), want: condition.False},
		{name: "bool condition vs number attribute", condition: true, user: attrs(1), want: condition.Unknown},
		{name: "string condition vs number attribute", condition: "1", user: attrs(1), want: condition.Unknown},
		{name: "number condition vs bool attribute", condition: 1, user: attrs(true), want: condition.Unknown},
		{name: "missing attribute", condition: "x", user: User{}, want: condition.Unknown},
		{name: "null attribute", condition: "x", user: attrs(nil), want: condition.Unknown},
		{name: "attribute beyond safe range", condition: 1, user: attrs(beyondSafe), want: condition.Unknown},
		{name: "condition beyond safe range", condition: beyondSafe, user: attrs(beyondSafe), want: condition.Unknown},
		{name: "unsupported condition value", condition: []any{"a"}, user: attrs("a"), want: condition.Unknown},
		{name: "legacy leaf without match", condition: "chrome", user: attrs("chrome"), want: condition.True},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := MatchExact
			if tt.name == "legacy leaf without match" {
				match = ""
			}
			got, _ := Match(leaf(match, tt.condition), tt.user)
			if got != tt.want {
				t.Fatalf("Match() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatch_Exists(t *testing.T) {
	tests := []struct {
		name string
		user User
		want condition.Tristate
	}{
		{name: "present", user: attrs("anything"), want: condition.True},
		{name: "present false bool", user: attrs(false), want: condition.True},
		{name: "absent", user: User{}, want: condition.False},
		{name: "null", user: attrs(nil), want: condition.False},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Match(leaf(MatchExists, nil), tt.user)
			if got != tt.want {
				t.Fatalf("Match() = %s, want %s", got, tt.want)
			}
			if reason != "" {
				t.Fatalf("unexpected reason %q", reason)
			}
		})
	}
}

func TestMatch_Substring(t *testing.T) {
	tests := []struct {
		name      string
		condition any
		user      User
		want      condition.Tristate
	}{
		{name: "contains", condition: "prem", user: attrs("premium_plan"), want: condition.True},
		{name: "does not contain", condition: "gold", user: attrs("premium_plan"), want: condition.False},
		{name: "non-string attribute", condition: "1", user: attrs(12), want: condition.Unknown},
		{name: "non-string condition", condition: 1, user: attrs("12"), want: condition.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Match(leaf(MatchSubstring, tt.condition), tt.user); got != tt.want {
				t.Fatalf("Match() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatch_Numeric(t *testing.T) {
	tests := []struct {
		name      string
		match     string
		condition any
		attribute any
		want      condition.Tristate
	}{
		{name: "gt true", match: MatchGT, condition: 10, attribute: 11, want: condition.True},
		{name: "gt equal is false", match: MatchGT, condition: 10, attribute: 10, want: condition.False},
		{name: "ge equal", match: MatchGE, condition: 10, attribute: 10.0, want: condition.True},
		{name: "lt true", match: MatchLT, condition: 10, attribute: 9.5, want: condition.True},
		{name: "lt false", match: MatchLT, condition: 10, attribute: 12, want: condition.False},
		{name: "le equal", match: MatchLE, condition: json.Number("10"), attribute: uint8(10), want: condition.True},
		{name: "gt string attribute", match: MatchGT, condition: 10, attribute: "11", want: condition.Unknown},
		{name: "gt bool attribute", match: MatchGT, condition: 0, attribute: true, want: condition.Unknown},
		{name: "gt attribute beyond range", match: MatchGT, condition: 10, attribute: beyondSafe, want: condition.Unknown},
		{name: "lt attribute beyond range", match: MatchLT, condition: 10, attribute: -beyondSafe, want: condition.Unknown},
		{name: "gt condition not numeric", match: MatchGT, condition: "10", attribute: 11, want: condition.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Match(leaf(tt.match, tt.condition), attrs(tt.attribute)); got != tt.want {
				t.Fatalf("Match() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatch_Semver(t *testing.T) {
	tests := []struct {
		name      string
		match     string
		condition string
		attribute any
		want      condition.Tristate
	}{
		{name: "eq exact", match: MatchSemverEQ, condition: "3.7.1", attribute: "3.7.1", want: condition.True},
		{name: "eq release vs prerelease", match: MatchSemverEQ, condition: "3.7.1", attribute: "3.7.1-beta", want: condition.False},
		{name: "eq major prefix", match: MatchSemverEQ, condition: "3", attribute: "3.2.5", want: condition.True},
		{name: "eq minor prefix", match: MatchSemverEQ, condition: "3.7", attribute: "3.7.9", want: condition.True},
		{name: "eq prefix mismatch", match: MatchSemverEQ, condition: "3.7", attribute: "3.8.0", want: condition.False},
		{name: "eq build ignored", match: MatchSemverEQ, condition: "3.7.1", attribute: "3.7.1+build.5", want: condition.True},
		{name: "gt release above prerelease", match: MatchSemverGT, condition: "1.0.0-beta", attribute: "1.0.0", want: condition.True},
		{name: "lt prerelease below release", match: MatchSemverLT, condition: "1.0.0", attribute: "1.0.0-beta", want: condition.True},
		{name: "gt minor", match: MatchSemverGT, condition: "2.1.0", attribute: "2.2.0", want: condition.True},
		{name: "ge equal", match: MatchSemverGE, condition: "2.1.0", attribute: "2.1.0", want: condition.True},
		{name: "le lower", match: MatchSemverLE, condition: "2.1.0", attribute: "2.0.9", want: condition.True},
		{name: "less specific attribute is lower", match: MatchSemverLT, condition: "2.0.1", attribute: "2.0", want: condition.True},
		{name: "invalid attribute", match: MatchSemverEQ, condition: "3.7.1", attribute: "3.7.1.2", want: condition.Unknown},
		{name: "attribute with space", match: MatchSemverEQ, condition: "3.7.1", attribute: "3.7 .1", want: condition.Unknown},
		{name: "invalid condition", match: MatchSemverGT, condition: "a.b.c", attribute: "1.0.0", want: condition.Unknown},
		{name: "empty component", match: MatchSemverGT, condition: "1..0", attribute: "1.0.0", want: condition.Unknown},
		{name: "non-string attribute", match: MatchSemverEQ, condition: "3", attribute: 3, want: condition.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Match(leaf(tt.match, tt.condition), attrs(tt.attribute)); got != tt.want {
				t.Fatalf("Match() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMatch_Qualified(t *testing.T) {
	l := &condition.Leaf{Name: "odp.audiences", Type: condition.TypeThirdPartyDimension, Match: MatchQualified, Value: "seg-a"}

	got, _ := Match(l, User{QualifiedSegments: []string{"seg-b", "seg-a"}})
	if got != condition.True {
		t.Fatalf("Match() = %s, want TRUE", got)
	}
	got, _ = Match(l, User{QualifiedSegments: []string{"seg-b"}})
	if got != condition.False {
		t.Fatalf("Match() = %s, want FALSE", got)
	}
}

func TestMatch_UnknownTypesReportReason(t *testing.T) {
	tests := []struct {
		name       string
		leaf       *condition.Leaf
		wantReason string
	}{
		{
			name:       "unknown condition type",
			leaf:       &condition.Leaf{Name: "attr", Type: "geo", Match: MatchExact, Value: "x"},
			wantReason: "unknown condition type",
		},
		{
			name:       "unknown match type",
			leaf:       leaf("regex", "x"),
			wantReason: "unknown match type",
		},
		{
			name:       "missing attribute",
			leaf:       leaf(MatchExact, "x"),
			wantReason: `no value was passed for user attribute "attr"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Match(tt.leaf, User{})
			if got != condition.Unknown {
				t.Fatalf("Match() = %s, want UNKNOWN", got)
			}
			if !strings.Contains(reason, tt.wantReason) {
				t.Fatalf("reason = %q, want it to contain %q", reason, tt.wantReason)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		target, attribute string
		want              int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", 1},
		{"1.0.1", "1.0.0", -1},
		{"1.0.0-beta", "1.0.0-alpha", -1},
		{"1.0.0-beta.2", "1.0.0-beta.10", 1},
		{"1", "1.9.9", 0},
		{"1", "2.0.0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.target+"_vs_"+tt.attribute, func(t *testing.T) {
			got, ok := CompareVersions(tt.target, tt.attribute)
			if !ok {
				t.Fatalf("CompareVersions(%q, %q) reported invalid", tt.target, tt.attribute)
			}
			if got != tt.want {
				t.Fatalf("CompareVersions(%q, %q) = %d, want %d", tt.target, tt.attribute, got, tt.want)
			}
		})
	}
}
