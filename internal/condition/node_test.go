package condition

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseJSON_Operators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
		wantLen  int
	}{
		{name: "and", input: `["and", "1", "2"]`, wantKind: KindAnd, wantLen: 2},
		{name: "or", input: `["or", "1"]`, wantKind: KindOr, wantLen: 1},
		{name: "not", input: `["not", "1"]`, wantKind: KindNot, wantLen: 1},
		{name: "implicit or", input: `["1", "2", "3"]`, wantKind: KindOr, wantLen: 3},
		{name: "operator tokens are case-sensitive", input: `["AND", "1"]`, wantKind: KindOr, wantLen: 2},
		{name: "empty list", input: `[]`, wantKind: KindOr, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ParseJSON([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.Kind != tt.wantKind {
				t.Fatalf("Kind = %d, want %d", n.Kind, tt.wantKind)
			}
			if len(n.Children) != tt.wantLen {
				t.Fatalf("len(Children) = %d, want %d", len(n.Children), tt.wantLen)
			}
		})
	}
}

func TestParseJSON_Leaf(t *testing.T) {
	n, err := ParseJSON([]byte(`["and", ["or", {"name": "age", "type": "custom_attribute", "match": "gt", "value": 18}]]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf := n.Children[0].Children[0]
	if leaf.Kind != KindLeaf {
		t.Fatalf("Kind = %d, want KindLeaf", leaf.Kind)
	}
	if leaf.Leaf.Name != "age" || leaf.Leaf.Match != "gt" || leaf.Leaf.Type != TypeCustomAttribute {
		t.Fatalf("unexpected leaf: %+v", leaf.Leaf)
	}
	if leaf.Leaf.Value != json.Number("18") {
		t.Fatalf("Value = %#v, want json.Number(18)", leaf.Leaf.Value)
	}
}

func TestParseJSON_LegacyLeafWithoutMatch(t *testing.T) {
	n, err := ParseJSON([]byte(`{"name": "browser", "type": "custom_attribute", "value": "chrome"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Leaf.Match != "" {
		t.Fatalf("Match = %q, want empty", n.Leaf.Match)
	}
}

func TestParse_Invalid(t *testing.T) {
	inputs := []string{`42`, `["and", true]`, `{"name": 5}`, `not json`}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseJSON([]byte(in))
			if !errors.Is(err, ErrInvalidCondition) {
				t.Fatalf("err = %v, want ErrInvalidCondition", err)
			}
		})
	}
}

func TestNode_MarshalRoundTrip(t *testing.T) {
	input := `["and",["or","1","2"],["not",{"name":"x","type":"custom_attribute","match":"exists","value":null}]]`
	n, err := ParseJSON([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := n.String(); got != input {
		t.Fatalf("String() = %s, want %s", got, input)
	}
}

func TestQualifiedSegments(t *testing.T) {
	n, err := ParseJSON([]byte(`["or",
		{"name":"odp.audiences","type":"third_party_dimension","match":"qualified","value":"seg-a"},
		["and",
			{"name":"odp.audiences","type":"third_party_dimension","match":"qualified","value":"seg-b"},
			{"name":"odp.audiences","type":"third_party_dimension","match":"qualified","value":"seg-a"},
			{"name":"age","type":"custom_attribute","match":"gt","value":20}
		]
	]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := QualifiedSegments(n)
	want := []string{"seg-a", "seg-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("QualifiedSegments() = %v, want %v", got, want)
	}
	if segs := QualifiedSegments(nil); len(segs) != 0 {
		t.Fatalf("QualifiedSegments(nil) = %v, want empty", segs)
	}
}
