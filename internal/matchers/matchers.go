// Package matchers implements the leaf comparisons used by audience
// conditions. Every matcher returns a condition.Tristate: a type mismatch,
// a missing attribute or an out-of-range number yields Unknown instead of a
// guess, and the accompanying reason explains why.
package matchers

import (
	"fmt"
	"slices"

	"github.com/TimurManjosov/goexperiment/internal/condition"
)

// Match type tokens as they appear in the datafile.
const (
	MatchExact     = "exact"
	MatchExists    = "exists"
	MatchSubstring = "substring"
	MatchGT        = "gt"
	MatchGE        = "ge"
	MatchLT        = "lt"
	MatchLE        = "le"
	MatchSemverEQ  = "semver_eq"
	MatchSemverGT  = "semver_gt"
	MatchSemverGE  = "semver_ge"
	MatchSemverLT  = "semver_lt"
	MatchSemverLE  = "semver_le"
	MatchQualified = condition.MatchQualified
)

// User is the part of the user context leaves are matched against.
type User struct {
	Attributes        map[string]any
	QualifiedSegments []string
}

// handler compares one condition value with one attribute value.
type handler interface {
	// Accepts reports whether the condition value is usable by this matcher.
	Accepts(conditionValue any) bool
	Check(conditionValue, attributeValue any) (condition.Tristate, problem)
}

type problem uint8

const (
	problemNone problem = iota
	problemAttributeType
	problemAttributeRange
	problemInvalidVersion
)

var handlers = map[string]handler{
	MatchExact:     exactHandler{},
	MatchSubstring: substringHandler{},
	MatchGT:        numericHandler{cmp: func(a, c float64) bool { return a > c }},
	MatchGE:        numericHandler{cmp: func(a, c float64) bool { return a >= c }},
	MatchLT:        numericHandler{cmp: func(a, c float64) bool { return a < c }},
	MatchLE:        numericHandler{cmp: func(a, c float64) bool { return a <= c }},
	MatchSemverEQ:  semverHandler{cmp: func(r int) bool { return r == 0 }},
	MatchSemverGT:  semverHandler{cmp: func(r int) bool { return r > 0 }},
	MatchSemverGE:  semverHandler{cmp: func(r int) bool { return r >= 0 }},
	MatchSemverLT:  semverHandler{cmp: func(r int) bool { return r < 0 }},
	MatchSemverLE:  semverHandler{cmp: func(r int) bool { return r <= 0 }},
}

// Match evaluates leaf against user. The returned reason is empty unless the
// result is Unknown for a reason worth reporting.
func Match(leaf *condition.Leaf, user User) (condition.Tristate, string) {
	if leaf == nil {
		return condition.Unknown, "Audience condition is empty."
	}
	quoted := quote(leaf)

	switch leaf.Type {
	case condition.TypeCustomAttribute, condition.TypeThirdPartyDimension:
	default:
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s uses an unknown condition type. You may need to upgrade to a newer release.`, quoted)
	}

	matchType := leaf.Match
	if matchType == "" {
		matchType = MatchExact
	}

	switch matchType {
	case MatchExists:
		v, ok := user.Attributes[leaf.Name]
		return condition.FromBool(ok && v != nil), ""
	case MatchQualified:
		segment, ok := leaf.Value.(string)
		if !ok {
			return condition.Unknown, unsupportedValue(quoted)
		}
		return condition.FromBool(slices.Contains(user.QualifiedSegments, segment)), ""
	}

	h, ok := handlers[matchType]
	if !ok {
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s uses an unknown match type. You may need to upgrade to a newer release.`, quoted)
	}
	if !h.Accepts(leaf.Value) {
		return condition.Unknown, unsupportedValue(quoted)
	}

	attr, present := user.Attributes[leaf.Name]
	if !present {
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s evaluated to UNKNOWN because no value was passed for user attribute "%s".`, quoted, leaf.Name)
	}
	if attr == nil {
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s evaluated to UNKNOWN because a null value was passed for user attribute "%s".`, quoted, leaf.Name)
	}

	result, p := h.Check(leaf.Value, attr)
	switch p {
	case problemAttributeType:
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s evaluated to UNKNOWN because a value of type "%T" was passed for user attribute "%s".`, quoted, attr, leaf.Name)
	case problemAttributeRange:
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s evaluated to UNKNOWN because the number value for user attribute "%s" is not in the range [-2^53, +2^53].`, quoted, leaf.Name)
	case problemInvalidVersion:
		return condition.Unknown, fmt.Sprintf(
			`Audience condition %s evaluated to UNKNOWN because the version value for user attribute "%s" or the condition is invalid.`, quoted, leaf.Name)
	}
	return result, ""
}

func unsupportedValue(quoted string) string {
	return fmt.Sprintf(
		`Audience condition %s has an unsupported condition value. You may need to upgrade to a newer release.`, quoted)
}

func quote(leaf *condition.Leaf) string {
	return condition.LeafNode(*leaf).String()
}
