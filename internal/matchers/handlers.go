package matchers

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/TimurManjosov/goexperiment/internal/condition"
)

// maxSafeInteger is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxSafeInteger = 1 << 53

type exactHandler struct{}

func (exactHandler) Accepts(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := toSafeFloat64(v)
	return ok
}

func (exactHandler) Check(conditionValue, attributeValue any) (condition.Tristate, problem) {
	switch c := conditionValue.(type) {
	case string:
		a, ok := attributeValue.(string)
		if !ok {
			return condition.Unknown, problemAttributeType
		}
		return condition.FromBool(a == c), problemNone
	case bool:
		a, ok := attributeValue.(bool)
		if !ok {
			return condition.Unknown, problemAttributeType
		}
		return condition.FromBool(a == c), problemNone
	}

	c, _ := toSafeFloat64(conditionValue)
	a, p := numericAttribute(attributeValue)
	if p != problemNone {
		return condition.Unknown, p
	}
	return condition.FromBool(a == c), problemNone
}

type substringHandler struct{}

func (substringHandler) Accepts(v any) bool {
	_, ok := v.(string)
	return ok
}

func (substringHandler) Check(conditionValue, attributeValue any) (condition.Tristate, problem) {
	a, ok := attributeValue.(string)
	if !ok {
		return condition.Unknown, problemAttributeType
	}
	return condition.FromBool(strings.Contains(a, conditionValue.(string))), problemNone
}

type numericHandler struct {
	cmp func(attribute, condition float64) bool
}

func (numericHandler) Accepts(v any) bool {
	_, ok := toSafeFloat64(v)
	return ok
}

func (h numericHandler) Check(conditionValue, attributeValue any) (condition.Tristate, problem) {
	c, _ := toSafeFloat64(conditionValue)
	a, p := numericAttribute(attributeValue)
	if p != problemNone {
		return condition.Unknown, p
	}
	return condition.FromBool(h.cmp(a, c)), problemNone
}

type semverHandler struct {
	cmp func(result int) bool
}

func (semverHandler) Accepts(v any) bool {
	_, ok := v.(string)
	return ok
}

func (h semverHandler) Check(conditionValue, attributeValue any) (condition.Tristate, problem) {
	a, ok := attributeValue.(string)
	if !ok {
		return condition.Unknown, problemAttributeType
	}
	result, ok := CompareVersions(conditionValue.(string), a)
	if !ok {
		return condition.Unknown, problemInvalidVersion
	}
	return condition.FromBool(h.cmp(result)), problemNone
}

func numericAttribute(v any) (float64, problem) {
	f, ok := toFloat64(v)
	if !ok {
		return 0, problemAttributeType
	}
	if !isSafe(f) {
		return 0, problemAttributeRange
	}
	return f, problemNone
}

func toSafeFloat64(v any) (float64, bool) {
	f, ok := toFloat64(v)
	if !ok || !isSafe(f) {
		return 0, false
	}
	return f, true
}

func isSafe(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) <= maxSafeInteger
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
