// Package validation provides validation rules for decision request parameters.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxUserIDLength is the maximum length for user ids
	MaxUserIDLength = 256
	// MaxKeyLength is the maximum length for experiment, flag and variation keys
	MaxKeyLength = 256
	// MaxKeysPerRequest bounds the flag keys of one decide request
	MaxKeysPerRequest = 100
	// MaxAttributes bounds the attributes of one user
	MaxAttributes = 100
	// MaxSegments bounds the qualified segments of one user
	MaxSegments = 100
)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// Message returns the error for the alphabetically first failing field, or "".
func (v *ValidationResult) Message() string {
	var first string
	for field := range v.Errors {
		if first == "" || field < first {
			first = field
		}
	}
	if first == "" {
		return ""
	}
	return v.Errors[first]
}

// UserParams contains the parameters for validating a user context
type UserParams struct {
	ID         string
	Attributes map[string]any
	Segments   []string
}

// ValidateUser validates the user context of a decision request.
// Attribute values must be JSON scalars: string, number, boolean or null.
func ValidateUser(params UserParams) *ValidationResult {
	result := NewValidationResult()

	id := strings.TrimSpace(params.ID)
	switch {
	case id == "":
		result.AddError("user.id", "User id is required")
	case utf8.RuneCountInString(params.ID) > MaxUserIDLength:
		result.AddError("user.id", fmt.Sprintf("User id must not exceed %d characters", MaxUserIDLength))
	}

	if len(params.Attributes) > MaxAttributes {
		result.AddError("user.attributes", fmt.Sprintf("User must not have more than %d attributes", MaxAttributes))
	} else {
		for name, value := range params.Attributes {
			switch value.(type) {
			case nil, string, float64, bool:
			default:
				result.AddError("user.attributes."+name, "Attribute must be a string, number, boolean or null")
			}
		}
	}

	if len(params.Segments) > MaxSegments {
		result.AddError("user.segments", fmt.Sprintf("User must not have more than %d segments", MaxSegments))
	} else {
		for i, s := range params.Segments {
			if strings.TrimSpace(s) == "" {
				result.AddError(fmt.Sprintf("user.segments[%d]", i), "Segment cannot be empty")
			}
		}
	}

	return result
}

// ValidateKey validates an experiment, flag or variation key
func ValidateKey(field, key string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(key) == "" {
		result.AddError(field, "Key is required")
		return result
	}

	if utf8.RuneCountInString(key) > MaxKeyLength {
		result.AddError(field, fmt.Sprintf("Key must not exceed %d characters", MaxKeyLength))
	}

	return result
}

// ValidateKeys validates the flag keys of a decide request. An empty list is
// valid and means every flag.
func ValidateKeys(keys []string) *ValidationResult {
	result := NewValidationResult()

	if len(keys) > MaxKeysPerRequest {
		result.AddError("keys", fmt.Sprintf("Request must not name more than %d keys", MaxKeysPerRequest))
		return result
	}

	for i, k := range keys {
		result.Merge(ValidateKey(fmt.Sprintf("keys[%d]", i), k))
	}

	return result
}
