package validation

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator collects field errors from programmatic checks.
type Validator struct {
	errs []FieldError
}

// New creates an empty Validator.
func New() *Validator {
	return &Validator{}
}

// Add records an error for field.
func (v *Validator) Add(field, message string) *Validator {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
	return v
}

// Check records message for field unless ok holds.
func (v *Validator) Check(ok bool, field, message string) *Validator {
	if !ok {
		v.Add(field, message)
	}
	return v
}

// Required checks that value is not blank.
func (v *Validator) Required(field, value string) *Validator {
	return v.Check(strings.TrimSpace(value) != "", field, "is required")
}

// URL checks that value is an absolute URL with a host and one of schemes,
// http and https when none are given.
func (v *Validator) URL(field, value string, schemes ...string) *Validator {
	if msg := checkURL(value, schemes); msg != "" {
		v.Add(field, msg)
	}
	return v
}

func checkURL(value string, schemes []string) string {
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	u, err := url.Parse(value)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "must be an absolute URL"
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Sprintf("unsupported scheme %q", u.Scheme)
	}
	return ""
}

// OneOf checks that value is one of allowed.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	return v.Check(slices.Contains(allowed, value), field, "must be one of: "+strings.Join(allowed, ", "))
}

// Errors returns the collected errors.
func (v *Validator) Errors() []FieldError {
	return v.errs
}

// Err returns an INVALID_CONFIG error listing every failed check, or nil.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(v.errs))
	for _, e := range v.errs {
		messages = append(messages, e.Field+": "+e.Message)
	}
	return fieldsError(v.errs, messages)
}
