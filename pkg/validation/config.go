package validation

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"
)

// ConfigValidator accumulates field errors for one configuration struct.
// Every method records its failure and returns the validator, so checks
// chain and the caller sees all problems at once.
type ConfigValidator struct {
	errors []error
	name   string // prefix of every field error
}

// NewConfigValidator returns a validator reporting fields as configName.Field
func NewConfigValidator(configName string) *ConfigValidator {
	return &ConfigValidator{
		name: configName,
	}
}

// Required fails on an empty string
func (cv *ConfigValidator) Required(field, value string) *ConfigValidator {
	if value == "" {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: required field is empty", cv.name, field))
	}
	return cv
}

// RequiredDuration fails on a zero or negative duration
func (cv *ConfigValidator) RequiredDuration(field string, value time.Duration) *ConfigValidator {
	if value <= 0 {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: required duration is not positive", cv.name, field))
	}
	return cv
}

// Greater validates that a duration strictly exceeds another one.
func (cv *ConfigValidator) Greater(field string, value time.Duration, otherField string, other time.Duration) *ConfigValidator {
	if value <= other {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: duration %v must exceed %s (%v)", cv.name, field, value, otherField, other))
	}
	return cv
}

// URL validates that a field is an absolute URL with one of the schemes.
func (cv *ConfigValidator) URL(field, value string, schemes ...string) *ConfigValidator {
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || !slices.Contains(schemes, u.Scheme) {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %q is not a %v URL", cv.name, field, value, schemes))
	}
	return cv
}

// OneOf fails unless value is in allowed
func (cv *ConfigValidator) OneOf(field, value string, allowed []string) *ConfigValidator {
	if slices.Contains(allowed, value) {
		return cv
	}
	cv.errors = append(cv.errors, fmt.Errorf("%s.%s: value %q must be one of %v", cv.name, field, value, allowed))
	return cv
}

// Custom records fn's error, wrapped so errors.Is still matches it
func (cv *ConfigValidator) Custom(field string, fn func() error) *ConfigValidator {
	if err := fn(); err != nil {
		cv.errors = append(cv.errors, fmt.Errorf("%s.%s: %w", cv.name, field, err))
	}
	return cv
}

// When runs validations only if condition holds
func (cv *ConfigValidator) When(condition bool, validations func(*ConfigValidator)) *ConfigValidator {
	if condition {
		validations(cv)
	}
	return cv
}

// HasErrors reports whether any check failed
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// Errors returns the recorded errors in check order
func (cv *ConfigValidator) Errors() []error {
	return cv.errors
}

// Validate returns nil, the single error, or all errors joined under a
// count
func (cv *ConfigValidator) Validate() error {
	if len(cv.errors) == 0 {
		return nil
	}
	if len(cv.errors) == 1 {
		return cv.errors[0]
	}
	return fmt.Errorf("%s validation failed with %d errors: %w", cv.name, len(cv.errors), errors.Join(cv.errors...))
}
