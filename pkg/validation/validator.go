package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxAPIs          = 32
	MaxAPINameLength = 32
	MaxIDLength      = 128

	// Regular expressions
	apiNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	idPattern      = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)
)

func init() {
	validate = validator.New()
}

// Struct validates v using its struct tags
func Struct(v any) error {
	return formatValidationError(validate.Struct(v))
}

// ValidateSnapshot validates a session endpoint response
func ValidateSnapshot(snap *authstate.Snapshot) error {
	if snap == nil {
		return errors.New("session snapshot cannot be nil")
	}

	if err := Struct(snap); err != nil {
		return err
	}

	lists := []struct {
		field string
		names []string
	}{
		{"ValidTokens", snap.ValidTokens},
		{"MissingAPIs", snap.MissingAPIs},
		{"ConfiguredAPIs", snap.ConfiguredAPIs},
	}
	for _, l := range lists {
		if len(l.names) > MaxAPIs {
			return fmt.Errorf("%s: maximum %d APIs allowed, got %d", l.field, MaxAPIs, len(l.names))
		}
		for _, name := range l.names {
			if err := ValidateAPIName(name); err != nil {
				return fmt.Errorf("%s: %w", l.field, err)
			}
		}
	}

	return nil
}

// ValidateAPIName validates a token API name such as PRIMARY or WS_MD
func ValidateAPIName(name string) error {
	if name == "" {
		return errors.New("API name cannot be empty")
	}
	if len(name) > MaxAPINameLength {
		return fmt.Errorf("API name '%s' exceeds maximum length of %d characters", name, MaxAPINameLength)
	}
	if !apiNamePattern.MatchString(name) {
		return fmt.Errorf("API name '%s' is invalid (upper-case letters, digits and underscore only)", name)
	}
	return nil
}

// ValidateID validates a tab or session identifier
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters", kind, MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s '%s' contains invalid characters", kind, id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "gte", "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
