// Package validate provides configuration validation utilities shared by the
// daemon, the admission policy and the API.
//
// Every helper goes through the go-playground/validator instance set up in
// network.go so error text stays consistent across entry points.
package validate

import (
	"fmt"
	"time"
)

// ValidatePortRange validates that a port number is within 1-65535.
// Port 0 is rejected because operators and peers need a predictable address.
func ValidatePortRange(port int) error {
	return ValidateField(port, "required,min=1,max=65535")
}

// ValidateRequiredString validates that a string field is not empty.
func ValidateRequiredString(value, fieldName string) error {
	if err := ValidateField(value, "required"); err != nil {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidatePositiveTimeout validates that a duration is positive (> 0).
//
// Used for API client timeouts, shutdown timeouts and the dispatch tick
// interval, where zero would mean busy looping or never waiting.
func ValidatePositiveTimeout(timeout time.Duration, name string) error {
	if timeout <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

// ValidateStruct validates a struct against its `validate` tags.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
