package config

import "fmt"

// FieldError names the configuration key that failed validation
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

func indexedField(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}
