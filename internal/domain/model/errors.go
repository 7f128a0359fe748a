package model

import "fmt"

// ValidationError reports caller input that was rejected before any storage
// access took place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
