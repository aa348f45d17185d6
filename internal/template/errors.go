package template

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSelection is returned when a mapping is requested without any selected text run
	ErrNoSelection = errors.New("no text runs selected")

	// ErrMappingNotFound is returned for operations on an unknown mapping id
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrDuplicateID is returned when adding a mapping whose id is already stored
	ErrDuplicateID = errors.New("duplicate mapping id")
)

// ValidationError reports a rejected save or mapping field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
