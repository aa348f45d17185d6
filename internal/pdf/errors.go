package pdf

import (
	"errors"
	"fmt"
)

// Error describes a failure while decoding or rendering a document
type Error struct {
	Op  string `json:"operation"`
	Err error  `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("pdf %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common error variables
var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrNotPDF        = errors.New("missing %PDF header")
	ErrTooLarge      = errors.New("document exceeds maximum file size")
	ErrNoPages       = errors.New("document has no pages")
	ErrInvalidScale  = errors.New("scale must be greater than zero")
)
