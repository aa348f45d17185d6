package pdf

import (
	"fmt"
	"os"
	"path/filepath"
)

// Reader loads template files from disk
type Reader struct {
	validator *Validator
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(maxFileSize int64) *Reader {
	return &Reader{
		validator: NewValidator(maxFileSize),
	}
}

// ReadFile reads a PDF file into memory after validating it
func (r *Reader) ReadFile(path string) (*Document, error) {
	fileInfo, err := r.validator.ValidateFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	if err := r.validator.ValidateData(data); err != nil {
		return nil, err
	}

	return &Document{
		Name: filepath.Base(path),
		Path: path,
		Size: fileInfo.Size(),
		Data: data,
	}, nil
}
