package template

import (
	"encoding/base64"
	"fmt"
)

// CreateRequest is the body sent to create a template. FileData is the base64
// encoded PDF.
type CreateRequest struct {
	Name          string         `json:"name"`
	FileName      string         `json:"fileName"`
	FileURL       string         `json:"fileUrl,omitempty"`
	FileData      string         `json:"fileData"`
	FieldMappings []FieldMapping `json:"fieldMappings"`
}

// UpdateRequest is the body sent to update an existing template. The stored
// file is kept unless FileData is set.
type UpdateRequest struct {
	Name          string         `json:"name"`
	FileName      string         `json:"fileName"`
	FileURL       string         `json:"fileUrl,omitempty"`
	FileData      string         `json:"fileData,omitempty"`
	FieldMappings []FieldMapping `json:"fieldMappings"`
}

// SaveResponse is returned by create and update
type SaveResponse struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Record is a stored template. Timestamps are passed through as the server
// formats them.
type Record struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	FileName      string         `json:"fileName"`
	FileURL       string         `json:"fileUrl,omitempty"`
	FileData      string         `json:"fileData,omitempty"`
	FieldMappings []FieldMapping `json:"fieldMappings"`
	CreatedAt     string         `json:"createdAt,omitempty"`
	UpdatedAt     string         `json:"updatedAt,omitempty"`
}

// DecodeFile returns the raw PDF bytes of the record
func (r *Record) DecodeFile() ([]byte, error) {
	if r.FileData == "" {
		return nil, fmt.Errorf("template %d has no file data", r.ID)
	}
	data, err := base64.StdEncoding.DecodeString(r.FileData)
	if err != nil {
		return nil, fmt.Errorf("template %d: invalid file data: %w", r.ID, err)
	}
	return data, nil
}

// Summary is a list entry: a record without its file data
type Summary struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	FileName      string         `json:"fileName"`
	FileURL       string         `json:"fileUrl,omitempty"`
	FieldMappings []FieldMapping `json:"fieldMappings"`
	CreatedAt     string         `json:"createdAt,omitempty"`
	UpdatedAt     string         `json:"updatedAt,omitempty"`
}

// ListResponse is returned when listing templates
type ListResponse struct {
	Templates []Summary `json:"templates"`
	Total     int       `json:"total"`
}

// EncodeFile base64-encodes PDF bytes for a create request
func EncodeFile(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
