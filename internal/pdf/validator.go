package pdf

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MaxScale bounds the zoom factor accepted for rendering
const MaxScale = 8.0

var pdfHeader = []byte("%PDF")

// Validator checks documents and render parameters before decoding
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateData checks an in-memory document before it is handed to a decoder
func (v *Validator) ValidateData(data []byte) error {
	if len(data) == 0 {
		return &Error{Op: "validate", Err: ErrEmptyDocument}
	}

	if v.maxFileSize > 0 && int64(len(data)) > v.maxFileSize {
		return &Error{
			Op:  "validate",
			Err: fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, len(data), v.maxFileSize),
		}
	}

	// Some producers emit a few junk bytes before the header
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfHeader) {
		return &Error{Op: "validate", Err: ErrNotPDF}
	}

	return nil
}

// ValidateStructure checks the header and limits, then parses the cross
// reference table and page tree with pdfcpu in relaxed mode
func (v *Validator) ValidateStructure(data []byte) error {
	if err := v.ValidateData(data); err != nil {
		return err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return &Error{Op: "validate", Err: fmt.Errorf("failed to read PDF context: %w", err)}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return &Error{Op: "validate", Err: fmt.Errorf("failed to ensure page count: %w", err)}
	}
	if ctx.PageCount < FirstPage {
		return &Error{Op: "validate", Err: ErrNoPages}
	}
	return nil
}

// ValidateFile performs basic validation on a PDF file path without opening it
func (v *Validator) ValidateFile(filePath string) (os.FileInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return nil, fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return fileInfo, nil
}

// ValidateScale checks that a zoom factor can be rendered
func ValidateScale(scale float64) error {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return ErrInvalidScale
	}
	if scale > MaxScale {
		return fmt.Errorf("scale %.2f exceeds maximum of %.0f", scale, MaxScale)
	}
	return nil
}
