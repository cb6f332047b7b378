package upload

import (
	"errors"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/msmeflow/quoteflow/internal/records"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 5 * 1024 * 1024

// Mime types accepted for workbooks.
const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS  = "application/vnd.ms-excel"
	MimePDF  = "application/pdf"
)

// User-facing validation messages.
const (
	MsgOnlyPDF   = "Please upload only PDF files"
	MsgOnlyExcel = "Please upload only Excel files (.xlsx)"
	MsgTooLarge  = "File size must be less than 5MB"
)

// Buckets.
const (
	BucketExcel = "excel-files"
	BucketPDF   = "pdf-files"
)

// ErrValidation marks upload validation failures.
var ErrValidation = errors.New("validation failed")

// ValidationError carries the message shown to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Type is what the user said they are uploading.
type Type string

const (
	TypePriceList Type = "price-list"
	TypeQuotation Type = "quotation"
	TypePDF       Type = "pdf"
)

// ParseType validates an upload type name.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePriceList, TypeQuotation, TypePDF:
		return Type(s), nil
	}
	return "", &ValidationError{Field: "type", Message: fmt.Sprintf("unknown upload type %q", s)}
}

// Bucket returns the bucket objects of this type go to.
func (t Type) Bucket() string {
	if t == TypePDF {
		return BucketPDF
	}
	return BucketExcel
}

// RecordKind returns the record table for the type, if any.
func (t Type) RecordKind() (records.Kind, bool) {
	switch t {
	case TypePriceList:
		return records.KindPriceList, true
	case TypeQuotation:
		return records.KindQuotation, true
	}
	return "", false
}

// DetectMime returns contentType, or a type derived from the file extension
// when the client sent none.
func DetectMime(name, contentType string) string {
	if ct := strings.TrimSpace(strings.Split(contentType, ";")[0]); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return MimePDF
	case ".xlsx":
		return MimeXLSX
	case ".xls":
		return MimeXLS
	}
	return contentType
}

// ValidateFile checks the mime type and size of a file before upload.
func ValidateFile(t Type, name, contentType string, size int64) error {
	mimeType := DetectMime(name, contentType)
	if t == TypePDF {
		if mimeType != MimePDF {
			return &ValidationError{Field: "file", Message: MsgOnlyPDF}
		}
	} else if mimeType != MimeXLSX && mimeType != MimeXLS {
		return &ValidationError{Field: "file", Message: MsgOnlyExcel}
	}
	if size > MaxFileSize {
		return &ValidationError{Field: "file", Message: MsgTooLarge}
	}
	return nil
}

// ObjectKey builds the storage key of a new upload.
func ObjectKey(userID, name string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s", userID, now.UnixMilli(), path.Base(name))
}

// FormatFileSize renders a byte count with binary units, at most two
// decimals and no trailing zeros.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	sizes := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizes[i]
}

// FileType is "PDF" for .pdf names and "Excel" otherwise.
func FileType(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return "PDF"
	}
	return "Excel"
}
