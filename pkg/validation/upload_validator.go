package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/pkg/models"
)

const (
	// MaxFileSizeMB is the upload ceiling in megabytes
	MaxFileSizeMB = 10
	// MaxResolution bounds both sides of a normalized image
	MaxResolution = 2048
)

// SupportedFormats lists the accepted file extensions, in display order
var SupportedFormats = []string{"jpg", "jpeg", "png", "webp"}

// UploadValidator handles upload validation logic
type UploadValidator struct {
	allowedExtensions []string
	maxBytes          int64
}

// NewUploadValidator creates an upload validator with the default limits
func NewUploadValidator() *UploadValidator {
	return &UploadValidator{
		allowedExtensions: SupportedFormats,
		maxBytes:          MaxFileSizeMB * 1024 * 1024,
	}
}

// NewUploadValidatorWithOptions creates an upload validator with custom limits
func NewUploadValidatorWithOptions(extensions []string, maxBytes int64) *UploadValidator {
	return &UploadValidator{
		allowedExtensions: extensions,
		maxBytes:          maxBytes,
	}
}

// ValidateUpload checks the declared size first, then the extension.
func (v *UploadValidator) ValidateUpload(upload *models.UploadedImage) error {
	if upload == nil {
		return apperrors.NewValidationError("No file uploaded", nil)
	}

	if upload.Size > v.maxBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("File size exceeds %dMB limit", v.maxBytes/(1024*1024)), nil)
	}

	if !v.isExtensionAllowed(Extension(upload.Filename)) {
		return apperrors.NewValidationError(
			fmt.Sprintf("Unsupported format. Supported: %s", strings.Join(v.allowedExtensions, ", ")), nil)
	}

	return nil
}

// Extension returns the lowercase extension of filename without the dot
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func (v *UploadValidator) isExtensionAllowed(ext string) bool {
	for _, allowed := range v.allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
