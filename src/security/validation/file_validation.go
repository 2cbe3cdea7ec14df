package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/username/cryptotax/src/logger"
)

// ErrValidationFailed marks an uploaded file rejected before parsing.
var ErrValidationFailed = errors.New("file validation failed")

// allowedClientContentTypes lists, per import source, the MIME types a client
// may declare for the uploaded file.
var allowedClientContentTypes = map[string]map[string]bool{
	"csv": {
		"text/csv":                 true,
		"application/csv":          true,
		"application/vnd.ms-excel": true, // Often used for CSV by older Excel
		"text/plain":               true,
		"application/octet-stream": true,
	},
	"json": {
		"application/json":         true,
		"text/json":                true,
		"text/plain":               true,
		"application/octet-stream": true,
	},
}

// Detected types accepted after sniffing the first bytes. Both formats are
// text; anything binary is refused.
var allowedDetectedTypes = map[string]bool{
	"text/plain":               true,
	"text/csv":                 true,
	"application/csv":          true,
	"application/json":         true,
	"application/octet-stream": true,
}

// ValidateClientContentType checks the Content-Type header the client sent for
// the file part. An empty header is accepted.
func ValidateClientContentType(source, contentType string) error {
	allowed, ok := allowedClientContentTypes[strings.ToLower(source)]
	if !ok {
		return fmt.Errorf("%w: unsupported import source '%s'", ErrValidationFailed, source)
	}
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if !allowed[mediaType] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType, "source", source)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed for %s import", ErrValidationFailed, contentType, source)
	}
	return nil
}

// ValidateFileContentByMagicBytes sniffs the file signature and rewinds the
// reader so the parser sees the whole file.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrValidationFailed)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("%w: detected file content type '%s' is not a text file", ErrValidationFailed, detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
