// Package convert validates input files and drives one video-to-audio
// extraction at a time against the media engine.
package convert

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxInputBytes is the input size ceiling. Files of exactly this size are
// accepted; one byte more is rejected.
const MaxInputBytes = 250 * 1024 * 1024

// allowedExtensions is the fixed extension allow-list, matched
// case-insensitively against the filename.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
}

// allowedTypes is the fixed media-type allow-list for the declared
// content type.
var allowedTypes = map[string]bool{
	"video/mp4":        true,
	"video/x-msvideo":  true,
	"video/quicktime":  true,
	"video/x-matroska": true,
	"video/webm":       true,
	"video/x-flv":      true,
}

// ValidationError is a rejection produced before any engine interaction.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validate is the pure gate in front of the engine: it rejects oversized
// or unsupported inputs and nothing else. No content sniffing, no codec
// inspection; anything deeper is the engine's problem.
func Validate(name string, size int64, contentType string) error {
	if size > MaxInputBytes {
		return &ValidationError{Reason: fmt.Sprintf(
			"file is %s, which exceeds the %s limit",
			humanize.IBytes(uint64(size)),
			humanize.IBytes(uint64(MaxInputBytes)),
		)}
	}

	if allowedTypes[strings.ToLower(contentType)] {
		return nil
	}
	if allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return nil
	}

	return &ValidationError{Reason: fmt.Sprintf(
		"unsupported file type %q: expected one of mp4, avi, mov, mkv, webm, flv", name,
	)}
}

// IsValidationError reports whether err is a pre-engine rejection.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
