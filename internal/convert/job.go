package convert

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Status is the observable stage of a conversion job.
type Status int

const (
	// StatusPending means the job exists but has not touched the engine.
	StatusPending Status = iota
	// StatusUploading means the input bytes are entering the engine
	// filesystem.
	StatusUploading
	// StatusProbing means the null-output stream inspection is running.
	StatusProbing
	// StatusExtracting means the audio extraction pass is running.
	StatusExtracting
	// StatusFinalizing means the output is being read back.
	StatusFinalizing
	// StatusComplete means the audio artifact is ready.
	StatusComplete
	// StatusFailed means the job ended with a classified failure.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploading:
		return "uploading"
	case StatusProbing:
		return "probing"
	case StatusExtracting:
		return "extracting"
	case StatusFinalizing:
		return "finalizing"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one user-initiated extraction request. It lives for a single
// conversion and is never persisted.
type Job struct {
	ID         string
	InputName  string
	OutputName string
	Status     Status
	Progress   int // 0-100, driven by the engine during extraction
}

// NewJob creates a pending job for the given input filename. The output
// name is the input stem with an .mp3 extension.
func NewJob(inputName string) *Job {
	return &Job{
		ID:         uuid.NewString(),
		InputName:  filepath.Base(inputName),
		OutputName: outputName(inputName),
		Status:     StatusPending,
	}
}

// outputName derives `<stem>.mp3` from the input filename.
func outputName(inputName string) string {
	base := filepath.Base(inputName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "audio"
	}
	return stem + ".mp3"
}
