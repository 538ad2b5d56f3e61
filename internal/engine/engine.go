// Package engine owns the opaque media engine: its contract, the loader
// state machine that brings it up from cache or the network, and the
// exec-backed ffmpeg implementation.
package engine

import (
	"context"
	"errors"
)

// Common errors for the engine subsystem.
var (
	ErrNotInitialized  = errors.New("engine is not initialized")
	ErrAlreadyLoading  = errors.New("engine load already in flight")
	ErrLoadFailed      = errors.New("engine load failed")
	ErrFileNotFound    = errors.New("no such file in engine filesystem")
	ErrFetchFailed     = errors.New("remote fetch failed")
	ErrInvalidManifest = errors.New("invalid preset manifest")
)

// Assets are the two materialized files handed to Initialize: the preset
// manifest (engine-code) and the executable (engine-binary).
type Assets struct {
	CodePath   string
	BinaryPath string
}

// Engine is the opaque media-processing collaborator. One handle exists
// per process session; it is recreated fresh on every run and never
// persisted.
type Engine interface {
	// Initialize prepares the engine from the two assets. It blocks
	// until the engine is usable or returns the failure.
	Initialize(ctx context.Context, assets Assets) error

	// Initialized reports whether Initialize completed successfully.
	Initialized() bool

	// WriteFile places bytes into the engine's private filesystem.
	WriteFile(name string, data []byte) error

	// Exec runs the engine with the given argument vector. Paths in argv
	// refer to names inside the engine filesystem.
	Exec(ctx context.Context, argv ...string) error

	// ReadFile returns the bytes of a file in the engine filesystem.
	ReadFile(name string) ([]byte, error)

	// DeleteFile removes a file from the engine filesystem. Removing an
	// absent file is not an error.
	DeleteFile(name string) error

	// OnLog subscribes to the engine's free-text log stream.
	OnLog(fn func(line string))

	// OnProgress subscribes to progress fractions in [0, 1].
	OnProgress(fn func(fraction float64))

	// Close releases the engine's resources.
	Close() error
}
