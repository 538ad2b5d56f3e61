package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// setupLog directs structured logging to the file named by V2A_LOGFILE.
// Without it, logs are discarded so they never interleave with the TUI.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)
	logFile := os.Getenv("V2A_LOGFILE")
	if logFile == "" {
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error setting up logging: %w", err)
	}
	log.SetOutput(f)
	log.SetLevel(log.DebugLevel)
	return f.Close, nil
}
