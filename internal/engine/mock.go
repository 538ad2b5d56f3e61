package engine

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted engine for tests. Its filesystem is an in-memory
// map, and each Exec replays the configured log lines and progress steps
// before returning the scripted error, if any.
type Mock struct {
	mu          sync.Mutex
	initialized bool
	files       map[string][]byte

	// Scripting knobs.
	InitErr  error
	ExecErr  error
	LogLines []string
	Steps    []float64
	// OnExec, when set, is consulted per call so tests can vary behavior
	// between the probe and the extraction pass.
	OnExec func(argv []string) (logLines []string, err error)

	// Recorded activity.
	InitCalls int
	ExecCalls [][]string

	logFn      func(string)
	progressFn func(float64)
}

// NewMock returns an empty scripted engine.
func NewMock() *Mock {
	return &Mock{files: make(map[string][]byte)}
}

// Initialize applies the scripted init error, otherwise marks the engine
// initialized.
func (m *Mock) Initialize(_ context.Context, _ Assets) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitCalls++
	if m.InitErr != nil {
		return m.InitErr
	}
	m.initialized = true
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (m *Mock) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// WriteFile stores bytes in the in-memory filesystem.
func (m *Mock) WriteFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	m.files[name] = data
	return nil
}

// Exec replays the scripted log lines and progress steps.
func (m *Mock) Exec(_ context.Context, argv ...string) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	m.ExecCalls = append(m.ExecCalls, argv)

	lines, execErr := m.LogLines, m.ExecErr
	if m.OnExec != nil {
		lines, execErr = m.OnExec(argv)
	}
	logFn, progressFn := m.logFn, m.progressFn
	steps := m.Steps
	m.mu.Unlock()

	if logFn != nil {
		for _, line := range lines {
			logFn(line)
		}
	}
	if progressFn != nil {
		for _, step := range steps {
			progressFn(step)
		}
	}
	return execErr
}

// ReadFile returns bytes from the in-memory filesystem.
func (m *Mock) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return data, nil
}

// DeleteFile removes a file from the in-memory filesystem.
func (m *Mock) DeleteFile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	delete(m.files, name)
	return nil
}

// Files returns a copy of the in-memory filesystem contents.
func (m *Mock) Files() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		out[k] = v
	}
	return out
}

// OnLog subscribes to the scripted log stream.
func (m *Mock) OnLog(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logFn = fn
}

// OnProgress subscribes to the scripted progress steps.
func (m *Mock) OnProgress(fn func(float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressFn = fn
}

// Close resets the mock.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	m.files = make(map[string][]byte)
	return nil
}
