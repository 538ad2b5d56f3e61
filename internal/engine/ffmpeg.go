package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// manifest is the parsed engine-code blob: a small YAML document shipped
// alongside the binary that pins the expected build and the argument
// prelude for every invocation.
type manifest struct {
	Version     string   `yaml:"version"`
	VerifyToken string   `yaml:"verify_token"`
	BaseArgs    []string `yaml:"base_args"`
}

// FFmpeg is the production engine: a private scratch directory as the
// engine filesystem and the cached ffmpeg executable driven via exec.
type FFmpeg struct {
	workDir    string
	binaryPath string
	manifest   manifest

	initialized atomic.Bool

	mu         sync.Mutex
	logFn      func(string)
	progressFn func(float64)
}

// NewFFmpeg creates an uninitialized engine whose filesystem lives under
// workDir.
func NewFFmpeg(workDir string) *FFmpeg {
	return &FFmpeg{workDir: workDir}
}

// Initialize parses the preset manifest, checks the binary answers
// -version with the expected token, and marks the engine usable.
func (e *FFmpeg) Initialize(ctx context.Context, assets Assets) error {
	if e.initialized.Load() {
		return nil
	}

	raw, err := os.ReadFile(assets.CodePath)
	if err != nil {
		return fmt.Errorf("read preset manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.VerifyToken == "" {
		return fmt.Errorf("%w: missing verify_token", ErrInvalidManifest)
	}

	if err := os.Chmod(assets.BinaryPath, 0o755); err != nil {
		return fmt.Errorf("mark engine binary executable: %w", err)
	}

	out, err := exec.CommandContext(ctx, assets.BinaryPath, "-version").CombinedOutput()
	if err != nil {
		return fmt.Errorf("engine binary rejected -version: %w", err)
	}
	if !strings.Contains(string(out), m.VerifyToken) {
		return fmt.Errorf("engine binary does not match manifest %q", m.Version)
	}

	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return fmt.Errorf("create engine filesystem: %w", err)
	}

	e.binaryPath = assets.BinaryPath
	e.manifest = m
	e.initialized.Store(true)
	return nil
}

// Initialized reports whether Initialize completed successfully.
func (e *FFmpeg) Initialized() bool {
	return e.initialized.Load()
}

// WriteFile places bytes into the engine filesystem.
func (e *FFmpeg) WriteFile(name string, data []byte) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	return os.WriteFile(e.resolve(name), data, 0o644)
}

// ReadFile returns the bytes of a file in the engine filesystem.
func (e *FFmpeg) ReadFile(name string) ([]byte, error) {
	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}
	data, err := os.ReadFile(e.resolve(name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return data, err
}

// DeleteFile removes a file from the engine filesystem.
func (e *FFmpeg) DeleteFile(name string) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	if err := os.Remove(e.resolve(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// OnLog subscribes to the engine's stderr stream, one line per call.
func (e *FFmpeg) OnLog(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logFn = fn
}

// OnProgress subscribes to progress fractions derived from the engine's
// time stamps.
func (e *FFmpeg) OnProgress(fn func(float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressFn = fn
}

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	timeRe     = regexp.MustCompile(`\btime=(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

// Exec runs the engine with the manifest's argument prelude followed by
// argv. It suspends the caller until the engine exits.
func (e *FFmpeg) Exec(ctx context.Context, argv ...string) error {
	if !e.initialized.Load() {
		return ErrNotInitialized
	}

	args := append(append([]string{}, e.manifest.BaseArgs...), argv...)
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Dir = e.workDir

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// ffmpeg writes everything of interest to stderr: collect it for the
	// error text and feed log/progress subscribers line by line.
	var tail []string
	var duration float64
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		tail = append(tail, line)
		if len(tail) > 40 {
			tail = tail[1:]
		}

		e.emitLog(line)

		if m := durationRe.FindStringSubmatch(line); m != nil {
			duration = clockToSeconds(m)
		}
		if m := timeRe.FindStringSubmatch(line); m != nil && duration > 0 {
			fraction := clockToSeconds(m) / duration
			if fraction > 1 {
				fraction = 1
			}
			e.emitProgress(fraction)
		}
	}

	if err := cmd.Wait(); err != nil {
		// Surface the log tail in the error so the classifier upstream
		// has the engine's own words to work with.
		return fmt.Errorf("engine exec failed: %w: %s", err, strings.Join(tail, "\n"))
	}

	e.emitProgress(1)
	return nil
}

// Close removes the engine filesystem.
func (e *FFmpeg) Close() error {
	e.initialized.Store(false)
	if e.workDir == "" {
		return nil
	}
	return os.RemoveAll(e.workDir)
}

// resolve maps an engine filesystem name to a real path, stripping any
// directory components a caller might smuggle in.
func (e *FFmpeg) resolve(name string) string {
	return filepath.Join(e.workDir, filepath.Base(name))
}

func (e *FFmpeg) emitLog(line string) {
	e.mu.Lock()
	fn := e.logFn
	e.mu.Unlock()
	if fn != nil {
		fn(line)
	}
}

func (e *FFmpeg) emitProgress(fraction float64) {
	e.mu.Lock()
	fn := e.progressFn
	e.mu.Unlock()
	if fn != nil {
		fn(fraction)
	}
}

// clockToSeconds converts a HH:MM:SS.ss regexp match to seconds.
func clockToSeconds(m []string) float64 {
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	return hours*3600 + minutes*60 + seconds
}
