package convert

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/heirakug/video-to-audio-converter/internal/engine"
)

// Callbacks surface job observations to the caller. Any of them may be
// nil.
type Callbacks struct {
	OnStatus   func(Status)
	OnProgress func(percent int)
	OnWarning  func(message string)
}

// Result is a completed conversion: the job record and the produced
// audio bytes.
type Result struct {
	Job   *Job
	Audio []byte
}

// ConversionError is a classified conversion failure. The classification
// is heuristic; Message is always safe to show a user.
type ConversionError struct {
	Job            *Job
	Classification Classification
	Err            error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion of %s failed: %s", e.Job.InputName, e.Classification.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Orchestrator runs conversions against a single Ready engine handle.
// The engine supports one job at a time, so the orchestrator serializes
// access with its own lock instead of trusting callers to behave.
type Orchestrator struct {
	engine engine.Engine
	mu     sync.Mutex
}

// NewOrchestrator wraps a Ready engine handle.
func NewOrchestrator(eng engine.Engine) *Orchestrator {
	return &Orchestrator{engine: eng}
}

// Run drives one conversion: write the input into the engine filesystem,
// probe for an audio stream, extract best-quality MP3, read the output
// back, and clean both entries up whatever happened. A probe without
// audio markers produces a warning, not an abort: the extraction attempt
// is made regardless, and the engine has the final word.
func (o *Orchestrator) Run(ctx context.Context, inputName string, data []byte, cb Callbacks) (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.engine.Initialized() {
		return nil, engine.ErrNotInitialized
	}

	job := NewJob(inputName)

	// Accumulate the engine's log output for the probe inspection and
	// for failure classification.
	var logMu sync.Mutex
	var logText strings.Builder
	o.engine.OnLog(func(line string) {
		logMu.Lock()
		logText.WriteString(line)
		logText.WriteString("\n")
		logMu.Unlock()
	})
	defer o.engine.OnLog(nil)

	o.engine.OnProgress(func(fraction float64) {
		if job.Status != StatusExtracting {
			return
		}
		job.Progress = int(fraction * 100)
		if cb.OnProgress != nil {
			cb.OnProgress(job.Progress)
		}
	})
	defer o.engine.OnProgress(nil)

	// Cleanup runs regardless of outcome; its failures are logged and
	// never escalated.
	defer func() {
		for _, name := range []string{job.InputName, job.OutputName} {
			if err := o.engine.DeleteFile(name); err != nil {
				log.Warn("engine cleanup failed", "file", name, "err", err)
			}
		}
	}()

	fail := func(err error) (*Result, error) {
		logMu.Lock()
		text := logText.String()
		logMu.Unlock()

		o.setStatus(job, StatusFailed, cb)
		classification := Classify(err, text)
		log.Error("conversion failed",
			"job", job.ID,
			"input", job.InputName,
			"kind", classification.Kind,
			"confident", classification.Confident,
			"err", err)
		return nil, &ConversionError{Job: job, Classification: classification, Err: err}
	}

	// Stage 1: input into the engine filesystem.
	o.setStatus(job, StatusUploading, cb)
	if err := o.engine.WriteFile(job.InputName, data); err != nil {
		return fail(err)
	}

	// Stage 2: null-output probe, run solely for its log stream.
	o.setStatus(job, StatusProbing, cb)
	if err := o.engine.Exec(ctx, "-i", job.InputName, "-f", "null", "-"); err != nil {
		return fail(err)
	}

	logMu.Lock()
	probeText := logText.String()
	logMu.Unlock()
	if !HasAudioMarker(probeText) {
		log.Warn("probe found no audio markers, attempting extraction anyway",
			"job", job.ID, "input", job.InputName)
		if cb.OnWarning != nil {
			cb.OnWarning("No audio stream detected; attempting extraction anyway.")
		}
	}

	// Stage 3: best-quality audio-only extraction.
	o.setStatus(job, StatusExtracting, cb)
	err := o.engine.Exec(ctx,
		"-i", job.InputName,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "0",
		job.OutputName,
	)
	if err != nil {
		return fail(err)
	}

	// Stage 4: read the artifact back.
	o.setStatus(job, StatusFinalizing, cb)
	audio, err := o.engine.ReadFile(job.OutputName)
	if err != nil {
		return fail(err)
	}

	job.Progress = 100
	o.setStatus(job, StatusComplete, cb)
	return &Result{Job: job, Audio: audio}, nil
}

func (o *Orchestrator) setStatus(job *Job, status Status, cb Callbacks) {
	job.Status = status
	if cb.OnStatus != nil {
		cb.OnStatus(status)
	}
}
