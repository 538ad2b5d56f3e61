package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/heirakug/video-to-audio-converter/internal/audio"
	"github.com/heirakug/video-to-audio-converter/internal/cache"
	"github.com/heirakug/video-to-audio-converter/internal/config"
	"github.com/heirakug/video-to-audio-converter/internal/convert"
	"github.com/heirakug/video-to-audio-converter/internal/engine"
	"github.com/heirakug/video-to-audio-converter/ui"
)

// observer fans conversion events out to whichever frontend is active.
type observer struct {
	state    func(engine.State)
	download engine.DownloadProgress
	status   func(convert.Status)
	progress func(int)
	warning  func(string)
}

func openCache(cfg config.Config) (*cache.Tiered, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return cache.Open(cache.Config{
		Dir:              cfg.CacheDir,
		Version:          cfg.Engine.Version,
		CompressionLevel: cfg.Engine.CompressionLevel,
	})
}

// runConvert validates the input and drives one conversion, with the
// TUI when stdout is a terminal and plain output otherwise.
func runConvert(cfg config.Config, inputPath string, plain bool) error {
	st, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}
	name := filepath.Base(inputPath)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if err := convert.Validate(name, st.Size(), contentType); err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("unable to read file: %w", err)
	}

	tc, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer tc.Close() //nolint:errcheck

	var outPath string
	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		outPath, err = convertPlain(cfg, tc, name, data)
	} else {
		outPath, err = convertTUI(cfg, tc, name, data)
	}
	if err != nil {
		return err
	}
	fmt.Println("Wrote", outPath)

	if cfg.PlayAfterConvert {
		return playFile(outPath)
	}
	return nil
}

func convertTUI(cfg config.Config, tc *cache.Tiered, name string, data []byte) (string, error) {
	model := ui.NewConvertModel(name)
	p := tea.NewProgram(model)

	type outcome struct {
		path string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		path, err := performConversion(context.Background(), cfg, tc, name, data, observer{
			state: func(s engine.State) { p.Send(ui.EngineStateMsg{State: s}) },
			download: func(artifact string, received, total int64) {
				p.Send(ui.DownloadProgressMsg{Name: artifact, Received: received, Total: total})
			},
			status:   func(s convert.Status) { p.Send(ui.ConvertStatusMsg{Status: s}) },
			progress: func(pct int) { p.Send(ui.ConvertProgressMsg{Percent: pct}) },
			warning:  func(text string) { p.Send(ui.ConvertWarningMsg{Text: text}) },
		})
		done <- outcome{path, err}
		p.Send(ui.ConvertDoneMsg{OutputPath: path, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("unable to run tui program: %w", err)
	}
	if m, ok := final.(ui.ConvertModel); ok && m.Err() != nil {
		return "", m.Err()
	}
	res := <-done
	return res.path, res.err
}

func convertPlain(cfg config.Config, tc *cache.Tiered, name string, data []byte) (string, error) {
	return performConversion(context.Background(), cfg, tc, name, data, observer{
		state: func(s engine.State) { fmt.Println("engine:", s) },
		download: func(artifact string, received, total int64) {
			if total > 0 && received == total {
				fmt.Printf("fetched %s (%d bytes)\n", artifact, total)
			}
		},
		status:  func(s convert.Status) { fmt.Println(s) },
		warning: func(text string) { fmt.Println("warning:", text) },
	})
}

// performConversion loads the engine (from cache or network) and runs
// the extraction, returning the path of the written MP3.
func performConversion(ctx context.Context, cfg config.Config, tc *cache.Tiered, name string, data []byte, obs observer) (string, error) {
	workDir, err := os.MkdirTemp("", "v2a-")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	eng := engine.NewFFmpeg(workDir)
	defer eng.Close() //nolint:errcheck

	fetcher := engine.NewHTTPFetcher(cfg.Engine.BaseURL, obs.download)
	loader := engine.NewLoader(tc, fetcher, eng, filepath.Join(cfg.CacheDir, "assets"))
	if obs.state != nil {
		loader.OnStateChange(obs.state)
	}

	if !cfg.Engine.AutoLoad && !loader.ShouldAutoLoad() {
		return "", errors.New("engine not cached and auto_load is off; run `v2a engine load` first")
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Engine.FetchTimeout)
	defer cancelLoad()
	if err := loader.Load(loadCtx); err != nil {
		return "", err
	}
	handle, err := loader.Engine()
	if err != nil {
		return "", err
	}

	orch := convert.NewOrchestrator(handle)
	convCtx, cancelConv := context.WithTimeout(ctx, cfg.Engine.ConvertTimeout)
	defer cancelConv()
	res, err := orch.Run(convCtx, name, data, convert.Callbacks{
		OnStatus:   obs.status,
		OnProgress: obs.progress,
		OnWarning:  obs.warning,
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	outPath := filepath.Join(cfg.OutputDir, res.Job.OutputName)
	if err := os.WriteFile(outPath, res.Audio, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	log.Info("conversion complete", "job", res.Job.ID, "output", outPath, "bytes", len(res.Audio))
	return outPath, nil
}

func playFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read file: %w", err)
	}
	var player audio.Sink = audio.NewPlayer()
	defer player.Close() //nolint:errcheck
	fmt.Println("Playing", path, "(ctrl+c to stop)")
	return player.Play(context.Background(), data)
}
