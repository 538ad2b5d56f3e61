package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Convert video files as they appear in a directory",
	Long:  paragraph("\nWatch a directory and extract the audio of every video file dropped into it. Conversions start once a file has stopped changing for the configured settle time."),
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		dir := args[0]
		st, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("unable to open directory: %w", err)
		}
		if !st.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return watchDir(ctx, dir)
	},
}

// watchDir converts video files appearing under dir until the context
// is canceled. Write events reset a per-file debounce timer so partially
// copied files are not picked up mid-transfer.
func watchDir(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	fmt.Println("Watching", dir, "(ctrl+c to stop)")

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}()

	convertLater := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(appConfig.WatchDebounce)
			return
		}
		timers[path] = time.AfterFunc(appConfig.WatchDebounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			fmt.Println("Converting", path)
			if err := runConvert(appConfig, path, true); err != nil {
				log.Error("watch conversion failed", "file", path, "err", err)
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !watchableFile(event.Name) {
				continue
			}
			convertLater(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "err", err)
		}
	}
}

func watchableFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".avi", ".mov", ".mkv", ".webm", ".flv":
		return true
	}
	return false
}
