package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heirakug/video-to-audio-converter/internal/audio"
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play an extracted MP3",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path := args[0]
		if !strings.EqualFold(filepath.Ext(path), ".mp3") {
			return fmt.Errorf("%s is not an MP3 file", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read file: %w", err)
		}

		if d, err := audio.Duration(data); err == nil {
			fmt.Printf("Playing %s (%s, ctrl+c to stop)\n", path, d.Round(time.Second))
		} else {
			fmt.Printf("Playing %s (ctrl+c to stop)\n", path)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var player audio.Sink = audio.NewPlayer()
		defer player.Close() //nolint:errcheck
		if err := player.Play(ctx, data); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
