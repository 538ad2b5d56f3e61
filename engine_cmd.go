package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heirakug/video-to-audio-converter/internal/engine"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Manage the cached extraction engine",
}

var engineLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Fetch and initialize the extraction engine",
	Long:  paragraph("\nFetch the engine artifacts (or reuse cached ones), verify them, and record the engine as loaded so later conversions start instantly."),
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		tc, err := openCache(appConfig)
		if err != nil {
			return err
		}
		defer tc.Close() //nolint:errcheck

		workDir, err := os.MkdirTemp("", "v2a-")
		if err != nil {
			return fmt.Errorf("create scratch directory: %w", err)
		}
		eng := engine.NewFFmpeg(workDir)
		defer eng.Close() //nolint:errcheck

		fetcher := engine.NewHTTPFetcher(appConfig.Engine.BaseURL, func(name string, received, total int64) {
			if total > 0 {
				fmt.Printf("\r%s: %s / %s", name, humanize.IBytes(uint64(received)), humanize.IBytes(uint64(total)))
				if received == total {
					fmt.Println()
				}
			}
		})
		loader := engine.NewLoader(tc, fetcher, eng, filepath.Join(appConfig.CacheDir, "assets"))
		loader.OnStateChange(func(s engine.State) {
			fmt.Println("engine:", s)
		})

		ctx, cancel := context.WithTimeout(context.Background(), appConfig.Engine.FetchTimeout)
		defer cancel()
		if err := loader.Load(ctx); err != nil {
			return err
		}
		fmt.Println("Engine", appConfig.Engine.Version, "is ready.")
		return nil
	},
}

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached engine state",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		tc, err := openCache(appConfig)
		if err != nil {
			return err
		}
		defer tc.Close() //nolint:errcheck

		fmt.Println("expected version:", appConfig.Engine.Version)
		fmt.Println("artifacts cached:", yesNo(tc.HasAll()))
		fmt.Println("loaded before:   ", yesNo(tc.WasLoaded()))
		if v := tc.Version(); v != "" && v != appConfig.Engine.Version {
			fmt.Println("note: last load used version", v)
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	engineCmd.AddCommand(engineLoadCmd, engineStatusCmd)
}
