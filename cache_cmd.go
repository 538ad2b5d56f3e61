package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the engine cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List cached engine artifacts",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		tc, err := openCache(appConfig)
		if err != nil {
			return err
		}
		defer tc.Close() //nolint:errcheck

		entries := tc.Entries()
		if len(entries) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}
		for _, e := range entries {
			marker := ""
			if e.Version != appConfig.Engine.Version {
				marker = " (stale)"
			}
			fmt.Printf("%-14s %-5s %-8s v%s, stored %s%s\n",
				e.Name, e.Tier, humanize.IBytes(uint64(e.Size)), e.Version, humanize.Time(e.StoredAt), marker)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached engine artifacts",
	Long:  paragraph("\nRemove every cached engine artifact and the loaded flag. The next conversion fetches the engine again."),
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		tc, err := openCache(appConfig)
		if err != nil {
			return err
		}
		defer tc.Close() //nolint:errcheck

		tc.Clear()
		fmt.Println("Cache cleared.")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd)
}
