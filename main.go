// Package main provides the entry point for the v2a CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/heirakug/video-to-audio-converter/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	outputDir  string
	playAfter  bool
	quiet      bool

	rootCmd = &cobra.Command{
		Use:   "v2a FILE",
		Short: "Extract audio from video files, right in your terminal",
		Long: paragraph(
			fmt.Sprintf("\nExtract the audio track of a video file as %s. The extraction engine is fetched once and cached locally.", keyword("best-quality MP3")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadOptions(cmd)
		},
		RunE: execute,
	}

	// Populated by loadOptions for every command.
	appConfig config.Config
)

// loadOptions resolves the effective configuration: defaults, then the
// config file, then V2A_* environment variables, then flags.
func loadOptions(cmd *cobra.Command) error {
	cfg, err := config.LoadFromViper()
	if err != nil {
		return err
	}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}

	if cmd.Flags().Changed("output") {
		cfg.OutputDir = outputDir
	}
	if cmd.Flags().Changed("play") {
		cfg.PlayAfterConvert = playAfter
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	return runConvert(appConfig, args[0], quiet)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "plain output, no animations")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write the MP3 into")
	rootCmd.Flags().BoolVarP(&playAfter, "play", "p", false, "play the MP3 after extracting it")

	_ = viper.BindPFlag("output_dir", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("play_after_convert", rootCmd.Flags().Lookup("play"))

	config.SetDefaults()

	rootCmd.AddCommand(engineCmd, cacheCmd, playCmd, watchCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "v2a")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "v2a")}, dirs...)
	}

	if c := os.Getenv("V2A_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("v2a")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("v2a")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "v2a.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
