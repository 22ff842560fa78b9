/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/ssargent/pngchunk/pkg/config"
	"github.com/ssargent/pngchunk/pkg/di"
	"github.com/ssargent/pngchunk/pkg/store"
)

var container *di.Container

// SetContainer injects the dependency container used by the commands
func SetContainer(c *di.Container) {
	container = c
}

type settingsKey struct{}

// settings is the resolved configuration for one command invocation
type settings struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger
}

// NewRootCmd builds the pngchunk command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pngchunk",
		Short: "Hide messages in PNG chunks",
		Long: `pngchunk reads and writes PNG-style chunks: length-prefixed, CRC-checked
records tagged with a four-letter type. It can hide text messages in a PNG file,
find and remove them again, and validate or repair chunk files.

Examples:
  pngchunk encode RuSt "This is where your secret message will be!" -f image.png
  pngchunk decode RuSt -f image.png
  pngchunk print -f image.png`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), settingsKey{}, s))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	flags.StringP("file", "f", "", "Chunk file to operate on (overrides config)")
	flags.Bool("no-signature", false, "Treat the file as bare chunks without a PNG signature")
	flags.String("log-level", "", "Log level: debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(
		newEncodeCmd(),
		newDecodeCmd(),
		newRemoveCmd(),
		newPrintCmd(),
		newInspectCmd(),
		newHexCmd(),
		newParseCmd(),
		newRecoverCmd(),
		newArchiveCmd(),
		newServeCmd(),
		newInitCmd(),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSettings resolves the config file and applies flag overrides. A missing
// config file is only an error when --config names it explicitly.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if explicit || config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Changed("file") {
		cfg.ChunkFile.Path, _ = flags.GetString("file")
	}
	if noSignature, _ := flags.GetBool("no-signature"); noSignature {
		cfg.ChunkFile.Signature = false
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	return &settings{config: cfg, configPath: configPath, logger: logger}, nil
}

func settingsFrom(cmd *cobra.Command) *settings {
	s, _ := cmd.Context().Value(settingsKey{}).(*settings)
	return s
}

// openChunkFile opens the configured chunk file. Unless create is set the
// file must already exist.
func openChunkFile(cmd *cobra.Command, create bool) (*store.ChunkFile, error) {
	s := settingsFrom(cmd)
	path := s.config.ChunkFile.Path

	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("chunk file %s: %w", path, err)
		}
	}

	cf, recovery, err := store.OpenChunkFile(store.ChunkFileConfig{
		FilePath:      path,
		FsyncInterval: s.config.ChunkFile.FsyncInterval,
		BufferSize:    s.config.ChunkFile.BufferSize,
		Signature:     s.config.ChunkFile.Signature,
		Codec:         s.config.RecordCodec(),
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}
	if recovery.RecordsTruncated > 0 {
		cmd.PrintErrf("Recovered from corruption: truncated %d bytes\n",
			recovery.FileSizeBefore-recovery.FileSizeAfter)
	}
	return cf, nil
}

func parseTagArg(arg string) (codec.TypeTag, error) {
	tag, err := codec.ParseTag(arg)
	if err != nil {
		return codec.TypeTag{}, fmt.Errorf("invalid chunk type %q: %w", arg, err)
	}
	return tag, nil
}
