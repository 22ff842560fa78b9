/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a default configuration file with a generated API key.

Examples:
  pngchunk init
  pngchunk init --config ./pngchunk.yaml -f ./image.png`,
		Args: cobra.NoArgs,
		// The config may not exist yet
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			chunkFile, _ := cmd.Flags().GetString("file")
			force, _ := cmd.Flags().GetBool("force")

			if configPath == "" {
				configPath = config.GetDefaultConfigPath()
			}

			if config.ConfigExists(configPath) && !force {
				cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(configPath, chunkFile)
			if err != nil {
				return err
			}

			cmd.Printf("Configuration written to %s\n", configPath)
			cmd.Printf("Chunk file: %s\n", cfg.ChunkFile.Path)
			cmd.Printf("API key: %s\n", cfg.Server.APIKey)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	return cmd
}
