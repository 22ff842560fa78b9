/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/api"
	"github.com/ssargent/pngchunk/pkg/storage"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Serve the chunk file over a REST API with Prometheus metrics.

Settings come from the server section of the config file; flags override them.
When an API key is configured every /api/v1 request must carry it in the
X-API-Key header.

Examples:
  pngchunk serve -f image.png
  pngchunk serve --port 8080 --api-key mysecretkey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settingsFrom(cmd)
			flags := cmd.Flags()

			if flags.Changed("bind") {
				s.config.Server.Bind, _ = flags.GetString("bind")
			}
			if flags.Changed("port") {
				s.config.Server.Port, _ = flags.GetInt("port")
			}
			if flags.Changed("api-key") {
				s.config.Server.APIKey, _ = flags.GetString("api-key")
			}
			noArchive, _ := flags.GetBool("no-archive")

			cf, err := openChunkFile(cmd, true)
			if err != nil {
				return err
			}
			defer cf.Close()

			var archive api.IChunkArchive
			if !noArchive {
				a, err := storage.OpenChunkArchive(s.config.Archive.Dir, s.config.RecordCodec())
				if err != nil {
					return fmt.Errorf("failed to open archive %s: %w", s.config.Archive.Dir, err)
				}
				defer a.Close()
				archive = a
			}

			if s.config.Server.APIKey == "" {
				s.logger.Warn("no API key configured, the API is unauthenticated")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			starter := api.NewServerStarter()
			if container != nil {
				starter = container.GetServerStarter()
			}

			return starter.StartServer(ctx, cf, archive, api.ServerConfig{
				Bind:   s.config.Server.Bind,
				Port:   s.config.Server.Port,
				APIKey: s.config.Server.APIKey,
				Codec:  s.config.RecordCodec(),
				Logger: s.logger,
			})
		},
	}

	cmd.Flags().String("bind", "", "Address to bind to (overrides config)")
	cmd.Flags().IntP("port", "p", 0, "Port to listen on (overrides config)")
	cmd.Flags().String("api-key", "", "API key for authentication (overrides config)")
	cmd.Flags().Bool("no-archive", false, "Serve without the chunk archive")
	return cmd
}
