package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/store"
)

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Validate the chunk file and truncate a corrupt tail",
		Long: `Read every chunk in the file, verifying lengths and CRCs. If a torn or
corrupt chunk is found, the file is truncated after the last valid chunk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settingsFrom(cmd)

			result, err := store.Recover(store.ChunkReaderConfig{
				FilePath:  s.config.ChunkFile.Path,
				Signature: s.config.ChunkFile.Signature,
			})
			if err != nil {
				return err
			}

			cmd.Printf("Chunks validated: %d\n", result.RecordsValidated)
			if result.RecordsTruncated > 0 {
				cmd.Printf("Truncated corrupt tail: %d -> %d bytes\n", result.FileSizeBefore, result.FileSizeAfter)
			} else {
				cmd.Printf("No corruption found (%d bytes)\n", result.FileSizeAfter)
			}
			s.logger.Debug("recovery finished", "duration", result.RecoveryTime)
			return nil
		},
	}
}
