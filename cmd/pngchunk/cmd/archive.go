package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/storage"
)

func newArchiveCmd() *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Keep copies of chunks in a local archive",
		Long: `Copy chunks out of the chunk file into a local archive, list them and
restore them later. The archive directory is set by archive.dir in the config.`,
	}

	archiveCmd.AddCommand(
		newArchivePutCmd(),
		newArchiveGetCmd(),
		newArchiveListCmd(),
		newArchiveRestoreCmd(),
	)
	return archiveCmd
}

func openArchive(cmd *cobra.Command) (*storage.ChunkArchive, error) {
	s := settingsFrom(cmd)
	archive, err := storage.OpenChunkArchive(s.config.Archive.Dir, s.config.RecordCodec())
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", s.config.Archive.Dir, err)
	}
	return archive, nil
}

func parseArchiveID(arg string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(arg)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("invalid archive ID %q: %w", arg, err)
	}
	return id, nil
}

func newArchivePutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <type>",
		Short: "Archive the first chunk of a type from the chunk file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseTagArg(args[0])
			if err != nil {
				return err
			}

			cf, err := openChunkFile(cmd, false)
			if err != nil {
				return err
			}
			defer cf.Close()

			record, err := cf.Find(tag)
			if err != nil {
				return err
			}

			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			id, err := archive.Put(record)
			if err != nil {
				return fmt.Errorf("failed to archive chunk: %w", err)
			}

			cmd.Printf("Archived %s chunk as %s\n", tag, id)
			return nil
		},
	}
}

func newArchiveGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print an archived chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArchiveID(args[0])
			if err != nil {
				return err
			}

			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			record, err := archive.Get(id)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "ID:\t%s\n", id)
			fmt.Fprintf(w, "Archived:\t%s\n", id.Time().Format(time.RFC3339))
			fmt.Fprintf(w, "Type:\t%s\n", record.Tag())
			fmt.Fprintf(w, "Length:\t%d\n", record.Length())
			fmt.Fprintf(w, "CRC:\t%d\n", record.Checksum())
			fmt.Fprintf(w, "Data:\t%s\n", displayData(record))
			return nil
		},
	}
}

func newArchiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			var entries []storage.Entry
			if err := archive.List(func(e storage.Entry) bool {
				entries = append(entries, e)
				return true
			}); err != nil {
				return err
			}

			if len(entries) == 0 {
				cmd.Println("No archived chunks found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintln(w, "ID\tTYPE\tLENGTH\tDATA")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Record.Tag(), e.Record.Length(), displayData(e.Record))
			}
			return nil
		},
	}
}

func newArchiveRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Append an archived chunk back to the chunk file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseArchiveID(args[0])
			if err != nil {
				return err
			}

			archive, err := openArchive(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			record, err := archive.Get(id)
			if err != nil {
				return err
			}

			cf, err := openChunkFile(cmd, true)
			if err != nil {
				return err
			}
			defer cf.Close()

			info, err := cf.Append(record.Tag(), record.Payload())
			if err != nil {
				return err
			}

			cmd.Printf("Restored %s chunk at offset %d\n", info.Type, info.Offset)
			return nil
		},
	}
}
