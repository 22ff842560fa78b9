package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/ssargent/pngchunk/pkg/store"
)

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <type> <message>",
		Short: "Hide a message in a new chunk",
		Long: `Append a chunk of the given type carrying message to the end of the chunk file.
The file is created if it does not exist.

Example:
  pngchunk encode RuSt "This is where your secret message will be!" -f image.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseTagArg(args[0])
			if err != nil {
				return err
			}

			cf, err := openChunkFile(cmd, true)
			if err != nil {
				return err
			}
			defer cf.Close()

			info, err := cf.Append(tag, []byte(args[1]))
			if err != nil {
				return fmt.Errorf("failed to encode chunk: %w", err)
			}

			cmd.Printf("Encoded %s chunk: %d bytes at offset %d (crc %d)\n", info.Type, info.Length, info.Offset, info.CRC)
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <type>",
		Short: "Print the message hidden in a chunk",
		Long: `Find the first chunk of the given type and print its payload as text.

Example:
  pngchunk decode RuSt -f image.png`,
		Args: cobra.ExactArgs(1),
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
			text, err := record.PayloadText()
			if err != nil {
				return fmt.Errorf("%s chunk does not hold a text message: %w", tag, err)
			}

			cmd.Println(text)
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <type>",
		Short: "Remove a chunk",
		Long: `Remove the first chunk of the given type from the chunk file.

Example:
  pngchunk remove RuSt -f image.png`,
		Args: cobra.ExactArgs(1),
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

			removed, err := cf.Remove(tag)
			if err != nil {
				return err
			}

			cmd.Printf("Removed %s chunk: %s\n", removed.Tag(), removed)
			return nil
		},
	}
}

func newPrintCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "print",
		Short: "List every chunk in the file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := openChunkFile(cmd, false)
			if err != nil {
				return err
			}
			defer cf.Close()

			infos, err := cf.Describe()
			if err != nil {
				return err
			}
			records, err := cf.List()
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return printChunksJSON(cmd, infos)
			case "table":
				return printChunksTable(cmd, infos, records)
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table or json")
	return cmd
}

func printChunksJSON(cmd *cobra.Command, infos []store.ChunkInfo) error {
	if infos == nil {
		infos = []store.ChunkInfo{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(infos)
}

func printChunksTable(cmd *cobra.Command, infos []store.ChunkInfo, records []*codec.Record) error {
	if len(infos) == 0 {
		cmd.Println("No chunks found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "OFFSET\tTYPE\tLENGTH\tCRC\tFLAGS\tDATA")
	for i, info := range infos {
		data := ""
		if i < len(records) {
			data = displayData(records[i])
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
			info.Offset, info.Type, info.Length, info.CRC, formatFlags(info), data)
	}
	return nil
}
