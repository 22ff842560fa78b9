package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/pngchunk/pkg/codec"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <type>",
		Short: "Show the properties encoded in a chunk type",
		Long: `Show the properties PNG encodes in the case of each letter of a chunk type.

Example:
  pngchunk inspect RuSt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseTagArg(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "Type:\t%s\n", tag)
			raw := tag.Bytes()
			fmt.Fprintf(w, "Bytes:\t% x\n", raw[:])
			fmt.Fprintf(w, "Critical:\t%t\n", tag.IsCritical())
			fmt.Fprintf(w, "Public:\t%t\n", tag.IsPublic())
			fmt.Fprintf(w, "Reserved bit valid:\t%t\n", tag.IsReservedBitValid())
			fmt.Fprintf(w, "Safe to copy:\t%t\n", tag.IsSafeToCopy())
			fmt.Fprintf(w, "Valid:\t%t\n", tag.IsValid())
			return nil
		},
	}
}

func newHexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hex <type> <message>",
		Short: "Print the serialized form of a chunk as hex",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := parseTagArg(args[0])
			if err != nil {
				return err
			}

			data, err := settingsFrom(cmd).config.RecordCodec().Encode(tag, []byte(args[1]))
			if err != nil {
				return err
			}

			cmd.Println(hex.EncodeToString(data))
			return nil
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <hex>",
		Short: "Parse and verify a serialized chunk given as hex",
		Long: `Parse one serialized chunk given as hex and verify its length and CRC.
Whitespace in the hex string is ignored.

Example:
  pngchunk parse 0000000552755374776f726c6420c6b809`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cleaned := strings.Join(strings.Fields(strings.Join(args, "")), "")
			data, err := hex.DecodeString(cleaned)
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}

			record, err := settingsFrom(cmd).config.RecordCodec().Decode(data)
			if err != nil {
				return fmt.Errorf("chunk rejected (%s): %w", codec.KindOf(err), err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "Type:\t%s\n", record.Tag())
			fmt.Fprintf(w, "Length:\t%d\n", record.Length())
			fmt.Fprintf(w, "CRC:\t%d\n", record.Checksum())
			fmt.Fprintf(w, "Data:\t%s\n", displayData(record))
			return nil
		},
	}
}
