package cmd

import (
	"fmt"
	"strings"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/ssargent/pngchunk/pkg/store"
)

const maxDataWidth = 40

// displayData renders a payload for a table cell
func displayData(r *codec.Record) string {
	text, err := r.PayloadText()
	if err != nil {
		return fmt.Sprintf("(%d bytes binary)", r.Length())
	}
	return truncate(strings.ReplaceAll(text, "\n", `\n`), maxDataWidth)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// formatFlags summarizes the property bits of a chunk type
func formatFlags(info store.ChunkInfo) string {
	flags := make([]string, 0, 4)
	if info.Critical {
		flags = append(flags, "critical")
	} else {
		flags = append(flags, "ancillary")
	}
	if info.Public {
		flags = append(flags, "public")
	} else {
		flags = append(flags, "private")
	}
	if info.Safe {
		flags = append(flags, "safe-to-copy")
	}
	if !info.Valid {
		flags = append(flags, "reserved-bit-set")
	}
	return strings.Join(flags, ",")
}
