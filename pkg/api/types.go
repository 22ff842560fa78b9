package api

import (
	"log/slog"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string // empty disables authentication
	Codec  *codec.RecordCodec
	Logger *slog.Logger
}

// ChunkResponse is the JSON form of a chunk
type ChunkResponse struct {
	Type     string `json:"type"`
	Length   uint32 `json:"length"`
	CRC      uint32 `json:"crc"`
	Text     string `json:"text,omitempty"`
	Data     []byte `json:"data"`
	Critical bool   `json:"critical"`
	Public   bool   `json:"public"`
	Safe     bool   `json:"safe_to_copy"`
}

// TagResponse reports the properties encoded in a chunk type
type TagResponse struct {
	Type             string `json:"type"`
	Critical         bool   `json:"critical"`
	Public           bool   `json:"public"`
	ReservedBitValid bool   `json:"reserved_bit_valid"`
	SafeToCopy       bool   `json:"safe_to_copy"`
	Valid            bool   `json:"valid"`
}

// ArchiveEntryResponse is an archived chunk with its ID
type ArchiveEntryResponse struct {
	ID    string        `json:"id"`
	Chunk ChunkResponse `json:"chunk"`
}

func newChunkResponse(r *codec.Record) ChunkResponse {
	tag := r.Tag()
	resp := ChunkResponse{
		Type:     tag.String(),
		Length:   r.Length(),
		CRC:      r.Checksum(),
		Data:     r.Payload(),
		Critical: tag.IsCritical(),
		Public:   tag.IsPublic(),
		Safe:     tag.IsSafeToCopy(),
	}
	if text, err := r.PayloadText(); err == nil {
		resp.Text = text
	}
	return resp
}

func newTagResponse(t codec.TypeTag) TagResponse {
	return TagResponse{
		Type:             t.String(),
		Critical:         t.IsCritical(),
		Public:           t.IsPublic(),
		ReservedBitValid: t.IsReservedBitValid(),
		SafeToCopy:       t.IsSafeToCopy(),
		Valid:            t.IsValid(),
	}
}
