package store

import (
	"log/slog"
	"time"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// Signature is the 8-byte PNG file signature that precedes the chunks of a
// chunk file when signatures are enabled.
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ChunkWriterConfig holds configuration for the chunk writer
type ChunkWriterConfig struct {
	FilePath      string        // Path to the chunk file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
	Signature     bool          // Write the PNG signature into new files
}

// ChunkReaderConfig holds configuration for the chunk reader
type ChunkReaderConfig struct {
	FilePath       string // Path to the chunk file
	StartOffset    int64  // Offset to start reading from (0 = after the signature)
	Signature      bool   // Expect and verify the PNG signature
	MaxPayloadSize uint32 // Largest declared length accepted (0 = codec default)
}

// ChunkFileConfig holds configuration for a ChunkFile
type ChunkFileConfig struct {
	FilePath       string
	FsyncInterval  time.Duration
	BufferSize     int
	Signature      bool
	MaxPayloadSize uint32
	Codec          *codec.RecordCodec // Policy applied to appended chunks
	Logger         *slog.Logger
}

// ChunkInfo describes a chunk stored in a file
type ChunkInfo struct {
	Offset   int64  `json:"offset"`
	Type     string `json:"type"`
	Length   uint32 `json:"length"`
	CRC      uint32 `json:"crc"`
	Critical bool   `json:"critical"`
	Public   bool   `json:"public"`
	Safe     bool   `json:"safe_to_copy"`
	Valid    bool   `json:"valid"`
}

// FileStats summarizes a chunk file
type FileStats struct {
	Path      string `json:"path"`
	Chunks    int    `json:"chunks"`
	SizeBytes int64  `json:"size_bytes"`
}

// RecoveryResult reports what Recover found and repaired
type RecoveryResult struct {
	RecordsValidated int64
	RecordsTruncated int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	RecoveryTime     time.Duration
}

// RecordIterator provides streaming access to records
type RecordIterator interface {
	Next() bool
	Record() *codec.Record
	Offset() int64
	Err() error
	Close() error
}

// Errors
var (
	ErrChunkNotFound    = &StoreError{"chunk not found"}
	ErrCorruption       = &StoreError{"data corruption detected"}
	ErrInvalidSignature = &StoreError{"invalid file signature"}
	ErrClosed           = &StoreError{"chunk file closed"}
)

// StoreError represents a chunk file error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}
