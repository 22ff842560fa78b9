package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChunks(t *testing.T, path string, signature bool, records ...*codec.Record) {
	t.Helper()
	var data []byte
	if signature {
		data = append(data, Signature...)
	}
	for _, r := range records {
		data = r.AppendTo(data)
	}
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func testRecords() []*codec.Record {
	return []*codec.Record{
		codec.NewRecord(codec.MustParseTag("IHDR"), []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}),
		codec.NewRecord(codec.MustParseTag("RuSt"), []byte("This is where your secret message will be!")),
		codec.NewRecord(codec.MustParseTag("IEND"), nil),
	}
}

func TestNewChunkReader_NonExistentFile(t *testing.T) {
	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: "/non/existent/file.png"})
	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestChunkReader_ReadNext(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	records := testRecords()
	writeChunks(t, filePath, true, records...)

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, Signature: true})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, int64(8), reader.Offset())

	for _, want := range records {
		got, err := reader.ReadNext()
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "got %s", got.Tag())
	}

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
}

func TestChunkReader_EmptyFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_empty_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "empty.png")
	require.NoError(t, os.WriteFile(filePath, []byte{}, 0600))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, Signature: true})
	require.NoError(t, err)
	defer reader.Close()

	record, err := reader.ReadNext()
	assert.Nil(t, record)
	assert.Equal(t, io.EOF, err)
}

func TestChunkReader_InvalidSignature(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_sig_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	require.NoError(t, os.WriteFile(filePath, []byte("GIF89a not a png"), 0600))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, Signature: true})
	assert.Nil(t, reader)
	assert.True(t, errors.Is(err, ErrInvalidSignature))
}

func TestChunkReader_Corruption(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_corrupt_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	good := codec.NewRecord(codec.MustParseTag("RuSt"), []byte("hello")).Serialize()

	testCases := []struct {
		name     string
		data     []byte
		codecErr error
	}{
		{
			name:     "torn length prefix",
			data:     good[:2],
			codecErr: codec.ErrTruncated,
		},
		{
			name:     "torn payload",
			data:     good[:len(good)-3],
			codecErr: codec.ErrTruncated,
		},
		{
			name: "bad crc",
			data: func() []byte {
				b := append([]byte(nil), good...)
				b[len(b)-1] ^= 0x01
				return b
			}(),
			codecErr: codec.ErrCrcMismatch,
		},
		{
			name: "bad tag",
			data: func() []byte {
				b := append([]byte(nil), good...)
				b[5] = '1'
				return b
			}(),
			codecErr: codec.ErrInvalidTag,
		},
		{
			name:     "declared length past end of file",
			data:     []byte{0x7F, 0xFF, 0xFF, 0xF0, 'I', 'D', 'A', 'T'},
			codecErr: codec.ErrTruncated,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, "corrupt.png")
			require.NoError(t, os.WriteFile(filePath, tc.data, 0600))

			reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath})
			require.NoError(t, err)
			defer reader.Close()

			record, err := reader.ReadNext()
			assert.Nil(t, record)
			assert.True(t, errors.Is(err, ErrCorruption), "got %v", err)
			assert.True(t, errors.Is(err, tc.codecErr), "got %v", err)
		})
	}
}

func TestChunkReader_LengthOverLimit(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_limit_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "large.png")
	writeChunks(t, filePath, false, codec.NewRecord(codec.MustParseTag("IDAT"), make([]byte, 100)))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, MaxPayloadSize: 50})
	require.NoError(t, err)
	defer reader.Close()

	// A well-formed chunk over the policy limit is not corruption
	_, err = reader.ReadNext()
	assert.ErrorIs(t, err, codec.ErrPayloadTooLarge)
	assert.False(t, errors.Is(err, ErrCorruption), "got %v", err)
}

func TestChunkReader_ReadAt(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_readat_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	records := testRecords()
	writeChunks(t, filePath, true, records...)

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, Signature: true})
	require.NoError(t, err)
	defer reader.Close()

	offset := int64(8 + records[0].Size())
	record, err := reader.ReadAt(offset)
	require.NoError(t, err)
	assert.True(t, records[1].Equal(record))

	// Sequential position is unaffected
	assert.Equal(t, int64(8), reader.Offset())
	first, err := reader.ReadNext()
	require.NoError(t, err)
	assert.True(t, records[0].Equal(first))

	// Misaligned offsets are reported as corruption, not panics
	_, err = reader.ReadAt(offset + 1)
	assert.True(t, errors.Is(err, ErrCorruption))

	// Past the end
	_, err = reader.ReadAt(1 << 20)
	assert.True(t, errors.Is(err, ErrCorruption))
}

func TestChunkReader_Seek(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_seek_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	records := testRecords()
	writeChunks(t, filePath, false, records...)

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, int64(0), reader.Offset())

	offset := int64(records[0].Size() + records[1].Size())
	require.NoError(t, reader.Seek(offset))
	assert.Equal(t, offset, reader.Offset())

	record, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, "IEND", record.Tag().String())
}

func TestChunkReader_StartOffset(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_start_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	records := testRecords()
	writeChunks(t, filePath, true, records...)

	start := int64(8 + records[0].Size())
	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, Signature: true, StartOffset: start})
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, start, reader.Offset())
	record, err := reader.ReadNext()
	require.NoError(t, err)
	assert.Equal(t, "RuSt", record.Tag().String())
}

func TestChunkReader_Iterator(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_iterator_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	records := testRecords()
	writeChunks(t, filePath, true, records...)

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath, Signature: true})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	var offsets []int64
	var count int
	for it.Next() {
		assert.True(t, records[count].Equal(it.Record()))
		offsets = append(offsets, it.Offset())
		count++
	}
	assert.NoError(t, it.Err())
	assert.NoError(t, it.Close())

	assert.Equal(t, len(records), count)
	assert.Equal(t, []int64{8, int64(8 + records[0].Size()), int64(8 + records[0].Size() + records[1].Size())}, offsets)
}

func TestChunkReader_IteratorStopsOnCorruption(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chunk_reader_iterator_corrupt_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "test.png")
	records := testRecords()
	writeChunks(t, filePath, false, records...)

	// Chop the last byte of the IEND chunk
	info, err := os.Stat(filePath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(filePath, info.Size()-1))

	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: filePath})
	require.NoError(t, err)
	defer reader.Close()

	it := reader.Iterator()
	var count int
	for it.Next() {
		count++
	}
	assert.Equal(t, 2, count)
	assert.True(t, errors.Is(it.Err(), ErrCorruption))
	assert.False(t, it.Next())
}
