package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_MissingFile(t *testing.T) {
	result, err := Recover(ChunkReaderConfig{FilePath: "/non/existent/file.png"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.RecordsValidated)
	assert.Equal(t, int64(0), result.RecordsTruncated)
}

func TestRecover_CleanFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "recover_clean_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "image.png")
	writeChunks(t, filePath, true, testRecords()...)

	info, err := os.Stat(filePath)
	require.NoError(t, err)

	result, err := Recover(ChunkReaderConfig{FilePath: filePath, Signature: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RecordsValidated)
	assert.Equal(t, int64(0), result.RecordsTruncated)
	assert.Equal(t, info.Size(), result.FileSizeBefore)
	assert.Equal(t, info.Size(), result.FileSizeAfter)
}

func TestRecover_TornTail(t *testing.T) {
	testCases := []struct {
		name string
		tail []byte
	}{
		{name: "partial length", tail: []byte{0x00, 0x00}},
		{name: "partial chunk", tail: codec.NewRecord(codec.MustParseTag("tEXt"), []byte("torn write")).Serialize()[:10]},
		{
			name: "bad crc",
			tail: func() []byte {
				b := codec.NewRecord(codec.MustParseTag("tEXt"), []byte("bit rot")).Serialize()
				b[len(b)-1] ^= 0xFF
				return b
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir, err := os.MkdirTemp("", "recover_torn_test")
			require.NoError(t, err)
			defer os.RemoveAll(tmpDir)

			filePath := filepath.Join(tmpDir, "image.png")
			writeChunks(t, filePath, true, testRecords()...)

			info, err := os.Stat(filePath)
			require.NoError(t, err)
			validSize := info.Size()

			f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0600)
			require.NoError(t, err)
			_, err = f.Write(tc.tail)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			result, err := Recover(ChunkReaderConfig{FilePath: filePath, Signature: true})
			require.NoError(t, err)
			assert.Equal(t, int64(3), result.RecordsValidated)
			assert.Equal(t, int64(1), result.RecordsTruncated)
			assert.Equal(t, validSize+int64(len(tc.tail)), result.FileSizeBefore)
			assert.Equal(t, validSize, result.FileSizeAfter)

			records, err := ReadFile(filePath, true)
			require.NoError(t, err)
			assert.Len(t, records, 3)
		})
	}
}

func TestRecover_InvalidSignature(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "recover_sig_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "image.png")
	require.NoError(t, os.WriteFile(filePath, []byte("not a png file"), 0600))

	_, err = Recover(ChunkReaderConfig{FilePath: filePath, Signature: true})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// The file must be left untouched
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, "not a png file", string(data))
}

func TestRecover_IgnoresPayloadLimit(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "recover_limit_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "image.png")
	writeChunks(t, filePath, true,
		codec.NewRecord(codec.MustParseTag("IDAT"), make([]byte, 100)),
		codec.NewRecord(codec.MustParseTag("RuSt"), []byte("secret")))

	info, err := os.Stat(filePath)
	require.NoError(t, err)

	result, err := Recover(ChunkReaderConfig{FilePath: filePath, Signature: true, MaxPayloadSize: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RecordsValidated)
	assert.Equal(t, int64(0), result.RecordsTruncated)
	assert.Equal(t, info.Size(), result.FileSizeAfter)

	after, err := os.Stat(filePath)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), after.Size())
}

func TestRecover_HugeDeclaredLength(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "recover_huge_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	filePath := filepath.Join(tmpDir, "image.png")
	good := codec.NewRecord(codec.MustParseTag("RuSt"), []byte("ok"))
	writeChunks(t, filePath, true, good)
	validSize := int64(len(Signature)) + int64(good.Size())

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x7F, 0xFF, 0xFF, 0xF0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	result, err := Recover(ChunkReaderConfig{FilePath: filePath, Signature: true})
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.RecordsValidated)
	assert.Equal(t, int64(1), result.RecordsTruncated)
	assert.Equal(t, validSize, result.FileSizeAfter)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20), "declared length must not drive allocation")
}
