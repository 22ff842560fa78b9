package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// ChunkReader provides sequential and random access to chunks in a file
type ChunkReader struct {
	file   *os.File
	reader *bufio.Reader
	codec  *codec.RecordCodec
	offset int64
	size   int64
	config ChunkReaderConfig
}

// NewChunkReader opens a chunk file for reading. When config.Signature is set
// and reading starts at the beginning, the PNG signature is verified and
// skipped. An empty file is accepted and yields no chunks.
func NewChunkReader(config ChunkReaderConfig) (*ChunkReader, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	opts := []codec.Option{}
	if config.MaxPayloadSize > 0 {
		opts = append(opts, codec.WithMaxPayloadSize(config.MaxPayloadSize))
	}

	r := &ChunkReader{
		file:   file,
		codec:  codec.NewRecordCodec(opts...),
		size:   info.Size(),
		config: config,
	}

	start := config.StartOffset
	if start == 0 && config.Signature {
		if err := r.checkSignature(); err != nil {
			_ = file.Close()
			return nil, err
		}
		start = r.offset
	}

	if err := r.Seek(start); err != nil {
		_ = file.Close()
		return nil, err
	}

	return r, nil
}

func (r *ChunkReader) checkSignature() error {
	sig := make([]byte, len(Signature))
	n, err := io.ReadFull(r.file, sig)
	if err == io.EOF {
		// Empty file
		return nil
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	if !bytes.Equal(sig[:n], Signature) {
		return fmt.Errorf("%w: %x", ErrInvalidSignature, sig[:n])
	}
	r.offset = int64(n)
	return nil
}

// ReadNext reads the chunk at the current offset. It returns io.EOF at a
// clean end of file. A chunk longer than the configured payload limit returns
// codec.ErrPayloadTooLarge; any other malformed chunk wraps ErrCorruption
// together with the codec error describing it. After an error the reader must
// be re-positioned with Seek before reading again.
func (r *ChunkReader) ReadNext() (*codec.Record, error) {
	record, n, err := r.readRecord(r.reader, r.offset)
	if err != nil {
		return nil, err
	}
	r.offset += n
	return record, nil
}

// ReadAt reads the chunk starting at offset without moving the sequential
// read position.
func (r *ChunkReader) ReadAt(offset int64) (*codec.Record, error) {
	section := io.NewSectionReader(r.file, offset, 1<<62)
	record, _, err := r.readRecord(section, offset)
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no chunk at offset %d", ErrCorruption, offset)
	}
	return record, err
}

func (r *ChunkReader) readRecord(src io.Reader, start int64) (*codec.Record, int64, error) {
	prefix := make([]byte, codec.LengthSize)
	if _, err := io.ReadFull(src, prefix); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, 0, fmt.Errorf("%w: %w", ErrCorruption, codec.ErrTruncated)
		}
		return nil, 0, err
	}

	// The declared length is checked against the policy and the bytes
	// actually on disk before allocating for it
	length := binary.BigEndian.Uint32(prefix)
	if length > r.codec.MaxPayloadSize() {
		return nil, 0, fmt.Errorf("%w: declared length %d at offset %d", codec.ErrPayloadTooLarge, length, start)
	}
	end := start + codec.MinRecordSize + int64(length)
	if end > r.size {
		if err := r.refreshSize(); err != nil {
			return nil, 0, err
		}
		if end > r.size {
			return nil, 0, fmt.Errorf("%w: %w: chunk at offset %d ends at %d past end of file %d",
				ErrCorruption, codec.ErrTruncated, start, end, r.size)
		}
	}

	data := make([]byte, codec.MinRecordSize+int(length))
	copy(data, prefix)
	if _, err := io.ReadFull(src, data[codec.LengthSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, fmt.Errorf("%w: %w", ErrCorruption, codec.ErrTruncated)
		}
		return nil, 0, err
	}

	record, err := r.codec.Decode(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrCorruption, err)
	}

	return record, int64(len(data)), nil
}

// refreshSize picks up appends made after the reader was opened
func (r *ChunkReader) refreshSize() error {
	info, err := r.file.Stat()
	if err != nil {
		return err
	}
	r.size = info.Size()
	return nil
}

// Seek sets the read offset
func (r *ChunkReader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	r.reader = bufio.NewReader(r.file) // Recreate reader to clear buffer
	r.offset = offset
	return nil
}

// Offset returns the current read offset
func (r *ChunkReader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining chunks
func (r *ChunkReader) Iterator() RecordIterator {
	return &chunkIterator{reader: r}
}

// Close closes the chunk reader
func (r *ChunkReader) Close() error {
	return r.file.Close()
}

// chunkIterator implements RecordIterator for streaming access
type chunkIterator struct {
	reader *ChunkReader
	record *codec.Record
	offset int64
	err    error
}

func (it *chunkIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.offset = it.reader.Offset()
	it.record, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *chunkIterator) Record() *codec.Record {
	return it.record
}

// Offset returns the file offset of the current record
func (it *chunkIterator) Offset() int64 {
	return it.offset
}

// Err returns the error that stopped iteration, or nil at a clean end of file
func (it *chunkIterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}

func (it *chunkIterator) Close() error {
	// The underlying reader is owned by the caller
	return nil
}
