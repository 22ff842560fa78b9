package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// ChunkFile is a file of back-to-back chunks with append, lookup and removal.
// It is safe for concurrent use.
type ChunkFile struct {
	config ChunkFileConfig
	codec  *codec.RecordCodec
	logger *slog.Logger
	writer *ChunkWriter
	index  *ChunkIndex
	mutex  sync.Mutex
	isOpen bool
}

// OpenChunkFile opens or creates a chunk file. A torn or corrupt tail left by
// an interrupted write is truncated first.
func OpenChunkFile(config ChunkFileConfig) (*ChunkFile, *RecoveryResult, error) {
	if config.Codec == nil {
		opts := []codec.Option{}
		if config.MaxPayloadSize > 0 {
			opts = append(opts, codec.WithMaxPayloadSize(config.MaxPayloadSize))
		}
		config.Codec = codec.NewRecordCodec(opts...)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	cf := &ChunkFile{
		config: config,
		codec:  config.Codec,
		logger: config.Logger.With("file", config.FilePath),
		index:  NewChunkIndex(),
	}

	recovery, err := Recover(cf.readerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to recover chunk file: %w", err)
	}
	if recovery.RecordsTruncated > 0 {
		cf.logger.Warn("truncated corrupt chunk file tail",
			"records_validated", recovery.RecordsValidated,
			"size_before", recovery.FileSizeBefore,
			"size_after", recovery.FileSizeAfter)
	}

	if err := cf.openWriter(); err != nil {
		return nil, nil, err
	}
	if err := cf.rebuildIndex(); err != nil {
		_ = cf.writer.Close()
		return nil, nil, fmt.Errorf("failed to index chunk file: %w", err)
	}
	cf.isOpen = true

	return cf, recovery, nil
}

// readerConfig reads stored chunks structurally. The payload limit applies
// to new appends only, so lowering it never hides or drops existing chunks.
func (cf *ChunkFile) readerConfig() ChunkReaderConfig {
	return ChunkReaderConfig{
		FilePath:       cf.config.FilePath,
		Signature:      cf.config.Signature,
		MaxPayloadSize: math.MaxUint32,
	}
}

func (cf *ChunkFile) openWriter() error {
	writer, err := NewChunkWriter(ChunkWriterConfig{
		FilePath:      cf.config.FilePath,
		FsyncInterval: cf.config.FsyncInterval,
		BufferSize:    cf.config.BufferSize,
		Signature:     cf.config.Signature,
	})
	if err != nil {
		return fmt.Errorf("failed to open chunk writer: %w", err)
	}
	cf.writer = writer
	return nil
}

// Append adds a chunk with the given type and payload to the end of the file
func (cf *ChunkFile) Append(tag codec.TypeTag, payload []byte) (*ChunkInfo, error) {
	record, err := cf.codec.NewRecord(tag, payload)
	if err != nil {
		return nil, err
	}

	cf.mutex.Lock()
	defer cf.mutex.Unlock()

	if !cf.isOpen {
		return nil, ErrClosed
	}

	offset, err := cf.writer.Append(record)
	if err != nil {
		return nil, fmt.Errorf("failed to append chunk: %w", err)
	}

	cf.index.Add(tag, offset)

	cf.logger.Debug("appended chunk", "type", tag.String(), "length", record.Length(), "offset", offset)
	return newChunkInfo(offset, record), nil
}

// List returns every chunk in file order
func (cf *ChunkFile) List() ([]*codec.Record, error) {
	var records []*codec.Record
	err := cf.scan(func(_ int64, r *codec.Record) bool {
		records = append(records, r)
		return true
	})
	return records, err
}

// Describe returns the location and properties of every chunk in file order
func (cf *ChunkFile) Describe() ([]ChunkInfo, error) {
	var infos []ChunkInfo
	err := cf.scan(func(offset int64, r *codec.Record) bool {
		infos = append(infos, *newChunkInfo(offset, r))
		return true
	})
	return infos, err
}

// Find returns the first chunk with the given type, or ErrChunkNotFound
func (cf *ChunkFile) Find(tag codec.TypeTag) (*codec.Record, error) {
	cf.mutex.Lock()
	defer cf.mutex.Unlock()

	if !cf.isOpen {
		return nil, ErrClosed
	}

	offset, ok := cf.index.First(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, tag)
	}
	if err := cf.writer.Sync(); err != nil {
		return nil, err
	}

	reader, err := NewChunkReader(cf.readerConfig())
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return reader.ReadAt(offset)
}

// Remove deletes the first chunk with the given type and returns it. The
// file is rewritten to a temporary file and renamed into place.
func (cf *ChunkFile) Remove(tag codec.TypeTag) (*codec.Record, error) {
	cf.mutex.Lock()
	defer cf.mutex.Unlock()

	if !cf.isOpen {
		return nil, ErrClosed
	}
	if err := cf.writer.Sync(); err != nil {
		return nil, err
	}

	records, err := cf.readAll()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, r := range records {
		if r.Tag().Equal(tag) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, tag)
	}
	removed := records[idx]
	records = append(records[:idx], records[idx+1:]...)

	if err := cf.rewrite(records); err != nil {
		return nil, err
	}

	cf.logger.Info("removed chunk", "type", tag.String(), "length", removed.Length())
	return removed, nil
}

// rewrite replaces the file contents with records. Caller holds the mutex.
func (cf *ChunkFile) rewrite(records []*codec.Record) error {
	dir := filepath.Dir(cf.config.FilePath)
	tmp, err := os.CreateTemp(dir, filepath.Base(cf.config.FilePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	cleanup := func() { _ = os.Remove(tmpPath) }

	w, err := NewChunkWriter(ChunkWriterConfig{
		FilePath:      tmpPath,
		BufferSize:    cf.config.BufferSize,
		Signature:     cf.config.Signature,
		FsyncInterval: -1, // flushed once on Close
	})
	if err != nil {
		cleanup()
		return err
	}
	for _, r := range records {
		if _, err := w.Append(r); err != nil {
			_ = w.Close()
			cleanup()
			return err
		}
	}
	if err := w.Close(); err != nil {
		cleanup()
		return err
	}

	if err := cf.writer.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, cf.config.FilePath); err != nil {
		cleanup()
		// Reopen the original so the file stays usable
		if openErr := cf.openWriter(); openErr != nil {
			return errors.Join(err, openErr)
		}
		return fmt.Errorf("failed to replace chunk file: %w", err)
	}

	if err := cf.openWriter(); err != nil {
		return err
	}
	return cf.rebuildIndex()
}

// rebuildIndex re-reads the file into the chunk index. Caller holds the
// mutex or has exclusive access.
func (cf *ChunkFile) rebuildIndex() error {
	reader, err := NewChunkReader(cf.readerConfig())
	if err != nil {
		return err
	}
	defer reader.Close()

	return cf.index.BuildFromFile(reader)
}

// Stats returns a summary of the file
func (cf *ChunkFile) Stats() (*FileStats, error) {
	cf.mutex.Lock()
	defer cf.mutex.Unlock()

	if !cf.isOpen {
		return nil, ErrClosed
	}

	return &FileStats{
		Path:      cf.config.FilePath,
		Chunks:    cf.index.Size(),
		SizeBytes: cf.writer.Size(),
	}, nil
}

// Path returns the file path
func (cf *ChunkFile) Path() string {
	return cf.config.FilePath
}

// Close flushes and closes the file
func (cf *ChunkFile) Close() error {
	cf.mutex.Lock()
	defer cf.mutex.Unlock()

	if !cf.isOpen {
		return nil
	}
	cf.isOpen = false
	return cf.writer.Close()
}

// scan calls fn for each chunk until fn returns false
func (cf *ChunkFile) scan(fn func(offset int64, r *codec.Record) bool) error {
	cf.mutex.Lock()
	defer cf.mutex.Unlock()

	if !cf.isOpen {
		return ErrClosed
	}
	if err := cf.writer.Sync(); err != nil {
		return err
	}
	return cf.scanLocked(fn)
}

func (cf *ChunkFile) scanLocked(fn func(offset int64, r *codec.Record) bool) error {
	reader, err := NewChunkReader(cf.readerConfig())
	if err != nil {
		return err
	}
	defer reader.Close()

	it := reader.Iterator()
	defer it.Close()
	for it.Next() {
		if !fn(it.Offset(), it.Record()) {
			return nil
		}
	}
	return it.Err()
}

func (cf *ChunkFile) readAll() ([]*codec.Record, error) {
	var records []*codec.Record
	err := cf.scanLocked(func(_ int64, r *codec.Record) bool {
		records = append(records, r)
		return true
	})
	return records, err
}

// ReadFile parses every chunk in the file at path
func ReadFile(path string, signature bool) ([]*codec.Record, error) {
	reader, err := NewChunkReader(ChunkReaderConfig{FilePath: path, Signature: signature, MaxPayloadSize: math.MaxUint32})
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []*codec.Record
	for {
		record, err := reader.ReadNext()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("chunk at offset %d: %w", reader.Offset(), err)
		}
		records = append(records, record)
	}
}

func newChunkInfo(offset int64, r *codec.Record) *ChunkInfo {
	tag := r.Tag()
	return &ChunkInfo{
		Offset:   offset,
		Type:     tag.String(),
		Length:   r.Length(),
		CRC:      r.Checksum(),
		Critical: tag.IsCritical(),
		Public:   tag.IsPublic(),
		Safe:     tag.IsSafeToCopy(),
		Valid:    tag.IsValid(),
	}
}
