package store

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssargent/pngchunk/pkg/codec"
)

const defaultBufferSize = 64 * 1024

// ChunkWriter handles append-only writes of serialized chunks to a file
type ChunkWriter struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     ChunkWriterConfig
	mutex      sync.Mutex
	offset     int64 // Current write offset
}

// NewChunkWriter opens (or creates) the chunk file for appending. A new,
// empty file gets the PNG signature when config.Signature is set.
func NewChunkWriter(config ChunkWriterConfig) (*ChunkWriter, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	// Seek to end for append behavior
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	writer := &ChunkWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		offset: end,
	}

	if end == 0 && config.Signature {
		if _, err := writer.writer.Write(Signature); err != nil {
			_ = file.Close()
			return nil, err
		}
		writer.offset = int64(len(Signature))
		if err := writer.sync(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	// Set up fsync timer if interval is configured
	if config.FsyncInterval > 0 {
		writer.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			writer.mutex.Lock()
			defer writer.mutex.Unlock()
			_ = writer.sync()
		})
	}

	return writer, nil
}

// Append writes a chunk to the end of the file and returns its offset
func (w *ChunkWriter) Append(record *codec.Record) (int64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(record.Serialize())
	if err != nil {
		return 0, err
	}

	recordOffset := w.offset
	w.offset += int64(n)

	// Sync immediately if no fsync interval configured
	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}

	return recordOffset, nil
}

// Sync forces a fsync to disk
func (w *ChunkWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *ChunkWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the writer and ensures all data is synced
func (w *ChunkWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		_ = w.file.Close()
		return err
	}

	return w.file.Close()
}

// Size returns the current size of the chunk file
func (w *ChunkWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Path returns the file path
func (w *ChunkWriter) Path() string {
	return w.config.FilePath
}
