package store

import (
	"errors"
	"io"
	"math"
	"os"
	"time"
)

// Recover validates every chunk in the file and truncates the file after
// the last valid chunk if a corrupt or torn chunk is found. A missing file
// is not an error. Chunks are checked structurally: config.MaxPayloadSize is
// ignored, so a well-formed chunk larger than a payload policy is kept.
func Recover(config ChunkReaderConfig) (*RecoveryResult, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(config.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveryResult{RecoveryTime: time.Since(startTime)}, nil
		}
		return nil, err
	}

	fileSizeBefore := fileInfo.Size()

	config.StartOffset = 0
	config.MaxPayloadSize = math.MaxUint32
	reader, err := NewChunkReader(config)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var recordsValidated int64
	lastValidOffset := reader.Offset()
	var corruptionFound bool

	for {
		_, err := reader.ReadNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			if !errors.Is(err, ErrCorruption) {
				return nil, err
			}
			corruptionFound = true
			break
		}

		recordsValidated++
		lastValidOffset = reader.Offset()
	}

	fileSizeAfter := fileSizeBefore
	var recordsTruncated int64

	if corruptionFound {
		if err := os.Truncate(config.FilePath, lastValidOffset); err != nil {
			return nil, err
		}
		fileSizeAfter = lastValidOffset
		recordsTruncated = 1 // Everything after the first bad chunk counts as one torn write
	}

	return &RecoveryResult{
		RecordsValidated: recordsValidated,
		RecordsTruncated: recordsTruncated,
		FileSizeBefore:   fileSizeBefore,
		FileSizeAfter:    fileSizeAfter,
		RecoveryTime:     time.Since(startTime),
	}, nil
}
