package api

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/pngchunk/pkg/codec"
	"github.com/ssargent/pngchunk/pkg/storage"
	"github.com/ssargent/pngchunk/pkg/store"
)

// IChunkStore defines the chunk file operations the API serves
type IChunkStore interface {
	Append(tag codec.TypeTag, payload []byte) (*store.ChunkInfo, error)
	Describe() ([]store.ChunkInfo, error)
	Find(tag codec.TypeTag) (*codec.Record, error)
	Remove(tag codec.TypeTag) (*codec.Record, error)
	Stats() (*store.FileStats, error)
}

// IChunkArchive defines the archive operations the API serves
type IChunkArchive interface {
	Put(record *codec.Record) (ksuid.KSUID, error)
	Get(id ksuid.KSUID) (*codec.Record, error)
	List(fn func(storage.Entry) bool) error
}

// ServerStarter starts the API server
type ServerStarter interface {
	StartServer(ctx context.Context, chunks IChunkStore, archive IChunkArchive, config ServerConfig) error
}

var (
	_ IChunkStore   = (*store.ChunkFile)(nil)
	_ IChunkArchive = (*storage.ChunkArchive)(nil)
)
