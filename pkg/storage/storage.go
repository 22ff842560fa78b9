package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// ErrNotFound is returned when no chunk is stored under an ID
var ErrNotFound = errors.New("archived chunk not found")

// ChunkArchive stores serialized chunks in pebble, keyed by KSUID. IDs
// issued by one archive are strictly increasing, so iteration yields chunks
// in the order they were archived.
type ChunkArchive struct {
	db    *pebble.DB
	codec *codec.RecordCodec
	last  ksuid.KSUID
	mutex sync.Mutex
}

// Entry is an archived chunk with its ID
type Entry struct {
	ID     ksuid.KSUID
	Record *codec.Record
}

// OpenChunkArchive opens or creates an archive at path. Stored chunks are
// re-validated with c on every read; nil selects the default codec.
func OpenChunkArchive(path string, c *codec.RecordCodec) (*ChunkArchive, error) {
	if c == nil {
		c = codec.NewRecordCodec()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	s := &ChunkArchive{db: db, codec: c}
	if err := s.loadLastID(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *ChunkArchive) loadLastID() error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() {
		id, err := ksuid.FromBytes(iter.Key())
		if err != nil {
			return fmt.Errorf("invalid archive key %x: %w", iter.Key(), err)
		}
		s.last = id
	}
	return iter.Error()
}

// nextID returns a fresh KSUID greater than every ID issued so far. KSUIDs
// only carry one-second resolution, so IDs within the same second fall back
// to the successor of the last one.
func (s *ChunkArchive) nextID() ksuid.KSUID {
	id := ksuid.New()
	if ksuid.Compare(id, s.last) <= 0 {
		id = s.last.Next()
	}
	s.last = id
	return id
}

// Put archives a chunk and returns its new ID
func (s *ChunkArchive) Put(record *codec.Record) (ksuid.KSUID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.nextID()
	if err := s.db.Set(id.Bytes(), record.Serialize(), pebble.Sync); err != nil {
		return ksuid.Nil, err
	}
	return id, nil
}

// Get reads and verifies the chunk stored under id
func (s *ChunkArchive) Get(id ksuid.KSUID) (*codec.Record, error) {
	data, closer, err := s.db.Get(id.Bytes())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	// Decode copies the payload, so data may be released afterwards
	record, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("archived chunk %s: %w", id, err)
	}
	return record, nil
}

// Delete removes the chunk stored under id
func (s *ChunkArchive) Delete(id ksuid.KSUID) error {
	return s.db.Delete(id.Bytes(), pebble.Sync)
}

// List calls fn for every archived chunk in ID order until fn returns false.
// A chunk that fails verification stops the iteration with its error.
func (s *ChunkArchive) List(fn func(Entry) bool) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key())
		if err != nil {
			return fmt.Errorf("invalid archive key %x: %w", iter.Key(), err)
		}
		record, err := s.codec.Decode(iter.Value())
		if err != nil {
			return fmt.Errorf("archived chunk %s: %w", id, err)
		}
		if !fn(Entry{ID: id, Record: record}) {
			break
		}
	}
	return iter.Error()
}

// Close closes the archive
func (s *ChunkArchive) Close() error {
	return s.db.Close()
}
