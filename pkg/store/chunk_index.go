package store

import (
	"sort"
	"sync"

	"github.com/ssargent/pngchunk/pkg/codec"
)

// ChunkIndex maps chunk types to the offsets of their chunks in file order
type ChunkIndex struct {
	entries map[codec.TypeTag][]int64
	count   int
	mutex   sync.RWMutex
}

// NewChunkIndex creates an empty chunk index
func NewChunkIndex() *ChunkIndex {
	return &ChunkIndex{
		entries: make(map[codec.TypeTag][]int64),
	}
}

// Add records a chunk of type tag at offset. Offsets must be added in
// increasing order.
func (idx *ChunkIndex) Add(tag codec.TypeTag, offset int64) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries[tag] = append(idx.entries[tag], offset)
	idx.count++
}

// First returns the offset of the first chunk of type tag
func (idx *ChunkIndex) First(tag codec.TypeTag) (int64, bool) {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	offsets := idx.entries[tag]
	if len(offsets) == 0 {
		return 0, false
	}
	return offsets[0], true
}

// Offsets returns the offsets of every chunk of type tag
func (idx *ChunkIndex) Offsets(tag codec.TypeTag) []int64 {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return append([]int64(nil), idx.entries[tag]...)
}

// Size returns the number of indexed chunks
func (idx *ChunkIndex) Size() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	return idx.count
}

// Clear removes all entries from the index
func (idx *ChunkIndex) Clear() {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	idx.entries = make(map[codec.TypeTag][]int64)
	idx.count = 0
}

// Types returns the indexed chunk types sorted by first occurrence
func (idx *ChunkIndex) Types() []codec.TypeTag {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	types := make([]codec.TypeTag, 0, len(idx.entries))
	for tag := range idx.entries {
		types = append(types, tag)
	}
	sort.Slice(types, func(i, j int) bool {
		return idx.entries[types[i]][0] < idx.entries[types[j]][0]
	})
	return types
}

// BuildFromFile rebuilds the index from every chunk the reader yields
func (idx *ChunkIndex) BuildFromFile(reader *ChunkReader) error {
	entries := make(map[codec.TypeTag][]int64)
	count := 0

	iterator := reader.Iterator()
	defer iterator.Close()

	for iterator.Next() {
		tag := iterator.Record().Tag()
		entries[tag] = append(entries[tag], iterator.Offset())
		count++
	}
	if err := iterator.Err(); err != nil {
		return err
	}

	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	idx.entries = entries
	idx.count = count
	return nil
}
