package world

import (
	"sync"
)

// ChunkStore persists chunk voxel arrays keyed by chunk coordinate.
type ChunkStore interface {
	Load(coord ChunkCoord) ([]Voxel, bool, error)
	Save(coord ChunkCoord, voxels []Voxel) error
	Delete(coord ChunkCoord) error
	ForEach(fn func(coord ChunkCoord, voxels []Voxel) bool) error
	Close() error
}

// MemoryStore keeps chunks in a map for the lifetime of the process. Nothing
// survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[ChunkCoord][]Voxel
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[ChunkCoord][]Voxel)}
}

func (m *MemoryStore) Load(coord ChunkCoord) ([]Voxel, bool, error) {
	m.mu.RLock()
	voxels, ok := m.chunks[coord]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	dup := make([]Voxel, len(voxels))
	copy(dup, voxels)
	return dup, true, nil
}

func (m *MemoryStore) Save(coord ChunkCoord, voxels []Voxel) error {
	dup := make([]Voxel, len(voxels))
	copy(dup, voxels)
	m.mu.Lock()
	m.chunks[coord] = dup
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(coord ChunkCoord) error {
	m.mu.Lock()
	delete(m.chunks, coord)
	m.mu.Unlock()
	return nil
}

// ForEach visits chunks in coordinate order.
func (m *MemoryStore) ForEach(fn func(coord ChunkCoord, voxels []Voxel) bool) error {
	m.mu.RLock()
	coords := make([]ChunkCoord, 0, len(m.chunks))
	for coord := range m.chunks {
		coords = append(coords, coord)
	}
	m.mu.RUnlock()
	SortChunkCoords(coords)

	for _, coord := range coords {
		voxels, ok, _ := m.Load(coord)
		if !ok {
			continue
		}
		if !fn(coord, voxels) {
			break
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
