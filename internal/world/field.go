package world

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrChunkNotFound   = errors.New("chunk not loaded")
	ErrOutOfBounds     = errors.New("position outside world bounds")
	ErrProtectedVoxel  = errors.New("voxel cannot be broken")
	ErrOccupied        = errors.New("target voxel is occupied")
	ErrInvalidMaterial = errors.New("invalid material")
)

// Field is the authoritative voxel store: a finite grid of dense chunks.
type Field struct {
	layout Layout

	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk
}

func NewField(layout Layout) *Field {
	return &Field{
		layout: layout,
		chunks: make(map[ChunkCoord]*Chunk),
	}
}

func (f *Field) Layout() Layout {
	return f.layout
}

// Chunk returns a loaded chunk.
func (f *Field) Chunk(coord ChunkCoord) (*Chunk, bool) {
	f.mu.RLock()
	ch, ok := f.chunks[coord]
	f.mu.RUnlock()
	return ch, ok
}

func (f *Field) ChunkExists(coord ChunkCoord) bool {
	_, ok := f.Chunk(coord)
	return ok
}

// EnsureChunk returns the chunk at coord, allocating an all-air chunk when it
// is not loaded yet.
func (f *Field) EnsureChunk(coord ChunkCoord) (*Chunk, error) {
	if !f.layout.ContainsChunk(coord) {
		return nil, fmt.Errorf("chunk %v: %w", coord, ErrOutOfBounds)
	}

	f.mu.RLock()
	ch, ok := f.chunks[coord]
	f.mu.RUnlock()
	if ok {
		return ch, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.chunks[coord]; ok {
		return existing, nil
	}
	ch = NewChunk(coord, f.layout.ChunkSize)
	f.chunks[coord] = ch
	return ch, nil
}

// AllocateAll loads every chunk in the layout as air.
func (f *Field) AllocateAll() {
	for _, coord := range f.layout.ChunkCoords() {
		// coords come from the layout so EnsureChunk cannot fail here
		_, _ = f.EnsureChunk(coord)
	}
}

// ChunkCoords lists the loaded chunks in coordinate order.
func (f *Field) ChunkCoords() []ChunkCoord {
	f.mu.RLock()
	out := make([]ChunkCoord, 0, len(f.chunks))
	for coord := range f.chunks {
		out = append(out, coord)
	}
	f.mu.RUnlock()
	SortChunkCoords(out)
	return out
}

// Generation returns the mutation counter of a loaded chunk.
func (f *Field) Generation(coord ChunkCoord) (uint64, bool) {
	ch, ok := f.Chunk(coord)
	if !ok {
		return 0, false
	}
	return ch.Generation(), true
}

// Voxel looks up a voxel by world position. Positions outside the world or in
// chunks that are not loaded report absent.
func (f *Field) Voxel(pos WorldCoord) (Voxel, bool) {
	if !f.layout.Contains(pos) {
		return Voxel{}, false
	}
	coord, local := f.layout.Locate(pos)
	ch, ok := f.Chunk(coord)
	if !ok {
		return Voxel{}, false
	}
	return ch.Get(local)
}

// SetVoxel writes material m at pos and reports the chunks that need a
// rebuild.
func (f *Field) SetVoxel(pos WorldCoord, m Material) (EditResult, error) {
	if !m.Valid() {
		return EditResult{}, fmt.Errorf("set voxel %v: %w: %d", pos, ErrInvalidMaterial, uint8(m))
	}
	if !f.layout.Contains(pos) {
		return EditResult{}, fmt.Errorf("set voxel %v: %w", pos, ErrOutOfBounds)
	}
	coord, local := f.layout.Locate(pos)
	ch, ok := f.Chunk(coord)
	if !ok {
		return EditResult{}, fmt.Errorf("set voxel %v in chunk %v: %w", pos, coord, ErrChunkNotFound)
	}

	after := Voxel{Material: m}
	before, _ := ch.Set(local, after)
	result := EditResult{VoxelChange: VoxelChange{Pos: pos, Before: before, After: after}}
	if before == after {
		return result, nil
	}

	result.Dirty = append(result.Dirty, coord)
	for _, neighbour := range f.boundaryNeighbours(coord, local) {
		if nch, ok := f.Chunk(neighbour); ok {
			nch.Touch()
			result.Dirty = append(result.Dirty, neighbour)
		}
	}
	SortChunkCoords(result.Dirty)
	return result, nil
}

// boundaryNeighbours returns the chunks that share a face with a voxel sitting
// on the edge of its chunk.
func (f *Field) boundaryNeighbours(coord ChunkCoord, local LocalCoord) []ChunkCoord {
	last := f.layout.ChunkSize - 1
	var out []ChunkCoord
	if local.X == 0 {
		out = append(out, coord.Add(-1, 0, 0))
	}
	if local.X == last {
		out = append(out, coord.Add(1, 0, 0))
	}
	if local.Y == 0 {
		out = append(out, coord.Add(0, -1, 0))
	}
	if local.Y == last {
		out = append(out, coord.Add(0, 1, 0))
	}
	if local.Z == 0 {
		out = append(out, coord.Add(0, 0, -1))
	}
	if local.Z == last {
		out = append(out, coord.Add(0, 0, 1))
	}
	return out
}

// BreakVoxel clears a solid voxel to air. Breaking air or water is a no-op.
func (f *Field) BreakVoxel(pos WorldCoord) (EditResult, error) {
	current, ok := f.Voxel(pos)
	if !ok {
		if !f.layout.Contains(pos) {
			return EditResult{}, fmt.Errorf("break voxel %v: %w", pos, ErrOutOfBounds)
		}
		return EditResult{}, fmt.Errorf("break voxel %v: %w", pos, ErrChunkNotFound)
	}
	if current.IsTransparent() {
		return EditResult{VoxelChange: VoxelChange{Pos: pos, Before: current, After: current}}, nil
	}
	if !current.Material.Info().Breakable {
		return EditResult{}, fmt.Errorf("break voxel %v (%s): %w", pos, current.Material, ErrProtectedVoxel)
	}
	return f.SetVoxel(pos, Air)
}

// PlaceVoxel puts a solid material into an air or water cell.
func (f *Field) PlaceVoxel(pos WorldCoord, m Material) (EditResult, error) {
	if !m.Valid() || m == Air {
		return EditResult{}, fmt.Errorf("place voxel %v: %w: %s", pos, ErrInvalidMaterial, m)
	}
	current, ok := f.Voxel(pos)
	if !ok {
		if !f.layout.Contains(pos) {
			return EditResult{}, fmt.Errorf("place voxel %v: %w", pos, ErrOutOfBounds)
		}
		return EditResult{}, fmt.Errorf("place voxel %v: %w", pos, ErrChunkNotFound)
	}
	if current.Material != Air && current.Material != Water {
		return EditResult{}, fmt.Errorf("place voxel %v over %s: %w", pos, current.Material, ErrOccupied)
	}
	return f.SetVoxel(pos, m)
}

// ApplyEdits applies a batch in order. It stops at the first failing edit and
// returns the summary of what was applied so far.
func (f *Field) ApplyEdits(edits []Edit) (*EditSummary, error) {
	summary := NewEditSummary()
	for i, edit := range edits {
		result, err := f.SetVoxel(edit.Pos, edit.Material)
		if err != nil {
			return summary, fmt.Errorf("edit %d: %w", i, err)
		}
		summary.Add(result)
	}
	return summary, nil
}

// Save writes every loaded chunk to store. All-air chunks are deleted from the
// store instead of written.
func (f *Field) Save(store ChunkStore) error {
	for _, coord := range f.ChunkCoords() {
		ch, ok := f.Chunk(coord)
		if !ok {
			continue
		}
		var err error
		if ch.IsEmpty() {
			err = store.Delete(coord)
		} else {
			err = store.Save(coord, ch.Snapshot())
		}
		if err != nil {
			return fmt.Errorf("save chunk %v: %w", coord, err)
		}
	}
	return nil
}

// Load restores chunks from store into the field and returns how many were
// restored. Records outside the layout are skipped.
func (f *Field) Load(store ChunkStore) (int, error) {
	restored := 0
	var loadErr error
	err := store.ForEach(func(coord ChunkCoord, voxels []Voxel) bool {
		if !f.layout.ContainsChunk(coord) {
			return true
		}
		ch, err := f.EnsureChunk(coord)
		if err != nil {
			loadErr = err
			return false
		}
		if !ch.Restore(voxels) {
			loadErr = fmt.Errorf("chunk %v: stored %d voxels, want %d", coord, len(voxels), ch.Size()*ch.Size()*ch.Size())
			return false
		}
		restored++
		return true
	})
	if err != nil {
		return restored, fmt.Errorf("iterate store: %w", err)
	}
	if loadErr != nil {
		return restored, fmt.Errorf("restore: %w", loadErr)
	}
	return restored, nil
}
