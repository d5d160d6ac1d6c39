package world

import "sort"

// Edit requests that the voxel at Pos become Material.
type Edit struct {
	Pos      WorldCoord `json:"pos"`
	Material Material   `json:"material"`
}

// VoxelChange captures the before/after state of a voxel mutation.
type VoxelChange struct {
	Pos    WorldCoord `json:"pos"`
	Before Voxel      `json:"before"`
	After  Voxel      `json:"after"`
}

// EditResult describes a single applied edit. Dirty lists the chunks whose
// meshes must be rebuilt: the owning chunk plus every existing neighbour that
// shares the edited voxel's boundary. A no-op edit has no dirty chunks.
type EditResult struct {
	VoxelChange
	Dirty []ChunkCoord `json:"dirty"`
}

// Changed reports whether the edit altered the voxel.
func (r EditResult) Changed() bool {
	return r.Before != r.After
}

// EditSummary accumulates voxel mutations across a batch of edits.
type EditSummary struct {
	changes map[WorldCoord]VoxelChange
	chunks  map[ChunkCoord]struct{}
}

func NewEditSummary() *EditSummary {
	return &EditSummary{
		changes: make(map[WorldCoord]VoxelChange),
		chunks:  make(map[ChunkCoord]struct{}),
	}
}

// AddChange records a mutation. Repeated edits to one voxel keep the earliest
// Before so the summary reflects the net change.
func (s *EditSummary) AddChange(change VoxelChange) {
	if s.changes == nil {
		s.changes = make(map[WorldCoord]VoxelChange)
	}
	if existing, ok := s.changes[change.Pos]; ok {
		change.Before = existing.Before
	}
	if change.Before == change.After {
		delete(s.changes, change.Pos)
		return
	}
	s.changes[change.Pos] = change
}

func (s *EditSummary) AddChunk(coord ChunkCoord) {
	if s.chunks == nil {
		s.chunks = make(map[ChunkCoord]struct{})
	}
	s.chunks[coord] = struct{}{}
}

// Add folds an edit result into the summary.
func (s *EditSummary) Add(result EditResult) {
	if !result.Changed() {
		return
	}
	s.AddChange(result.VoxelChange)
	for _, coord := range result.Dirty {
		s.AddChunk(coord)
	}
}

// Changes returns the net mutations ordered by position.
func (s *EditSummary) Changes() []VoxelChange {
	if len(s.changes) == 0 {
		return nil
	}
	out := make([]VoxelChange, 0, len(s.changes))
	for _, change := range s.changes {
		out = append(out, change)
	}
	sort.Slice(out, func(i, j int) bool { return lessWorld(out[i].Pos, out[j].Pos) })
	return out
}

// DirtyChunks returns every chunk touched by the batch in coordinate order.
func (s *EditSummary) DirtyChunks() []ChunkCoord {
	if len(s.chunks) == 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, len(s.chunks))
	for coord := range s.chunks {
		out = append(out, coord)
	}
	SortChunkCoords(out)
	return out
}

// Merge folds other into s as if its edits had been applied after those
// already recorded.
func (s *EditSummary) Merge(other *EditSummary) {
	if other == nil {
		return
	}
	for _, change := range other.changes {
		s.AddChange(change)
	}
	for coord := range other.chunks {
		s.AddChunk(coord)
	}
}

// SortChunkCoords orders coordinates by x, then y, then z.
func SortChunkCoords(coords []ChunkCoord) {
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
}

func lessWorld(a, b WorldCoord) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}
