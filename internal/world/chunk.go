package world

import (
	"sync"
	"sync/atomic"
)

// Chunk stores a dense cube of voxels. The generation counter increments on
// every mutation that could change the chunk's mesh, including edits to
// neighbouring voxels that sit on its boundary.
type Chunk struct {
	Coord ChunkCoord

	mu     sync.RWMutex
	size   int
	voxels []Voxel

	generation atomic.Uint64
}

// NewChunk allocates an all-air chunk with edge length size.
func NewChunk(coord ChunkCoord, size int) *Chunk {
	return &Chunk{
		Coord:  coord,
		size:   size,
		voxels: make([]Voxel, size*size*size),
	}
}

// Index maps local coordinates to the flat slot: x + y*size + z*size*size.
func (c *Chunk) Index(x, y, z int) int {
	return x + y*c.size + z*c.size*c.size
}

func (c *Chunk) Size() int {
	return c.size
}

func (c *Chunk) inside(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < c.size && y < c.size && z < c.size
}

// Get returns the voxel at a local coordinate. The second result is false when
// the coordinate is outside the chunk.
func (c *Chunk) Get(local LocalCoord) (Voxel, bool) {
	if !c.inside(local.X, local.Y, local.Z) {
		return Voxel{}, false
	}
	c.mu.RLock()
	v := c.voxels[c.Index(local.X, local.Y, local.Z)]
	c.mu.RUnlock()
	return v, true
}

// Set stores a voxel and returns the previous value. It reports false without
// touching the chunk when the coordinate is outside it.
func (c *Chunk) Set(local LocalCoord, v Voxel) (Voxel, bool) {
	if !c.inside(local.X, local.Y, local.Z) {
		return Voxel{}, false
	}
	idx := c.Index(local.X, local.Y, local.Z)
	c.mu.Lock()
	before := c.voxels[idx]
	c.voxels[idx] = v
	c.mu.Unlock()
	if before != v {
		c.generation.Add(1)
	}
	return before, true
}

// Fill overwrites the whole chunk using fn, called in index order.
func (c *Chunk) Fill(fn func(local LocalCoord) Voxel) {
	c.mu.Lock()
	for z := 0; z < c.size; z++ {
		for y := 0; y < c.size; y++ {
			for x := 0; x < c.size; x++ {
				c.voxels[c.Index(x, y, z)] = fn(LocalCoord{X: x, Y: y, Z: z})
			}
		}
	}
	c.mu.Unlock()
	c.generation.Add(1)
}

// Snapshot copies the voxel array in index order.
func (c *Chunk) Snapshot() []Voxel {
	c.mu.RLock()
	out := make([]Voxel, len(c.voxels))
	copy(out, c.voxels)
	c.mu.RUnlock()
	return out
}

// Restore replaces the voxel array with data in index order. The length must
// match the chunk volume.
func (c *Chunk) Restore(data []Voxel) bool {
	if len(data) != len(c.voxels) {
		return false
	}
	c.mu.Lock()
	copy(c.voxels, data)
	c.mu.Unlock()
	c.generation.Add(1)
	return true
}

// IsEmpty reports whether the chunk holds nothing but air.
func (c *Chunk) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, v := range c.voxels {
		if v.Material != Air {
			return false
		}
	}
	return true
}

// Generation returns the mutation counter.
func (c *Chunk) Generation() uint64 {
	return c.generation.Load()
}

// Touch invalidates the chunk without changing its voxels, used when a
// neighbouring chunk's boundary voxel changed.
func (c *Chunk) Touch() {
	c.generation.Add(1)
}
