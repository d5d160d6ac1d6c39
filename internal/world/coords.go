package world

import (
	"fmt"

	"voxelterrain/internal/config"
)

// ChunkCoord identifies a chunk in the chunk grid.
type ChunkCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add offsets the chunk coordinate by a chunk-space delta.
func (c ChunkCoord) Add(dx, dy, dz int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// LocalCoord addresses a voxel inside a chunk; each axis is in [0, chunkSize).
type LocalCoord struct {
	X int
	Y int
	Z int
}

// WorldCoord is a voxel position in absolute voxel units.
type WorldCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (w WorldCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", w.X, w.Y, w.Z)
}

func (w WorldCoord) Add(o WorldCoord) WorldCoord {
	return WorldCoord{X: w.X + o.X, Y: w.Y + o.Y, Z: w.Z + o.Z}
}

// Bounds is an axis-aligned box represented by inclusive min/max corners in voxel space.
type Bounds struct {
	Min WorldCoord
	Max WorldCoord
}

// Layout describes the finite world: chunk size, the inclusive chunk range on
// each axis and the vertical ceiling. The floor is always y = 0.
type Layout struct {
	ChunkSize int
	MinChunk  ChunkCoord
	MaxChunk  ChunkCoord
	MaxHeight int
}

// NewLayout maps cfg onto chunk ranges. Vertical chunks start at y=0 and
// cfg.Chunks.Y of them are stacked; a validated config makes the top one hold
// MaxHeight.
func NewLayout(cfg config.WorldConfig) Layout {
	return Layout{
		ChunkSize: cfg.ChunkSize,
		MinChunk:  ChunkCoord{X: cfg.Origin.X, Y: 0, Z: cfg.Origin.Z},
		MaxChunk: ChunkCoord{
			X: cfg.Origin.X + cfg.Chunks.X - 1,
			Y: cfg.Chunks.Y - 1,
			Z: cfg.Origin.Z + cfg.Chunks.Z - 1,
		},
		MaxHeight: cfg.MaxHeight,
	}
}

// Bounds returns the voxel-space extents of the world.
func (l Layout) Bounds() Bounds {
	return Bounds{
		Min: WorldCoord{
			X: l.MinChunk.X * l.ChunkSize,
			Y: 0,
			Z: l.MinChunk.Z * l.ChunkSize,
		},
		Max: WorldCoord{
			X: (l.MaxChunk.X+1)*l.ChunkSize - 1,
			Y: l.MaxHeight,
			Z: (l.MaxChunk.Z+1)*l.ChunkSize - 1,
		},
	}
}

// Contains reports whether pos lies inside the world. Horizontal axes are
// checked against the chunk range on both sides; the vertical axis has a hard
// floor at 0 and a ceiling at MaxHeight.
func (l Layout) Contains(pos WorldCoord) bool {
	if pos.Y < 0 || pos.Y > l.MaxHeight {
		return false
	}
	b := l.Bounds()
	return pos.X >= b.Min.X && pos.X <= b.Max.X &&
		pos.Z >= b.Min.Z && pos.Z <= b.Max.Z
}

func (l Layout) ContainsChunk(c ChunkCoord) bool {
	return c.X >= l.MinChunk.X && c.X <= l.MaxChunk.X &&
		c.Y >= l.MinChunk.Y && c.Y <= l.MaxChunk.Y &&
		c.Z >= l.MinChunk.Z && c.Z <= l.MaxChunk.Z
}

// Locate splits a world position into its owning chunk and local offset. It
// does not check bounds.
func (l Layout) Locate(pos WorldCoord) (ChunkCoord, LocalCoord) {
	chunk := ChunkCoord{
		X: floorDiv(pos.X, l.ChunkSize),
		Y: floorDiv(pos.Y, l.ChunkSize),
		Z: floorDiv(pos.Z, l.ChunkSize),
	}
	local := LocalCoord{
		X: pos.X - chunk.X*l.ChunkSize,
		Y: pos.Y - chunk.Y*l.ChunkSize,
		Z: pos.Z - chunk.Z*l.ChunkSize,
	}
	return chunk, local
}

// ChunkOrigin returns the world position of local (0,0,0) in chunk c.
func (l Layout) ChunkOrigin(c ChunkCoord) WorldCoord {
	return WorldCoord{
		X: c.X * l.ChunkSize,
		Y: c.Y * l.ChunkSize,
		Z: c.Z * l.ChunkSize,
	}
}

func (l Layout) ToWorld(c ChunkCoord, local LocalCoord) WorldCoord {
	origin := l.ChunkOrigin(c)
	return WorldCoord{
		X: origin.X + local.X,
		Y: origin.Y + local.Y,
		Z: origin.Z + local.Z,
	}
}

// InChunk reports whether a local offset stays inside a single chunk.
func (l Layout) InChunk(local LocalCoord) bool {
	return local.X >= 0 && local.Y >= 0 && local.Z >= 0 &&
		local.X < l.ChunkSize && local.Y < l.ChunkSize && local.Z < l.ChunkSize
}

// ChunkCoords enumerates every chunk coordinate within the world in x, y, z order.
func (l Layout) ChunkCoords() []ChunkCoord {
	count := (l.MaxChunk.X - l.MinChunk.X + 1) *
		(l.MaxChunk.Y - l.MinChunk.Y + 1) *
		(l.MaxChunk.Z - l.MinChunk.Z + 1)
	if count <= 0 {
		return nil
	}
	out := make([]ChunkCoord, 0, count)
	for x := l.MinChunk.X; x <= l.MaxChunk.X; x++ {
		for y := l.MinChunk.Y; y <= l.MaxChunk.Y; y++ {
			for z := l.MinChunk.Z; z <= l.MaxChunk.Z; z++ {
				out = append(out, ChunkCoord{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}
