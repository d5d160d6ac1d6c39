package meshing

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/config"
	"voxelterrain/internal/world"
)

// ErrChunkMissing is returned when asked to mesh a chunk that was never
// generated or loaded.
var ErrChunkMissing = errors.New("chunk does not exist")

// Source is the world view a Mesher reads from.
type Source interface {
	VoxelSource
	Chunk(coord world.ChunkCoord) (*world.Chunk, bool)
	Layout() world.Layout
}

var faceNormals = [...]mgl32.Vec3{
	world.Top:    {0, 1, 0},
	world.Bottom: {0, -1, 0},
	world.North:  {0, 0, -1},
	world.South:  {0, 0, 1},
	world.East:   {1, 0, 0},
	world.West:   {-1, 0, 0},
}

// FaceNormal returns the fixed outward normal of a face.
func FaceNormal(face world.Face) mgl32.Vec3 {
	return faceNormals[face]
}

// faceCorners returns the quad for a face of the cube whose minimum corner is
// (x, y, z) and whose edge is s.
func faceCorners(face world.Face, x, y, z, s float32) [4]mgl32.Vec3 {
	switch face {
	case world.Top:
		return [4]mgl32.Vec3{{x, y + s, z + s}, {x + s, y + s, z + s}, {x + s, y + s, z}, {x, y + s, z}}
	case world.Bottom:
		return [4]mgl32.Vec3{{x, y, z}, {x + s, y, z}, {x + s, y, z + s}, {x, y, z + s}}
	case world.North:
		return [4]mgl32.Vec3{{x + s, y, z}, {x, y, z}, {x, y + s, z}, {x + s, y + s, z}}
	case world.South:
		return [4]mgl32.Vec3{{x, y, z + s}, {x + s, y, z + s}, {x + s, y + s, z + s}, {x, y + s, z + s}}
	case world.East:
		return [4]mgl32.Vec3{{x + s, y, z + s}, {x + s, y, z}, {x + s, y + s, z}, {x + s, y + s, z + s}}
	default:
		return [4]mgl32.Vec3{{x, y, z}, {x, y, z + s}, {x, y + s, z + s}, {x, y + s, z}}
	}
}

// Mesher turns chunks into per-face quad meshes.
type Mesher struct {
	oracle    Oracle
	atlas     Atlas
	voxelSize float32
}

type Option func(*Mesher)

// WithEdgePolicy replaces the out-of-bounds visibility policy.
func WithEdgePolicy(edge EdgePolicy) Option {
	return func(m *Mesher) {
		m.oracle = NewOracle(edge)
	}
}

func NewMesher(cfg config.MeshingConfig, opts ...Option) *Mesher {
	m := &Mesher{
		oracle:    NewOracle(nil),
		atlas:     Atlas{Columns: cfg.AtlasColumns, Rows: cfg.AtlasRows},
		voxelSize: cfg.VoxelSize,
	}
	if m.voxelSize <= 0 {
		m.voxelSize = 1
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MeshChunk builds the mesh of one chunk. Voxels are visited with x outermost
// and z innermost, faces in world.Faces order, so identical input produces an
// identical mesh. Faces toward neighbours inside the same chunk are resolved
// from the chunk's own array; everything else goes through the oracle.
func (m *Mesher) MeshChunk(src Source, coord world.ChunkCoord) (*Mesh, error) {
	chunk, ok := src.Chunk(coord)
	if !ok {
		return nil, fmt.Errorf("mesh chunk %v: %w", coord, ErrChunkMissing)
	}

	layout := src.Layout()
	size := chunk.Size()
	voxels := chunk.Snapshot()
	mesh := &Mesh{Chunk: coord}
	s := m.voxelSize

	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				v := voxels[chunk.Index(x, y, z)]
				if v.IsTransparent() {
					continue
				}
				local := world.LocalCoord{X: x, Y: y, Z: z}
				pos := layout.ToWorld(coord, local)
				if !layout.Contains(pos) {
					continue
				}

				for _, face := range world.Faces {
					if !m.faceVisible(src, layout, chunk, voxels, local, pos, face) {
						continue
					}
					corners := faceCorners(face, float32(x)*s, float32(y)*s, float32(z)*s, s)
					mesh.appendQuad(corners, faceNormals[face], m.atlas.FaceUVs(v.Material, face))
				}
			}
		}
	}
	return mesh, nil
}

func (m *Mesher) faceVisible(src Source, layout world.Layout, chunk *world.Chunk, voxels []world.Voxel, local world.LocalCoord, pos world.WorldCoord, face world.Face) bool {
	off := face.Offset()
	next := world.LocalCoord{X: local.X + off.X, Y: local.Y + off.Y, Z: local.Z + off.Z}
	if layout.InChunk(next) && layout.Contains(pos.Add(off)) {
		return voxels[chunk.Index(next.X, next.Y, next.Z)].IsTransparent()
	}
	return m.oracle.IsFaceVisible(src, pos, face)
}
