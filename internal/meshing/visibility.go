package meshing

import "voxelterrain/internal/world"

// VoxelSource is the read-only lookup the oracle needs. Voxel reports false for
// any position outside the world or in a chunk that does not exist.
type VoxelSource interface {
	Voxel(pos world.WorldCoord) (world.Voxel, bool)
	ChunkExists(coord world.ChunkCoord) bool
}

// EdgePolicy decides visibility for a face whose neighbour cell is not part of
// the world.
type EdgePolicy func(neighbour world.WorldCoord, face world.Face) bool

// HiddenAtWorldEdge never shows a face that looks outside the world.
func HiddenAtWorldEdge(world.WorldCoord, world.Face) bool { return false }

// VisibleAtWorldEdge shows every face that looks outside the world. Useful
// when debugging an open-ended world.
func VisibleAtWorldEdge(world.WorldCoord, world.Face) bool { return true }

// Oracle answers whether a face of a solid voxel is visible.
type Oracle struct {
	edge EdgePolicy
}

// NewOracle builds an oracle with the given out-of-bounds policy. A nil policy
// means HiddenAtWorldEdge.
func NewOracle(edge EdgePolicy) Oracle {
	if edge == nil {
		edge = HiddenAtWorldEdge
	}
	return Oracle{edge: edge}
}

// IsFaceVisible reports whether the face of the solid voxel at pos should be
// emitted: the neighbour across it must exist and be transparent. Missing
// neighbours go through the edge policy uniformly for every face.
func (o Oracle) IsFaceVisible(src VoxelSource, pos world.WorldCoord, face world.Face) bool {
	neighbour := pos.Add(face.Offset())
	v, ok := src.Voxel(neighbour)
	if !ok {
		if o.edge == nil {
			return false
		}
		return o.edge(neighbour, face)
	}
	return v.IsTransparent()
}

// IsFaceVisible applies the default oracle.
func IsFaceVisible(src VoxelSource, pos world.WorldCoord, face world.Face) bool {
	return NewOracle(nil).IsFaceVisible(src, pos, face)
}
