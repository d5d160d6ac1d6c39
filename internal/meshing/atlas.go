package meshing

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/world"
)

// Atlas is a grid of equally sized texture tiles addressed row-major from the
// top-left corner.
type Atlas struct {
	Columns int
	Rows    int
}

// TileUVs returns the UVs for tile index in quad vertex order.
func (a Atlas) TileUVs(index int) [4]mgl32.Vec2 {
	cols, rows := a.Columns, a.Rows
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	col := index % cols
	row := (index / cols) % rows

	u0 := float32(col) / float32(cols)
	u1 := float32(col+1) / float32(cols)
	v0 := float32(row) / float32(rows)
	v1 := float32(row+1) / float32(rows)

	return [4]mgl32.Vec2{
		{u0, v1},
		{u1, v1},
		{u1, v0},
		{u0, v0},
	}
}

// FaceUVs resolves the tile for a material's face.
func (a Atlas) FaceUVs(m world.Material, face world.Face) [4]mgl32.Vec2 {
	return a.TileUVs(int(m.AtlasIndex(face)))
}
