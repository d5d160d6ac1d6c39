package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RaycastStep is the march distance between voxel samples.
const RaycastStep float32 = 0.1

// RaycastHit is the first solid voxel along a ray.
type RaycastHit struct {
	Pos      WorldCoord `json:"pos"`
	Face     Face       `json:"face"`
	Voxel    Voxel      `json:"voxel"`
	Distance float32    `json:"distance"`
}

// Adjacent returns the cell in front of the hit face, where a placed voxel goes.
func (h RaycastHit) Adjacent() WorldCoord {
	return h.Pos.Add(h.Face.Offset())
}

// Raycast marches from origin along dir in fixed steps and returns the first
// solid voxel within maxDistance. Positions are in voxel units.
func (f *Field) Raycast(origin, dir mgl32.Vec3, maxDistance float32) (RaycastHit, bool) {
	if dir.Len() == 0 || maxDistance <= 0 {
		return RaycastHit{}, false
	}
	dir = dir.Normalize()

	prev := cellOf(origin)
	for t := float32(0); t <= maxDistance; t += RaycastStep {
		cell := cellOf(origin.Add(dir.Mul(t)))
		if t > 0 && cell == prev {
			continue
		}
		v, ok := f.Voxel(cell)
		if ok && v.IsSolid() {
			return RaycastHit{
				Pos:      cell,
				Face:     entryFace(prev, cell, dir),
				Voxel:    v,
				Distance: t,
			}, true
		}
		prev = cell
	}
	return RaycastHit{}, false
}

func cellOf(p mgl32.Vec3) WorldCoord {
	return WorldCoord{
		X: int(math.Floor(float64(p.X()))),
		Y: int(math.Floor(float64(p.Y()))),
		Z: int(math.Floor(float64(p.Z()))),
	}
}

// entryFace picks the face of cell the ray came through. When the step
// crossed more than one axis the face opposite the dominant travel direction
// wins.
func entryFace(prev, cell WorldCoord, dir mgl32.Vec3) Face {
	delta := WorldCoord{X: prev.X - cell.X, Y: prev.Y - cell.Y, Z: prev.Z - cell.Z}
	if face, ok := FaceFromOffset(delta); ok {
		return face
	}
	return travelFace(dir).Opposite()
}

// travelFace is the face a ray along dir leaves a cell through.
func travelFace(dir mgl32.Vec3) Face {
	ax, ay, az := abs32(dir.X()), abs32(dir.Y()), abs32(dir.Z())
	switch {
	case ay >= ax && ay >= az:
		if dir.Y() > 0 {
			return Top
		}
		return Bottom
	case ax >= az:
		if dir.X() > 0 {
			return East
		}
		return West
	default:
		if dir.Z() > 0 {
			return South
		}
		return North
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
