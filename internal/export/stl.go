// Package export writes chunk meshes and voxel previews to disk for
// inspection outside the renderer.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/meshing"
	"voxelterrain/internal/world"
)

// STLFileName names the mesh file for a chunk.
func STLFileName(coord world.ChunkCoord) string {
	return fmt.Sprintf("chunk_%d_%d_%d.stl", coord.X, coord.Y, coord.Z)
}

// Triangles converts a chunk mesh into sdfx triangles moved by placement.
func Triangles(mesh *meshing.Mesh, placement mgl32.Mat4) ([]*sdf.Triangle3, error) {
	if mesh == nil {
		return nil, fmt.Errorf("mesh is nil")
	}
	if len(mesh.Indices)%3 != 0 {
		return nil, fmt.Errorf("chunk %v: %d indices is not a triangle list", mesh.Chunk, len(mesh.Indices))
	}
	out := make([]*sdf.Triangle3, 0, mesh.TriangleCount())
	for i := 0; i < mesh.TriangleCount(); i++ {
		a, b, c := mesh.Triangle(i)
		if int(a) >= len(mesh.Positions) || int(b) >= len(mesh.Positions) || int(c) >= len(mesh.Positions) {
			return nil, fmt.Errorf("chunk %v triangle %d: index out of range", mesh.Chunk, i)
		}
		out = append(out, &sdf.Triangle3{
			toVec(mesh.Positions[a], placement),
			toVec(mesh.Positions[b], placement),
			toVec(mesh.Positions[c], placement),
		})
	}
	return out, nil
}

func toVec(p mgl32.Vec3, placement mgl32.Mat4) v3.Vec {
	w := mgl32.TransformCoordinate(p, placement)
	return v3.Vec{X: float64(w.X()), Y: float64(w.Y()), Z: float64(w.Z())}
}

// WriteChunkSTL writes mesh as a binary STL under dir. Empty meshes are
// skipped and report an empty path.
func WriteChunkSTL(dir string, mesh *meshing.Mesh, placement mgl32.Mat4) (string, error) {
	if mesh == nil || mesh.IsEmpty() {
		return "", nil
	}
	triangles, err := Triangles(mesh, placement)
	if err != nil {
		return "", err
	}
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, STLFileName(mesh.Chunk))
	if err := render.SaveSTL(path, triangles); err != nil {
		return "", fmt.Errorf("save stl %s: %w", path, err)
	}
	return path, nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
