package grass

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/config"
	"voxelterrain/internal/meshing"
)

var (
	ErrMissingNormals    = errors.New("mesh has no per-vertex normals")
	ErrMalformedMesh     = errors.New("malformed mesh")
	ErrSingularTransform = errors.New("placement transform is not invertible")
)

const (
	singularDeterminantEpsilon = 1e-12
	zeroNormalEpsilon          = 1e-6
)

var worldUp = mgl32.Vec3{0, 1, 0}

// Instance is one grass placement in world space.
type Instance struct {
	Position    mgl32.Vec3 `json:"position"`
	Normal      mgl32.Vec3 `json:"normal"`
	Orientation mgl32.Quat `json:"orientation"`
	Variant     int        `json:"variant"`
	Scale       float32    `json:"scale"`
	Triangle    int        `json:"triangle"`
}

// Transform composes translation, orientation and uniform scale.
func (i Instance) Transform() mgl32.Mat4 {
	return mgl32.Translate3D(i.Position[0], i.Position[1], i.Position[2]).
		Mul4(i.Orientation.Mat4()).
		Mul4(mgl32.Scale3D(i.Scale, i.Scale, i.Scale))
}

// Settings controls surface scatter.
type Settings struct {
	Density               float64
	MaxCount              int
	UpwardNormalThreshold float64
	MinTriangleArea       float64
	Seed                  uint64
	Variants              int
	MinScale              float64
	MaxScale              float64
}

func SettingsFromConfig(cfg config.GrassConfig) Settings {
	return Settings{
		Density:               cfg.Density,
		MaxCount:              cfg.MaxCount,
		UpwardNormalThreshold: cfg.UpwardNormalThreshold,
		MinTriangleArea:       cfg.MinTriangleArea,
		Seed:                  cfg.Seed,
		Variants:              cfg.Variants,
		MinScale:              cfg.MinScale,
		MaxScale:              cfg.MaxScale,
	}
}

// Instancer scatters grass over the upward-facing triangles of a mesh.
type Instancer struct {
	settings Settings
}

func NewInstancer(settings Settings) *Instancer {
	return &Instancer{settings: settings}
}

func (in *Instancer) Settings() Settings {
	return in.settings
}

// Scatter uses the configured density and cap.
func (in *Instancer) Scatter(mesh *meshing.Mesh, placement mgl32.Mat4, chunkKey uint64) ([]Instance, error) {
	return in.ScatterSurface(mesh, placement, in.settings.Density, in.settings.MaxCount, chunkKey)
}

// ScatterSurface places up to maxCount instances across the triangles of mesh
// after moving it by placement. Triangles are tested with their stored
// normals transformed by the inverse-transpose of placement's linear part, so
// translation never affects acceptance. Each accepted triangle receives
// ceil(density*area) instances until the cap is reached. Output depends only
// on the inputs and chunkKey.
func (in *Instancer) ScatterSurface(mesh *meshing.Mesh, placement mgl32.Mat4, density float64, maxCount int, chunkKey uint64) ([]Instance, error) {
	if err := validateMesh(mesh); err != nil {
		return nil, err
	}
	if mesh.IsEmpty() || density <= 0 || maxCount <= 0 {
		return nil, nil
	}

	linear := placement.Mat3()
	if math.Abs(float64(linear.Det())) < singularDeterminantEpsilon {
		return nil, fmt.Errorf("chunk %v: %w", mesh.Chunk, ErrSingularTransform)
	}
	normalMatrix := linear.Inv().Transpose()

	key := mix64(in.settings.Seed ^ chunkKey)
	out := make([]Instance, 0, min(maxCount, 256))

	for tri := 0; tri < mesh.TriangleCount(); tri++ {
		remaining := maxCount - len(out)
		if remaining <= 0 {
			break
		}
		a, b, c := mesh.Triangle(tri)

		stored := mesh.Normals[a].Add(mesh.Normals[b]).Add(mesh.Normals[c])
		if !finite(stored) || stored.Len() < zeroNormalEpsilon {
			return nil, fmt.Errorf("chunk %v triangle %d: %w: zero or invalid normal", mesh.Chunk, tri, ErrMalformedMesh)
		}
		normal := normalMatrix.Mul3x1(stored).Normalize()
		if float64(normal.Y()) <= in.settings.UpwardNormalThreshold {
			continue
		}

		pa := mgl32.TransformCoordinate(mesh.Positions[a], placement)
		pb := mgl32.TransformCoordinate(mesh.Positions[b], placement)
		pc := mgl32.TransformCoordinate(mesh.Positions[c], placement)
		ab := pb.Sub(pa)
		ac := pc.Sub(pa)
		area := 0.5 * float64(ab.Cross(ac).Len())
		if area <= 0 || area < in.settings.MinTriangleArea {
			continue
		}

		count := int(math.Ceil(density * area))
		if count > remaining {
			count = remaining
		}
		for i := 0; i < count; i++ {
			out = append(out, in.place(key, tri, i, pa, ab, ac, normal))
		}
	}
	return out, nil
}

func (in *Instancer) place(key uint64, tri, i int, pa, ab, ac, normal mgl32.Vec3) Instance {
	u := unit(sample(key, tri, i, laneBaryU))
	v := unit(sample(key, tri, i, laneBaryV))
	if u+v > 1 {
		u, v = 1-u, 1-v
	}
	position := pa.Add(ab.Mul(float32(u))).Add(ac.Mul(float32(v)))

	yaw := float32(unit(sample(key, tri, i, laneYaw)) * 2 * math.Pi)
	orientation := mgl32.QuatBetweenVectors(worldUp, normal).
		Mul(mgl32.QuatRotate(yaw, worldUp)).
		Normalize()

	variant := 0
	if in.settings.Variants > 0 {
		variant = int(sample(key, tri, i, laneVariant) % uint64(in.settings.Variants))
	}
	minScale, maxScale := in.settings.MinScale, in.settings.MaxScale
	if minScale <= 0 && maxScale <= 0 {
		minScale, maxScale = 1, 1
	}
	scale := minScale + (maxScale-minScale)*unit(sample(key, tri, i, laneScale))

	return Instance{
		Position:    position,
		Normal:      normal,
		Orientation: orientation,
		Variant:     variant,
		Scale:       float32(scale),
		Triangle:    tri,
	}
}

func validateMesh(mesh *meshing.Mesh) error {
	if mesh == nil {
		return fmt.Errorf("%w: nil mesh", ErrMalformedMesh)
	}
	if len(mesh.Positions) > 0 && len(mesh.Normals) == 0 {
		return fmt.Errorf("chunk %v: %w", mesh.Chunk, ErrMissingNormals)
	}
	if len(mesh.Normals) != len(mesh.Positions) {
		return fmt.Errorf("chunk %v: %w: %d normals for %d positions", mesh.Chunk, ErrMissingNormals, len(mesh.Normals), len(mesh.Positions))
	}
	if len(mesh.Indices)%3 != 0 {
		return fmt.Errorf("chunk %v: %w: %d indices is not a triangle list", mesh.Chunk, ErrMalformedMesh, len(mesh.Indices))
	}
	for _, idx := range mesh.Indices {
		if int(idx) >= len(mesh.Positions) {
			return fmt.Errorf("chunk %v: %w: index %d out of range", mesh.Chunk, ErrMalformedMesh, idx)
		}
	}
	return nil
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
