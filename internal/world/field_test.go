package world

import (
	"errors"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/config"
)

func newTestField(t *testing.T, size int, chunks config.ChunkExtent, maxHeight int) *Field {
	t.Helper()
	layout := NewLayout(config.WorldConfig{
		ChunkSize: size,
		Chunks:    chunks,
		MaxHeight: maxHeight,
	})
	field := NewField(layout)
	field.AllocateAll()
	return field
}

func TestLayoutLocateNegativeCoordinates(t *testing.T) {
	layout := NewLayout(config.WorldConfig{
		ChunkSize: 16,
		Origin:    config.ChunkIndex{X: -2, Z: -2},
		Chunks:    config.ChunkExtent{X: 4, Y: 1, Z: 4},
		MaxHeight: 15,
	})

	chunk, local := layout.Locate(WorldCoord{X: -1, Y: 3, Z: -17})
	if want := (ChunkCoord{X: -1, Y: 0, Z: -2}); chunk != want {
		t.Fatalf("chunk mismatch: got %v want %v", chunk, want)
	}
	if want := (LocalCoord{X: 15, Y: 3, Z: 15}); local != want {
		t.Fatalf("local mismatch: got %+v want %+v", local, want)
	}
	if got := layout.ToWorld(chunk, local); got != (WorldCoord{X: -1, Y: 3, Z: -17}) {
		t.Fatalf("round trip mismatch: %v", got)
	}
}

func TestLayoutStacksConfiguredChunks(t *testing.T) {
	layout := NewLayout(config.WorldConfig{
		ChunkSize: 8,
		Origin:    config.ChunkIndex{X: -1, Z: -2},
		Chunks:    config.ChunkExtent{X: 2, Y: 4, Z: 4},
		MaxHeight: 31,
	})
	if want := (ChunkCoord{X: 0, Y: 3, Z: 1}); layout.MaxChunk != want {
		t.Fatalf("max chunk mismatch: got %v want %v", layout.MaxChunk, want)
	}
	if !layout.ContainsChunk(ChunkCoord{X: -1, Y: 3, Z: -2}) || layout.ContainsChunk(ChunkCoord{Y: 4}) {
		t.Fatalf("vertical chunk range should follow chunks.y")
	}
}

func TestLayoutContainsFloorAndCeiling(t *testing.T) {
	layout := NewLayout(config.WorldConfig{
		ChunkSize: 4,
		Origin:    config.ChunkIndex{X: -1, Z: -1},
		Chunks:    config.ChunkExtent{X: 2, Y: 2, Z: 2},
		MaxHeight: 6,
	})

	tests := []struct {
		pos  WorldCoord
		want bool
	}{
		{pos: WorldCoord{X: 0, Y: 0, Z: 0}, want: true},
		{pos: WorldCoord{X: -4, Y: 6, Z: 3}, want: true},
		{pos: WorldCoord{X: 0, Y: -1, Z: 0}, want: false},
		{pos: WorldCoord{X: 0, Y: 7, Z: 0}, want: false},
		{pos: WorldCoord{X: -5, Y: 0, Z: 0}, want: false},
		{pos: WorldCoord{X: 4, Y: 0, Z: 0}, want: false},
		{pos: WorldCoord{X: 0, Y: 0, Z: 4}, want: false},
	}
	for _, tt := range tests {
		if got := layout.Contains(tt.pos); got != tt.want {
			t.Fatalf("Contains(%v) = %v, want %v", tt.pos, got, tt.want)
		}
	}

	if got := len(layout.ChunkCoords()); got != 2*2*2 {
		t.Fatalf("expected 8 chunk coords, got %d", got)
	}
}

func TestFieldVoxelReportsAbsenceOutsideWorld(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 1, Y: 1, Z: 1}, 3)

	if _, ok := field.Voxel(WorldCoord{X: 0, Y: -1, Z: 0}); ok {
		t.Fatalf("expected voxel below the floor to be absent")
	}
	if _, ok := field.Voxel(WorldCoord{X: 4, Y: 0, Z: 0}); ok {
		t.Fatalf("expected voxel past the edge to be absent")
	}
	v, ok := field.Voxel(WorldCoord{X: 1, Y: 1, Z: 1})
	if !ok {
		t.Fatalf("expected in-bounds voxel to be present")
	}
	if v.Material != Air {
		t.Fatalf("expected fresh chunk to be air, got %s", v.Material)
	}
}

func TestSetVoxelMarksBoundaryNeighboursDirty(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 2, Y: 1, Z: 1}, 3)
	east := ChunkCoord{X: 1}
	genBefore, _ := field.Generation(east)

	result, err := field.SetVoxel(WorldCoord{X: 3, Y: 1, Z: 1}, Rock)
	if err != nil {
		t.Fatalf("set voxel: %v", err)
	}
	want := []ChunkCoord{{X: 0}, {X: 1}}
	if !reflect.DeepEqual(result.Dirty, want) {
		t.Fatalf("dirty chunks mismatch: got %v want %v", result.Dirty, want)
	}
	if result.Before.Material != Air || result.After.Material != Rock {
		t.Fatalf("unexpected change: %+v", result.VoxelChange)
	}
	if genAfter, _ := field.Generation(east); genAfter <= genBefore {
		t.Fatalf("expected neighbour generation to advance, before %d after %d", genBefore, genAfter)
	}

	interior, err := field.SetVoxel(WorldCoord{X: 1, Y: 1, Z: 1}, Rock)
	if err != nil {
		t.Fatalf("set interior voxel: %v", err)
	}
	if !reflect.DeepEqual(interior.Dirty, []ChunkCoord{{X: 0}}) {
		t.Fatalf("interior edit should dirty only its chunk, got %v", interior.Dirty)
	}
}

func TestSetVoxelWithoutChangeIsClean(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 1, Y: 1, Z: 1}, 3)
	gen, _ := field.Generation(ChunkCoord{})

	result, err := field.SetVoxel(WorldCoord{X: 2, Y: 2, Z: 2}, Air)
	if err != nil {
		t.Fatalf("set voxel: %v", err)
	}
	if result.Changed() || len(result.Dirty) != 0 {
		t.Fatalf("expected a clean no-op, got %+v", result)
	}
	if after, _ := field.Generation(ChunkCoord{}); after != gen {
		t.Fatalf("generation moved on a no-op edit: %d -> %d", gen, after)
	}
}

func TestSetVoxelErrors(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 1, Y: 1, Z: 1}, 3)

	if _, err := field.SetVoxel(WorldCoord{X: 0, Y: 4, Z: 0}, Rock); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := field.SetVoxel(WorldCoord{}, Material(200)); !errors.Is(err, ErrInvalidMaterial) {
		t.Fatalf("expected ErrInvalidMaterial, got %v", err)
	}

	sparse := NewField(field.Layout())
	if _, err := sparse.SetVoxel(WorldCoord{}, Rock); !errors.Is(err, ErrChunkNotFound) {
		t.Fatalf("expected ErrChunkNotFound, got %v", err)
	}
}

func TestBreakAndPlaceRules(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 1, Y: 1, Z: 1}, 3)
	if _, err := field.SetVoxel(WorldCoord{X: 0, Y: 0, Z: 0}, Bedrock); err != nil {
		t.Fatalf("seed bedrock: %v", err)
	}
	if _, err := field.SetVoxel(WorldCoord{X: 1, Y: 0, Z: 0}, Rock); err != nil {
		t.Fatalf("seed rock: %v", err)
	}
	if _, err := field.SetVoxel(WorldCoord{X: 2, Y: 0, Z: 0}, Water); err != nil {
		t.Fatalf("seed water: %v", err)
	}

	if _, err := field.BreakVoxel(WorldCoord{X: 0, Y: 0, Z: 0}); !errors.Is(err, ErrProtectedVoxel) {
		t.Fatalf("expected bedrock to be protected, got %v", err)
	}
	broken, err := field.BreakVoxel(WorldCoord{X: 1, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("break rock: %v", err)
	}
	if broken.After.Material != Air {
		t.Fatalf("expected rock to become air, got %s", broken.After.Material)
	}
	noop, err := field.BreakVoxel(WorldCoord{X: 3, Y: 3, Z: 3})
	if err != nil || noop.Changed() {
		t.Fatalf("breaking air should be a no-op, got %+v err %v", noop, err)
	}

	if _, err := field.PlaceVoxel(WorldCoord{X: 0, Y: 0, Z: 0}, Sand); !errors.Is(err, ErrOccupied) {
		t.Fatalf("expected ErrOccupied, got %v", err)
	}
	if _, err := field.PlaceVoxel(WorldCoord{X: 2, Y: 0, Z: 0}, Sand); err != nil {
		t.Fatalf("placing into water should succeed: %v", err)
	}
	if _, err := field.PlaceVoxel(WorldCoord{X: 3, Y: 0, Z: 0}, Air); !errors.Is(err, ErrInvalidMaterial) {
		t.Fatalf("placing air should be rejected, got %v", err)
	}
}

func TestApplyEditsReportsNetChanges(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 2, Y: 1, Z: 1}, 3)

	summary, err := field.ApplyEdits([]Edit{
		{Pos: WorldCoord{X: 1, Y: 1, Z: 1}, Material: Clay},
		{Pos: WorldCoord{X: 1, Y: 1, Z: 1}, Material: Air},
		{Pos: WorldCoord{X: 4, Y: 1, Z: 1}, Material: Sand},
	})
	if err != nil {
		t.Fatalf("apply edits: %v", err)
	}
	changes := summary.Changes()
	if len(changes) != 1 || changes[0].Pos != (WorldCoord{X: 4, Y: 1, Z: 1}) {
		t.Fatalf("expected only the sand edit to survive, got %+v", changes)
	}
	want := []ChunkCoord{{X: 0}, {X: 1}}
	if got := summary.DirtyChunks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("dirty chunks mismatch: got %v want %v", got, want)
	}

	_, err = field.ApplyEdits([]Edit{
		{Pos: WorldCoord{X: 0, Y: 0, Z: 0}, Material: Rock},
		{Pos: WorldCoord{X: 0, Y: -1, Z: 0}, Material: Rock},
	})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected batch to stop at out-of-bounds edit, got %v", err)
	}
	if v, _ := field.Voxel(WorldCoord{}); v.Material != Rock {
		t.Fatalf("edits before the failure should stay applied")
	}
}

func TestRaycastHitsGroundFromAbove(t *testing.T) {
	field := newTestField(t, 4, config.ChunkExtent{X: 1, Y: 1, Z: 1}, 3)
	for x := 0; x < 4; x++ {
		for z := 0; z < 4; z++ {
			if _, err := field.SetVoxel(WorldCoord{X: x, Y: 0, Z: z}, TopSoil); err != nil {
				t.Fatalf("seed ground: %v", err)
			}
		}
	}

	hit, ok := field.Raycast(mgl32.Vec3{1.5, 3.5, 1.5}, mgl32.Vec3{0, -1, 0}, 10)
	if !ok {
		t.Fatalf("expected the ray to hit the ground")
	}
	if hit.Pos != (WorldCoord{X: 1, Y: 0, Z: 1}) {
		t.Fatalf("unexpected hit position %v", hit.Pos)
	}
	if hit.Face != Top {
		t.Fatalf("expected to enter through the top face, got %s", hit.Face)
	}
	if hit.Adjacent() != (WorldCoord{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("unexpected placement cell %v", hit.Adjacent())
	}

	if _, ok := field.Raycast(mgl32.Vec3{1.5, 3.5, 1.5}, mgl32.Vec3{0, 1, 0}, 10); ok {
		t.Fatalf("ray pointing at the sky should not hit")
	}
}

func TestFaceOppositeReversesOffset(t *testing.T) {
	for _, f := range Faces {
		o := f.Opposite()
		if o == f || o.Opposite() != f {
			t.Fatalf("%s: opposite %s is not an involution", f, o)
		}
		if o.Offset().Add(f.Offset()) != (WorldCoord{}) {
			t.Fatalf("%s: offsets %v and %v do not cancel", f, f.Offset(), o.Offset())
		}
	}
}

func TestEntryFaceOnDiagonalStep(t *testing.T) {
	tests := []struct {
		prev, cell WorldCoord
		dir        mgl32.Vec3
		want       Face
	}{
		{prev: WorldCoord{}, cell: WorldCoord{X: 1, Y: 1}, dir: mgl32.Vec3{1, 0.5, 0}, want: West},
		{prev: WorldCoord{}, cell: WorldCoord{X: 1, Y: -1}, dir: mgl32.Vec3{0.5, -1, 0}, want: Top},
		{prev: WorldCoord{}, cell: WorldCoord{X: -1, Z: 1}, dir: mgl32.Vec3{-0.2, 0, 1}, want: North},
		{prev: WorldCoord{Y: 1}, cell: WorldCoord{}, dir: mgl32.Vec3{0.3, -1, 0.3}, want: Top},
	}
	for _, tt := range tests {
		if got := entryFace(tt.prev, tt.cell, tt.dir); got != tt.want {
			t.Fatalf("entryFace(%v, %v, %v) = %s, want %s", tt.prev, tt.cell, tt.dir, got, tt.want)
		}
	}
}
