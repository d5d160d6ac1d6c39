package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"voxelterrain/internal/config"
	"voxelterrain/internal/grass"
	"voxelterrain/internal/meshing"
	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

func newTestPipeline(t *testing.T, logs *bytes.Buffer) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.World = config.WorldConfig{
		ChunkSize: 4,
		Chunks:    config.ChunkExtent{X: 2, Y: 2, Z: 2},
		MaxHeight: 7,
	}

	field := world.NewField(world.NewLayout(cfg.World))
	field.AllocateAll()
	for x := 0; x < 8; x++ {
		for z := 0; z < 8; z++ {
			for y := 0; y <= 2; y++ {
				if _, err := field.SetVoxel(world.WorldCoord{X: x, Y: y, Z: z}, world.SubSoil); err != nil {
					t.Fatalf("seed ground: %v", err)
				}
			}
			if _, err := field.SetVoxel(world.WorldCoord{X: x, Y: 3, Z: z}, world.TopSoil); err != nil {
				t.Fatalf("seed topsoil: %v", err)
			}
		}
	}

	var out *log.Logger
	if logs != nil {
		out = log.New(logs, "", 0)
	}
	return New(field,
		meshing.NewMesher(cfg.Meshing),
		grass.NewInstancer(grass.SettingsFromConfig(cfg.Grass)),
		Options{Workers: 2, VoxelSize: 1, Logger: out},
	)
}

func TestRebuildAllBuildsEveryChunk(t *testing.T) {
	p := newTestPipeline(t, nil)
	if err := p.RebuildAll(context.Background()); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}

	if dirty := p.Dirty(); len(dirty) != 0 {
		t.Fatalf("expected no dirty chunks after a full rebuild, got %v", dirty)
	}
	stats := p.Stats()
	if stats.Chunks != 8 {
		t.Fatalf("expected 8 chunk results, got %d", stats.Chunks)
	}
	if stats.Triangles == 0 || stats.Instances == 0 {
		t.Fatalf("expected geometry and grass, got %+v", stats)
	}

	ground, ok := p.Result(world.ChunkCoord{X: 1, Y: 0, Z: 1})
	if !ok {
		t.Fatalf("missing result for ground chunk")
	}
	if len(ground.Grass) == 0 {
		t.Fatalf("expected grass on the ground chunk")
	}
	for _, inst := range ground.Grass {
		if inst.Position.Y() < 3.999 || inst.Position.Y() > 4.001 {
			t.Fatalf("grass should sit on the surface at y=4, got %v", inst.Position)
		}
		if inst.Position.X() < 4 || inst.Position.X() > 8 || inst.Position.Z() < 4 || inst.Position.Z() > 8 {
			t.Fatalf("grass should be placed in world space inside chunk (1,0,1), got %v", inst.Position)
		}
	}

	sky, ok := p.Result(world.ChunkCoord{X: 0, Y: 1, Z: 0})
	if !ok {
		t.Fatalf("air chunks still get a result")
	}
	if !sky.Mesh.IsEmpty() || len(sky.Grass) != 0 {
		t.Fatalf("air chunk should have an empty mesh and no grass")
	}
}

func TestEditRebuildsBoundaryNeighbours(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()
	if err := p.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}
	east := world.ChunkCoord{X: 1}
	before, _ := p.Result(east)
	beforePrint := before.Mesh.Fingerprint()

	result, err := p.BreakVoxel(ctx, world.WorldCoord{X: 3, Y: 2, Z: 1})
	if err != nil {
		t.Fatalf("break voxel: %v", err)
	}
	want := []world.ChunkCoord{{X: 0}, {X: 1}}
	if !reflect.DeepEqual(result.Dirty, want) {
		t.Fatalf("dirty mismatch: got %v want %v", result.Dirty, want)
	}

	after, _ := p.Result(east)
	if after.Generation == before.Generation {
		t.Fatalf("neighbour result was not rebuilt")
	}
	if after.Mesh.Fingerprint() == beforePrint {
		t.Fatalf("neighbour mesh should expose the new west face")
	}
	if dirty := p.Dirty(); len(dirty) != 0 {
		t.Fatalf("expected edit to leave nothing dirty, got %v", dirty)
	}

	if _, err := p.BreakVoxel(ctx, world.WorldCoord{X: 5, Y: 0, Z: 5}); err != nil {
		t.Fatalf("break subsoil: %v", err)
	}
	if _, err := p.PlaceVoxel(ctx, world.WorldCoord{X: 5, Y: 0, Z: 5}, world.Clay); err != nil {
		t.Fatalf("place clay: %v", err)
	}
}

func TestRebuildDirtyTracksDirectFieldEdits(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()
	if err := p.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}
	if rebuilt, err := p.RebuildDirty(ctx); err != nil || len(rebuilt) != 0 {
		t.Fatalf("expected nothing to rebuild, got %v err %v", rebuilt, err)
	}

	if _, err := p.Field().SetVoxel(world.WorldCoord{X: 1, Y: 5, Z: 1}, world.Rock); err != nil {
		t.Fatalf("direct edit: %v", err)
	}
	rebuilt, err := p.RebuildDirty(ctx)
	if err != nil {
		t.Fatalf("rebuild dirty: %v", err)
	}
	if want := []world.ChunkCoord{{X: 0, Y: 1, Z: 0}}; !reflect.DeepEqual(rebuilt, want) {
		t.Fatalf("rebuilt mismatch: got %v want %v", rebuilt, want)
	}
}

func TestApplyEditsRebuildsUnion(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()
	if err := p.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}
	summary, err := p.ApplyEdits(ctx, []world.Edit{
		{Pos: world.WorldCoord{X: 0, Y: 4, Z: 0}, Material: world.Sand},
		{Pos: world.WorldCoord{X: 7, Y: 4, Z: 7}, Material: world.Sand},
	})
	if err != nil {
		t.Fatalf("apply edits: %v", err)
	}
	if len(summary.Changes()) != 2 {
		t.Fatalf("expected two changes, got %d", len(summary.Changes()))
	}
	if dirty := p.Dirty(); len(dirty) != 0 {
		t.Fatalf("expected batch rebuild to clear dirty chunks, got %v", dirty)
	}
}

func TestApplyBatchesFoldsNetChanges(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()
	if err := p.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}
	east := world.ChunkCoord{X: 1}
	before, _ := p.Result(east)

	undone := world.WorldCoord{X: 1, Y: 5, Z: 1}
	kept := world.WorldCoord{X: 5, Y: 5, Z: 1}
	summary, err := p.ApplyBatches(ctx, [][]world.Edit{
		{{Pos: undone, Material: world.Rock}, {Pos: kept, Material: world.Sand}},
		{{Pos: undone, Material: world.Air}},
	})
	if err != nil {
		t.Fatalf("apply batches: %v", err)
	}

	changes := summary.Changes()
	if len(changes) != 1 || changes[0].Pos != kept {
		t.Fatalf("expected only the sand voxel to survive, got %+v", changes)
	}
	if changes[0].Before.Material != world.Air || changes[0].After.Material != world.Sand {
		t.Fatalf("unexpected net change %+v", changes[0])
	}
	if want := []world.ChunkCoord{{X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}}; !reflect.DeepEqual(summary.DirtyChunks(), want) {
		t.Fatalf("dirty mismatch: got %v want %v", summary.DirtyChunks(), want)
	}
	if dirty := p.Dirty(); len(dirty) != 0 {
		t.Fatalf("expected batches to leave nothing dirty, got %v", dirty)
	}
	if after, _ := p.Result(east); after.Generation != before.Generation {
		t.Fatalf("ground chunk (1,0,0) was not edited and should keep its result")
	}
}

func TestApplyBatchesStopsAtFailingBatch(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()
	if err := p.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}
	summary, err := p.ApplyBatches(ctx, [][]world.Edit{
		{{Pos: world.WorldCoord{X: 2, Y: 5, Z: 2}, Material: world.Clay}},
		{{Pos: world.WorldCoord{X: 2, Y: 9, Z: 2}, Material: world.Clay}},
		{{Pos: world.WorldCoord{X: 3, Y: 5, Z: 2}, Material: world.Clay}},
	})
	if !errors.Is(err, world.ErrOutOfBounds) || !strings.Contains(err.Error(), "batch 1") {
		t.Fatalf("expected batch 1 to fail out of bounds, got %v", err)
	}
	if len(summary.Changes()) != 1 {
		t.Fatalf("expected the first batch to stay applied, got %+v", summary.Changes())
	}
	if v, _ := p.Field().Voxel(world.WorldCoord{X: 3, Y: 5, Z: 2}); v.Material != world.Air {
		t.Fatalf("batches after the failure must not run")
	}
	if dirty := p.Dirty(); len(dirty) != 0 {
		t.Fatalf("applied batches should still be rebuilt, got %v", dirty)
	}
}

func TestJournalTracksNetEdits(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx := context.Background()
	if err := p.RebuildAll(ctx); err != nil {
		t.Fatalf("rebuild all: %v", err)
	}
	dug := world.WorldCoord{X: 5, Y: 3, Z: 5}
	if _, err := p.BreakVoxel(ctx, dug); err != nil {
		t.Fatalf("break: %v", err)
	}
	if _, err := p.PlaceVoxel(ctx, world.WorldCoord{X: 6, Y: 4, Z: 6}, world.Rock); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := p.ApplyEdits(ctx, []world.Edit{{Pos: world.WorldCoord{X: 6, Y: 4, Z: 6}, Material: world.Air}}); err != nil {
		t.Fatalf("undo place: %v", err)
	}
	if _, err := p.BreakVoxel(ctx, world.WorldCoord{X: 5, Y: 9, Z: 5}); !errors.Is(err, world.ErrOutOfBounds) {
		t.Fatalf("expected a rejected edit, got %v", err)
	}

	journal := p.Journal()
	if len(journal) != 1 || journal[0].Pos != dug {
		t.Fatalf("expected only the dug voxel in the journal, got %+v", journal)
	}
	if journal[0].Before.Material != world.TopSoil || journal[0].After.Material != world.Air {
		t.Fatalf("unexpected journal entry %+v", journal[0])
	}
}

func TestRebuildLogsFailedChunkAndContinues(t *testing.T) {
	var logs bytes.Buffer
	p := newTestPipeline(t, &logs)

	missing := world.ChunkCoord{X: 9, Y: 0, Z: 9}
	err := p.Rebuild(context.Background(), []world.ChunkCoord{{}, missing})
	if !errors.Is(err, meshing.ErrChunkMissing) {
		t.Fatalf("expected ErrChunkMissing, got %v", err)
	}
	if !strings.Contains(logs.String(), "remesh chunk (9,0,9)") {
		t.Fatalf("expected the failing chunk coordinate in logs, got %q", logs.String())
	}
	if _, ok := p.Result(world.ChunkCoord{}); !ok {
		t.Fatalf("healthy chunk should still be rebuilt")
	}
	if _, ok := p.Result(missing); ok {
		t.Fatalf("failed chunk must not have a result")
	}
}

func TestRebuildHonoursCancellation(t *testing.T) {
	p := newTestPipeline(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.RebuildAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPipelineOverGeneratedTerrain(t *testing.T) {
	cfg := config.Default()
	cfg.World = config.WorldConfig{
		ChunkSize: 8,
		Chunks:    config.ChunkExtent{X: 2, Y: 4, Z: 2},
		MaxHeight: 31,
	}
	field := world.NewField(world.NewLayout(cfg.World))
	if err := terrain.NewGenerator(cfg.Terrain).Populate(context.Background(), field); err != nil {
		t.Fatalf("populate: %v", err)
	}
	p := New(field, meshing.NewMesher(cfg.Meshing), grass.NewInstancer(grass.SettingsFromConfig(cfg.Grass)), Options{Workers: 3})
	if err := p.RebuildAll(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	for _, res := range p.Results() {
		if len(res.Grass) > cfg.Grass.MaxCount {
			t.Fatalf("chunk %v exceeds grass cap: %d", res.Coord, len(res.Grass))
		}
	}
	if p.Stats().Triangles == 0 {
		t.Fatalf("expected generated terrain to produce geometry")
	}
}
