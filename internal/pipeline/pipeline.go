package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"voxelterrain/internal/grass"
	"voxelterrain/internal/meshing"
	"voxelterrain/internal/world"
)

// ChunkResult is the renderable output for one chunk. Grass is regenerated
// together with the mesh and never outlives it.
type ChunkResult struct {
	Coord      world.ChunkCoord `json:"coord"`
	Generation uint64           `json:"generation"`
	Mesh       *meshing.Mesh    `json:"mesh"`
	Grass      []grass.Instance `json:"grass"`
}

type Options struct {
	Workers   int
	VoxelSize float32
	Logger    *log.Logger
}

// Stats summarises the current results.
type Stats struct {
	Chunks    int `json:"chunks"`
	Vertices  int `json:"vertices"`
	Triangles int `json:"triangles"`
	Instances int `json:"instances"`
}

// Pipeline keeps chunk meshes and grass in step with the voxel field.
type Pipeline struct {
	field     *world.Field
	mesher    *meshing.Mesher
	instancer *grass.Instancer
	workers   int
	voxelSize float32
	logger    *log.Logger

	// held for writing while the field is edited, for reading during a
	// rebuild pass
	editMu sync.RWMutex
	// net voxel changes since the pipeline was created, guarded by editMu
	journal *world.EditSummary

	mu      sync.RWMutex
	results map[world.ChunkCoord]*ChunkResult
}

// New wires a pipeline. A nil instancer disables grass.
func New(field *world.Field, mesher *meshing.Mesher, instancer *grass.Instancer, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "pipeline ", log.LstdFlags)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	voxelSize := opts.VoxelSize
	if voxelSize <= 0 {
		voxelSize = 1
	}
	return &Pipeline{
		field:     field,
		mesher:    mesher,
		instancer: instancer,
		workers:   workers,
		voxelSize: voxelSize,
		logger:    logger,
		journal:   world.NewEditSummary(),
		results:   make(map[world.ChunkCoord]*ChunkResult),
	}
}

func (p *Pipeline) Field() *world.Field {
	return p.field
}

// Placement returns the transform that moves a chunk-local mesh into world
// space.
func (p *Pipeline) Placement(coord world.ChunkCoord) mgl32.Mat4 {
	origin := p.field.Layout().ChunkOrigin(coord)
	return mgl32.Translate3D(
		float32(origin.X)*p.voxelSize,
		float32(origin.Y)*p.voxelSize,
		float32(origin.Z)*p.voxelSize,
	)
}

// Result returns the latest output for a chunk.
func (p *Pipeline) Result(coord world.ChunkCoord) (*ChunkResult, bool) {
	p.mu.RLock()
	res, ok := p.results[coord]
	p.mu.RUnlock()
	return res, ok
}

// Dirty lists loaded chunks whose generation differs from the one their
// current result was built from, including chunks never built.
func (p *Pipeline) Dirty() []world.ChunkCoord {
	var out []world.ChunkCoord
	for _, coord := range p.field.ChunkCoords() {
		gen, ok := p.field.Generation(coord)
		if !ok {
			continue
		}
		res, built := p.Result(coord)
		if !built || res.Generation != gen {
			out = append(out, coord)
		}
	}
	return out
}

// RebuildAll remeshes every loaded chunk.
func (p *Pipeline) RebuildAll(ctx context.Context) error {
	return p.Rebuild(ctx, p.field.ChunkCoords())
}

// RebuildDirty remeshes the chunks reported by Dirty and returns them.
func (p *Pipeline) RebuildDirty(ctx context.Context) ([]world.ChunkCoord, error) {
	dirty := p.Dirty()
	if len(dirty) == 0 {
		return nil, nil
	}
	return dirty, p.Rebuild(ctx, dirty)
}

// Rebuild meshes and scatters the given chunks in parallel. A chunk that fails
// is logged and left without a result; the other chunks still complete. The
// returned error joins every chunk failure, or is the context error when the
// pass was cancelled.
func (p *Pipeline) Rebuild(ctx context.Context, coords []world.ChunkCoord) error {
	if len(coords) == 0 {
		return nil
	}

	p.editMu.RLock()
	defer p.editMu.RUnlock()

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	var (
		failMu   sync.Mutex
		failures []error
	)
	for _, coord := range coords {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := p.rebuildChunk(coord); err != nil {
				p.logger.Printf("remesh chunk %v: %v", coord, err)
				p.drop(coord)
				failMu.Lock()
				failures = append(failures, fmt.Errorf("chunk %v: %w", coord, err))
				failMu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

func (p *Pipeline) rebuildChunk(coord world.ChunkCoord) error {
	gen, ok := p.field.Generation(coord)
	if !ok {
		return fmt.Errorf("read generation: %w", meshing.ErrChunkMissing)
	}
	mesh, err := p.mesher.MeshChunk(p.field, coord)
	if err != nil {
		return err
	}

	var instances []grass.Instance
	if p.instancer != nil {
		instances, err = p.instancer.Scatter(mesh, p.Placement(coord), grass.ChunkKey(coord))
		if err != nil {
			return fmt.Errorf("scatter grass: %w", err)
		}
	}

	p.mu.Lock()
	p.results[coord] = &ChunkResult{
		Coord:      coord,
		Generation: gen,
		Mesh:       mesh,
		Grass:      instances,
	}
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) drop(coord world.ChunkCoord) {
	p.mu.Lock()
	delete(p.results, coord)
	p.mu.Unlock()
}

// SetVoxel edits the field and rebuilds every chunk the edit dirtied.
func (p *Pipeline) SetVoxel(ctx context.Context, pos world.WorldCoord, m world.Material) (world.EditResult, error) {
	return p.apply(ctx, func() (world.EditResult, error) {
		return p.field.SetVoxel(pos, m)
	})
}

func (p *Pipeline) BreakVoxel(ctx context.Context, pos world.WorldCoord) (world.EditResult, error) {
	return p.apply(ctx, func() (world.EditResult, error) {
		return p.field.BreakVoxel(pos)
	})
}

func (p *Pipeline) PlaceVoxel(ctx context.Context, pos world.WorldCoord, m world.Material) (world.EditResult, error) {
	return p.apply(ctx, func() (world.EditResult, error) {
		return p.field.PlaceVoxel(pos, m)
	})
}

// ApplyEdits applies a batch and rebuilds the union of dirty chunks once.
func (p *Pipeline) ApplyEdits(ctx context.Context, edits []world.Edit) (*world.EditSummary, error) {
	p.editMu.Lock()
	summary, err := p.field.ApplyEdits(edits)
	p.journal.Merge(summary)
	p.editMu.Unlock()

	if rebuildErr := p.Rebuild(ctx, summary.DirtyChunks()); rebuildErr != nil {
		err = errors.Join(err, rebuildErr)
	}
	return summary, err
}

func (p *Pipeline) apply(ctx context.Context, edit func() (world.EditResult, error)) (world.EditResult, error) {
	p.editMu.Lock()
	result, err := edit()
	if err == nil {
		applied := world.NewEditSummary()
		applied.Add(result)
		p.journal.Merge(applied)
	}
	p.editMu.Unlock()
	if err != nil {
		return result, err
	}
	if err := p.Rebuild(ctx, result.Dirty); err != nil {
		return result, fmt.Errorf("rebuild after edit at %v: %w", result.Pos, err)
	}
	return result, nil
}

// ApplyBatches applies each batch in order, folds their summaries into one and
// rebuilds the union of dirty chunks once. A failing batch stops the run; the
// batches before it stay applied and are reported in the returned summary.
func (p *Pipeline) ApplyBatches(ctx context.Context, batches [][]world.Edit) (*world.EditSummary, error) {
	total := world.NewEditSummary()
	var err error

	p.editMu.Lock()
	for i, batch := range batches {
		summary, batchErr := p.field.ApplyEdits(batch)
		total.Merge(summary)
		if batchErr != nil {
			err = fmt.Errorf("batch %d: %w", i, batchErr)
			break
		}
	}
	p.journal.Merge(total)
	p.editMu.Unlock()

	if rebuildErr := p.Rebuild(ctx, total.DirtyChunks()); rebuildErr != nil {
		err = errors.Join(err, rebuildErr)
	}
	return total, err
}

// Journal returns the net voxel changes made through the pipeline since it
// was created, in position order. Edits that were later undone drop out.
func (p *Pipeline) Journal() []world.VoxelChange {
	p.editMu.RLock()
	defer p.editMu.RUnlock()
	return p.journal.Changes()
}

// Stats totals the current results.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var s Stats
	for _, res := range p.results {
		s.Chunks++
		if res.Mesh != nil {
			s.Vertices += res.Mesh.VertexCount()
			s.Triangles += res.Mesh.TriangleCount()
		}
		s.Instances += len(res.Grass)
	}
	return s
}

// Results returns every current result in coordinate order.
func (p *Pipeline) Results() []*ChunkResult {
	coords := p.field.ChunkCoords()
	out := make([]*ChunkResult, 0, len(coords))
	for _, coord := range coords {
		if res, ok := p.Result(coord); ok {
			out = append(out, res)
		}
	}
	return out
}
