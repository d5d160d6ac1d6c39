package terrain

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"voxelterrain/internal/config"
	"voxelterrain/internal/world"
)

type biome uint8

const (
	biomePlains biome = iota
	biomeSandy
	biomeRocky
	biomeClay
)

// Seed offsets keep the height, biome and detail fields decorrelated.
const (
	biomeSeedOffset  = 7919
	detailSeedOffset = 104729
)

// Generator fills chunks with repeatable layered terrain driven by hashed
// value noise.
type Generator struct {
	cfg config.TerrainConfig
}

func NewGenerator(cfg config.TerrainConfig) *Generator {
	return &Generator{cfg: cfg}
}

// Height returns the surface voxel y of the column at (x, z), clamped to
// [1, maxHeight].
func (g *Generator) Height(x, z, maxHeight int) int {
	noise := fractalNoise(float64(x), float64(z), g.cfg.Seed,
		g.cfg.Frequency, g.cfg.Octaves, g.cfg.Persistence, g.cfg.Lacunarity)
	height := g.cfg.BaseHeight + int(noise*g.cfg.Amplitude)
	if maxHeight < 1 {
		return maxHeight
	}
	return clampInt(height, 1, maxHeight)
}

func (g *Generator) biomeAt(x, z int) biome {
	b := (fractalNoise(float64(x), float64(z), g.cfg.Seed+biomeSeedOffset,
		g.cfg.Frequency*1.25, 2, 0.5, 2) + 1) * 0.5
	detail := (fractalNoise(float64(x), float64(z), g.cfg.Seed+detailSeedOffset,
		g.cfg.Frequency*4, 2, 0.5, 2) + 1) * 0.5

	switch {
	case b < 0.25:
		return biomeSandy
	case b > 0.75 && detail > 0.5:
		return biomeRocky
	case b > 0.4 && b < 0.5 && detail > 0.6:
		return biomeClay
	default:
		return biomePlains
	}
}

// MaterialAt decides the material of a single voxel given its column's
// surface height.
func (g *Generator) MaterialAt(x, y, z, height int) world.Material {
	if y > height {
		if y <= g.cfg.SeaLevel {
			return world.Water
		}
		return world.Air
	}
	if y == 0 {
		return world.Bedrock
	}
	if y <= 3 {
		if unit01(x, z+y*1000, int(g.cfg.Seed)) > 0.3 {
			return world.Bedrock
		}
		return world.Rock
	}

	depth := height - y
	kind := g.biomeAt(x, z)
	if kind == biomePlains && height <= g.cfg.SeaLevel+1 {
		kind = biomeSandy
	}

	switch kind {
	case biomeSandy:
		switch {
		case depth <= 4:
			return world.Sand
		case depth <= 8:
			return world.SubSoil
		default:
			return world.Rock
		}
	case biomeRocky:
		switch {
		case depth <= 1:
			return world.Rock
		case depth <= 3:
			return world.SubSoil
		default:
			return world.Rock
		}
	case biomeClay:
		switch {
		case depth <= 2:
			return world.TopSoil
		case depth <= 6:
			return world.Clay
		case depth <= 10:
			return world.SubSoil
		default:
			return world.Rock
		}
	default:
		switch {
		case depth == 0:
			return world.TopSoil
		case depth <= 4:
			return world.SubSoil
		default:
			return world.Rock
		}
	}
}

// FillChunk overwrites one chunk of the field.
func (g *Generator) FillChunk(layout world.Layout, chunk *world.Chunk) {
	size := layout.ChunkSize
	origin := layout.ChunkOrigin(chunk.Coord)

	heights := make([]int, size*size)
	for z := 0; z < size; z++ {
		for x := 0; x < size; x++ {
			heights[x+z*size] = g.Height(origin.X+x, origin.Z+z, layout.MaxHeight)
		}
	}

	chunk.Fill(func(local world.LocalCoord) world.Voxel {
		pos := layout.ToWorld(chunk.Coord, local)
		if pos.Y > layout.MaxHeight {
			return world.Voxel{Material: world.Air}
		}
		height := heights[local.X+local.Z*size]
		return world.Voxel{Material: g.MaterialAt(pos.X, pos.Y, pos.Z, height)}
	})
}

// Populate allocates and fills every chunk inside the field's layout using a
// bounded worker pool.
func (g *Generator) Populate(ctx context.Context, field *world.Field) error {
	layout := field.Layout()
	coords := layout.ChunkCoords()
	total := len(coords)
	if total == 0 {
		log.Printf("terrain generation progress: 100%%")
		return nil
	}

	log.Printf("terrain generation progress: 0%%")

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(g.workerCount(total))

	var (
		mu             sync.Mutex
		generated      int
		nextLogPercent = 10
	)

	for _, coord := range coords {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := field.EnsureChunk(coord)
			if err != nil {
				return fmt.Errorf("allocate chunk %v: %w", coord, err)
			}
			g.FillChunk(layout, chunk)

			mu.Lock()
			generated++
			progress := generated * 100 / total
			if progress >= nextLogPercent {
				log.Printf("terrain generation progress: %d%%", progress)
				nextLogPercent = (progress/10 + 1) * 10
			}
			mu.Unlock()
			return nil
		})
	}

	return group.Wait()
}

func (g *Generator) workerCount(total int) int {
	if total <= 0 {
		return 1
	}
	workers := g.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > total {
		workers = total
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}
