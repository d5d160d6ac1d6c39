package export

import (
	"fmt"
	"log"

	"voxelterrain/internal/pipeline"
)

// Summary counts the files written by WriteAll.
type Summary struct {
	Meshes   int
	Previews int
	Skipped  int
}

// WriteAll exports the current mesh and a preview for every non-empty chunk
// in p.
func WriteAll(dir string, p *pipeline.Pipeline) (Summary, error) {
	var summary Summary
	field := p.Field()
	for _, res := range p.Results() {
		if res.Mesh == nil || res.Mesh.IsEmpty() {
			summary.Skipped++
			continue
		}
		if _, err := WriteChunkSTL(dir, res.Mesh, p.Placement(res.Coord)); err != nil {
			return summary, fmt.Errorf("export chunk %v: %w", res.Coord, err)
		}
		summary.Meshes++

		chunk, ok := field.Chunk(res.Coord)
		if !ok {
			continue
		}
		if _, err := WriteChunkPreview(dir, chunk); err != nil {
			return summary, fmt.Errorf("preview chunk %v: %w", res.Coord, err)
		}
		summary.Previews++
	}
	log.Printf("exported %d chunk meshes and %d previews to %s (%d empty chunks skipped)", summary.Meshes, summary.Previews, dir, summary.Skipped)
	return summary, nil
}
