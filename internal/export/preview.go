package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"voxelterrain/internal/world"
)

const (
	previewTileWidth    = 32
	previewTileHeight   = 16
	previewBlockHeight  = 16
	previewAmbientLight = 0.2
)

var previewBackground = color.NRGBA{R: 10, G: 10, B: 18, A: 255}

type voxelPreview struct {
	local    world.LocalCoord
	material world.Material
	screenX  int
	screenY  int
}

// PreviewFileName names the preview image for a chunk.
func PreviewFileName(coord world.ChunkCoord) string {
	return fmt.Sprintf("chunk_%d_%d_%d.png", coord.X, coord.Y, coord.Z)
}

// WriteChunkPreview renders an isometric PNG of the solid voxels in chunk.
func WriteChunkPreview(dir string, chunk *world.Chunk) (string, error) {
	if chunk == nil {
		return "", fmt.Errorf("chunk is nil")
	}
	img := RenderChunkPreview(chunk)
	if err := ensureDir(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, PreviewFileName(chunk.Coord))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

// RenderChunkPreview draws chunk back to front so nearer cubes cover farther
// ones.
func RenderChunkPreview(chunk *world.Chunk) *image.NRGBA {
	size := chunk.Size()
	width := size*previewTileWidth + previewTileWidth
	height := size*previewTileHeight + size*previewBlockHeight + previewTileHeight
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{previewBackground}, image.Point{}, draw.Src)

	voxels := collectPreviewVoxels(chunk)
	sort.Slice(voxels, func(i, j int) bool {
		a, b := voxels[i], voxels[j]
		if a.screenY != b.screenY {
			return a.screenY < b.screenY
		}
		if a.screenX != b.screenX {
			return a.screenX < b.screenX
		}
		if a.local.Y != b.local.Y {
			return a.local.Y < b.local.Y
		}
		if a.local.Z != b.local.Z {
			return a.local.Z > b.local.Z
		}
		return a.local.X < b.local.X
	})

	offsetX := size * previewTileWidth / 2
	offsetY := size * previewBlockHeight
	for _, v := range voxels {
		renderVoxelPreview(img, offsetX+v.screenX, offsetY+v.screenY, v.material)
	}
	return img
}

func collectPreviewVoxels(chunk *world.Chunk) []voxelPreview {
	size := chunk.Size()
	voxels := make([]voxelPreview, 0, size*size)
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				local := world.LocalCoord{X: x, Y: y, Z: z}
				v, ok := chunk.Get(local)
				if !ok || !v.IsSolid() {
					continue
				}
				voxels = append(voxels, voxelPreview{
					local:    local,
					material: v.Material,
					screenX:  (x - z) * previewTileWidth / 2,
					screenY:  (x+z)*previewTileHeight/2 - y*previewBlockHeight,
				})
			}
		}
	}
	return voxels
}

func renderVoxelPreview(img *image.NRGBA, baseX, baseY int, m world.Material) {
	base := materialColor(m)
	topColor := applyLighting(base, previewAmbientLight+0.4)
	leftColor := applyLighting(base, previewAmbientLight+0.25)
	rightColor := applyLighting(base, previewAmbientLight+0.15)

	top := []image.Point{
		{X: baseX, Y: baseY - previewBlockHeight},
		{X: baseX + previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX - previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
	}
	left := []image.Point{
		{X: baseX - previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX, Y: baseY + previewTileHeight},
		{X: baseX - previewTileWidth/2, Y: baseY + previewTileHeight/2},
	}
	right := []image.Point{
		{X: baseX + previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX, Y: baseY + previewTileHeight},
		{X: baseX + previewTileWidth/2, Y: baseY + previewTileHeight/2},
	}

	fillPolygon(img, left, leftColor)
	fillPolygon(img, right, rightColor)
	fillPolygon(img, top, topColor)
}

func materialColor(m world.Material) color.NRGBA {
	if col, ok := parseHexColor(m.Info().Color); ok {
		return col
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	rgb, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 255}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = math.Max(0, math.Min(1, factor))
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}

// fillPolygon is a scanline fill of a convex polygon clipped to img.
func fillPolygon(img *image.NRGBA, pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	bounds := img.Bounds()
	minY = max(minY, bounds.Min.Y)
	maxY = min(maxY, bounds.Max.Y-1)

	xs := make([]int, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i := range pts {
			j := (i + 1) % len(pts)
			x1, y1 := pts[i].X, pts[i].Y
			x2, y2 := pts[j].X, pts[j].Y
			if y1 == y2 || y < min(y1, y2) || y >= max(y1, y2) {
				continue
			}
			xs = append(xs, x1+(y-y1)*(x2-x1)/(y2-y1))
		}
		if len(xs) < 2 {
			continue
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			xStart := max(xs[i], bounds.Min.X)
			xEnd := min(xs[i+1], bounds.Max.X-1)
			for x := xStart; x <= xEnd; x++ {
				img.SetNRGBA(x, y, col)
			}
		}
	}
}
