// Package httpapi exposes chunk meshes, grass and voxel edits over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/config"
	"voxelterrain/internal/grass"
	"voxelterrain/internal/pipeline"
	"voxelterrain/internal/world"
)

type Handler struct {
	Pipeline *pipeline.Pipeline
	Logger   *log.Logger
}

// NewServer builds a hertz server for cfg. Routes are added with
// RegisterRoutes.
func NewServer(cfg config.HTTPConfig) *server.Hertz {
	return server.Default(
		server.WithHostPorts(cfg.Listen),
		server.WithReadTimeout(cfg.ReadTimeout.Duration()),
		server.WithWriteTimeout(cfg.WriteTimeout.Duration()),
	)
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.GET("/healthz", h.health)
	s.GET("/stats", h.stats)

	chunks := s.Group("/chunks/:x/:y/:z")
	chunks.GET("/mesh", h.chunkMesh)
	chunks.GET("/grass", h.chunkGrass)

	s.GET("/voxels", h.voxel)
	s.POST("/voxels", h.edit)
	s.POST("/voxels/batch", h.editBatch)
	s.GET("/edits", h.journal)
	s.POST("/raycast", h.raycast)
}

// defaultReach bounds a raycast that names no maxDistance.
const defaultReach = 8

// voxelResponse leaves the voxel fields out when the position is outside the
// world or its chunk is not loaded.
type voxelResponse struct {
	Found    bool            `json:"found"`
	Material *world.Material `json:"material,omitempty"`
	Hardness *float32        `json:"hardness,omitempty"`
	Tool     *world.Tool     `json:"tool,omitempty"`
}

type editRequest struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Z        int            `json:"z"`
	Material world.Material `json:"material"`
	Action   string         `json:"action,omitempty"`
}

type editResponse struct {
	Changed bool               `json:"changed"`
	Before  world.Material     `json:"before"`
	After   world.Material     `json:"after"`
	Dirty   []world.ChunkCoord `json:"dirty"`
}

type batchRequest struct {
	Batches [][]world.Edit `json:"batches"`
}

type batchResponse struct {
	Changes []world.VoxelChange `json:"changes"`
	Dirty   []world.ChunkCoord  `json:"dirty"`
}

type raycastRequest struct {
	Origin      [3]float32     `json:"origin"`
	Direction   [3]float32     `json:"direction"`
	MaxDistance float32        `json:"maxDistance,omitempty"`
	Action      string         `json:"action,omitempty"`
	Material    world.Material `json:"material"`
}

type raycastResponse struct {
	Hit    bool              `json:"hit"`
	Target *world.RaycastHit `json:"target,omitempty"`
	Edit   *editResponse     `json:"edit,omitempty"`
}

type grassResponse struct {
	Chunk      world.ChunkCoord `json:"chunk"`
	Generation uint64           `json:"generation"`
	Instances  []grass.Instance `json:"instances"`
}

func (h Handler) health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) stats(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.Pipeline.Stats())
}

func (h Handler) chunkMesh(c context.Context, ctx *app.RequestContext) {
	res, ok := h.chunkResult(ctx)
	if !ok {
		return
	}
	ctx.JSON(consts.StatusOK, res.Mesh)
}

func (h Handler) chunkGrass(c context.Context, ctx *app.RequestContext) {
	res, ok := h.chunkResult(ctx)
	if !ok {
		return
	}
	instances := res.Grass
	if instances == nil {
		instances = []grass.Instance{}
	}
	ctx.JSON(consts.StatusOK, grassResponse{
		Chunk:      res.Coord,
		Generation: res.Generation,
		Instances:  instances,
	})
}

func (h Handler) chunkResult(ctx *app.RequestContext) (*pipeline.ChunkResult, bool) {
	coord, err := parseChunkCoord(ctx)
	if err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_chunk", err.Error())
		return nil, false
	}
	res, ok := h.Pipeline.Result(coord)
	if !ok {
		writeErrorBody(ctx, consts.StatusNotFound, "chunk_not_found", fmt.Sprintf("no mesh for chunk %v", coord))
		return nil, false
	}
	return res, true
}

func (h Handler) voxel(c context.Context, ctx *app.RequestContext) {
	pos, err := parseWorldCoord(ctx)
	if err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_position", err.Error())
		return
	}
	v, found := h.Pipeline.Field().Voxel(pos)
	if !found {
		ctx.JSON(consts.StatusOK, voxelResponse{})
		return
	}
	info := v.Material.Info()
	ctx.JSON(consts.StatusOK, voxelResponse{
		Found:    true,
		Material: &v.Material,
		Hardness: &info.Hardness,
		Tool:     &info.Tool,
	})
}

func (h Handler) edit(c context.Context, ctx *app.RequestContext) {
	var body editRequest
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	pos := world.WorldCoord{X: body.X, Y: body.Y, Z: body.Z}

	var (
		result world.EditResult
		err    error
	)
	switch strings.ToLower(body.Action) {
	case "", "set":
		result, err = h.Pipeline.SetVoxel(c, pos, body.Material)
	case "break":
		result, err = h.Pipeline.BreakVoxel(c, pos)
	case "place":
		result, err = h.Pipeline.PlaceVoxel(c, pos, body.Material)
	default:
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_action", fmt.Sprintf("unknown action %q", body.Action))
		return
	}
	if err != nil {
		h.writeEditError(ctx, pos, err)
		return
	}

	ctx.JSON(consts.StatusOK, newEditResponse(result))
}

func newEditResponse(result world.EditResult) editResponse {
	dirty := result.Dirty
	if dirty == nil {
		dirty = []world.ChunkCoord{}
	}
	return editResponse{
		Changed: result.Changed(),
		Before:  result.Before.Material,
		After:   result.After.Material,
		Dirty:   dirty,
	}
}

func (h Handler) editBatch(c context.Context, ctx *app.RequestContext) {
	var body batchRequest
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	summary, err := h.Pipeline.ApplyBatches(c, body.Batches)
	if err != nil {
		h.writeEditError(ctx, world.WorldCoord{}, err)
		return
	}
	changes := summary.Changes()
	if changes == nil {
		changes = []world.VoxelChange{}
	}
	dirty := summary.DirtyChunks()
	if dirty == nil {
		dirty = []world.ChunkCoord{}
	}
	ctx.JSON(consts.StatusOK, batchResponse{Changes: changes, Dirty: dirty})
}

func (h Handler) journal(c context.Context, ctx *app.RequestContext) {
	changes := h.Pipeline.Journal()
	if changes == nil {
		changes = []world.VoxelChange{}
	}
	ctx.JSON(consts.StatusOK, map[string]any{"changes": changes})
}

// raycast finds the first solid voxel along a ray and optionally breaks it or
// places a voxel against the face the ray entered through.
func (h Handler) raycast(c context.Context, ctx *app.RequestContext) {
	var body raycastRequest
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	dir := mgl32.Vec3(body.Direction)
	if dir.Len() == 0 || body.MaxDistance < 0 {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_ray", "direction must be non-zero and maxDistance non-negative")
		return
	}
	reach := body.MaxDistance
	if reach == 0 {
		reach = defaultReach
	}
	action := strings.ToLower(body.Action)
	if action != "" && action != "break" && action != "place" {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_action", fmt.Sprintf("unknown action %q", body.Action))
		return
	}

	hit, ok := h.Pipeline.Field().Raycast(mgl32.Vec3(body.Origin), dir, reach)
	if !ok {
		ctx.JSON(consts.StatusOK, raycastResponse{})
		return
	}

	var (
		result world.EditResult
		pos    world.WorldCoord
		err    error
	)
	switch action {
	case "":
		ctx.JSON(consts.StatusOK, raycastResponse{Hit: true, Target: &hit})
		return
	case "break":
		pos = hit.Pos
		result, err = h.Pipeline.BreakVoxel(c, pos)
	case "place":
		pos = hit.Adjacent()
		result, err = h.Pipeline.PlaceVoxel(c, pos, body.Material)
	}
	if err != nil {
		h.writeEditError(ctx, pos, err)
		return
	}
	edit := newEditResponse(result)
	ctx.JSON(consts.StatusOK, raycastResponse{Hit: true, Target: &hit, Edit: &edit})
}

func (h Handler) writeEditError(ctx *app.RequestContext, pos world.WorldCoord, err error) {
	switch {
	case errors.Is(err, world.ErrInvalidMaterial):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_material", err.Error())
	case errors.Is(err, world.ErrOutOfBounds):
		writeErrorBody(ctx, consts.StatusBadRequest, "out_of_bounds", err.Error())
	case errors.Is(err, world.ErrChunkNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "chunk_not_found", err.Error())
	case errors.Is(err, world.ErrProtectedVoxel):
		writeErrorBody(ctx, consts.StatusConflict, "protected_voxel", err.Error())
	case errors.Is(err, world.ErrOccupied):
		writeErrorBody(ctx, consts.StatusConflict, "occupied", err.Error())
	default:
		h.logger().Printf("edit at %v: %v", pos, err)
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (h Handler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.New(os.Stderr, "httpapi ", log.LstdFlags)
}

func parseChunkCoord(ctx *app.RequestContext) (world.ChunkCoord, error) {
	x, y, z, err := parseTriple(ctx.Param)
	if err != nil {
		return world.ChunkCoord{}, err
	}
	return world.ChunkCoord{X: x, Y: y, Z: z}, nil
}

func parseWorldCoord(ctx *app.RequestContext) (world.WorldCoord, error) {
	x, y, z, err := parseTriple(func(key string) string { return string(ctx.Query(key)) })
	if err != nil {
		return world.WorldCoord{}, err
	}
	return world.WorldCoord{X: x, Y: y, Z: z}, nil
}

func parseTriple(lookup func(string) string) (int, int, int, error) {
	var out [3]int
	for i, key := range [3]string{"x", "y", "z"} {
		raw := lookup(key)
		if raw == "" {
			return 0, 0, 0, fmt.Errorf("missing %s", key)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid %s %q", key, raw)
		}
		out[i] = v
	}
	return out[0], out[1], out[2], nil
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
