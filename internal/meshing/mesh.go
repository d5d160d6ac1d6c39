package meshing

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/world"
)

// Mesh is a chunk's render geometry in chunk-local space. Vertex attribute
// slices are parallel; Indices groups vertices into counter-clockwise
// triangles.
type Mesh struct {
	Chunk     world.ChunkCoord `json:"chunk"`
	Positions []mgl32.Vec3     `json:"positions"`
	Normals   []mgl32.Vec3     `json:"normals"`
	UVs       []mgl32.Vec2     `json:"uvs"`
	Indices   []uint32         `json:"indices"`
}

func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// Triangle returns the vertex indices of triangle i.
func (m *Mesh) Triangle(i int) (uint32, uint32, uint32) {
	base := i * 3
	return m.Indices[base], m.Indices[base+1], m.Indices[base+2]
}

// Fingerprint hashes every buffer in order. Identical geometry yields an
// identical fingerprint.
func (m *Mesh) Fingerprint() uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 64)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Positions)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Indices)))
	_, _ = h.Write(buf)

	writeVec3s(h, m.Positions)
	writeVec3s(h, m.Normals)
	for _, uv := range m.UVs {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(uv[0]))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(uv[1]))
		_, _ = h.Write(buf)
	}
	for _, idx := range m.Indices {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint32(buf, idx)
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

func writeVec3s(h *xxhash.Digest, vs []mgl32.Vec3) {
	buf := make([]byte, 0, 12)
	for _, v := range vs {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v[0]))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v[1]))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v[2]))
		_, _ = h.Write(buf)
	}
}

// appendQuad adds four vertices and two triangles (0,2,1),(0,3,2).
func (m *Mesh) appendQuad(corners [4]mgl32.Vec3, normal mgl32.Vec3, uvs [4]mgl32.Vec2) {
	base := uint32(len(m.Positions))
	for i := 0; i < 4; i++ {
		m.Positions = append(m.Positions, corners[i])
		m.Normals = append(m.Normals, normal)
		m.UVs = append(m.UVs, uvs[i])
	}
	m.Indices = append(m.Indices,
		base, base+2, base+1,
		base, base+3, base+2,
	)
}
