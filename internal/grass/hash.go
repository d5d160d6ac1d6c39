package grass

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"voxelterrain/internal/world"
)

const golden64 = 0x9e3779b97f4a7c15

// Lanes of the per-instance hash stream.
const (
	laneBaryU uint64 = iota
	laneBaryV
	laneYaw
	laneVariant
	laneScale
)

// ChunkKey derives a stable identity for a chunk coordinate.
func ChunkKey(coord world.ChunkCoord) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(coord.X)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(coord.Y)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(int32(coord.Z)))
	return xxhash.Sum64(buf[:])
}

// mix64 is the splitmix64 finaliser.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// sample is a pure function of its inputs; there is no generator state.
func sample(key uint64, triangle, instance int, lane uint64) uint64 {
	h := mix64(key + golden64)
	h = mix64(h ^ uint64(triangle))
	h = mix64(h ^ uint64(instance)*golden64)
	return mix64(h ^ lane)
}

// unit maps a hash to [0, 1).
func unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}
