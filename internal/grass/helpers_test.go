package grass

import "voxelterrain/internal/config"

func testWorldConfig() config.WorldConfig {
	return config.WorldConfig{
		ChunkSize: 4,
		Chunks:    config.ChunkExtent{X: 1, Y: 2, Z: 1},
		MaxHeight: 7,
	}
}

func testMeshingConfig() config.MeshingConfig {
	return config.MeshingConfig{AtlasColumns: 4, AtlasRows: 4, VoxelSize: 1}
}
