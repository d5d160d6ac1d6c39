package world

import (
	"fmt"
	"strings"
)

// Material enumerates the closed set of voxel materials.
type Material uint8

const (
	Air Material = iota
	TopSoil
	SubSoil
	Rock
	Bedrock
	Sand
	Clay
	Water

	materialCount
)

// Tool is the tool class required to break a material.
type Tool uint8

const (
	ToolNone Tool = iota
	ToolShovel
	ToolPickaxe
)

var toolNames = [...]string{
	ToolNone:    "none",
	ToolShovel:  "shovel",
	ToolPickaxe: "pickaxe",
}

func (t Tool) String() string {
	if int(t) >= len(toolNames) {
		return fmt.Sprintf("tool(%d)", uint8(t))
	}
	return toolNames[t]
}

func (t Tool) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MaterialInfo captures the static properties of a material. Atlas indices
// address tiles in the terrain texture atlas per face class.
type MaterialInfo struct {
	Name        string
	Transparent bool
	Breakable   bool
	Hardness    float32
	Tool        Tool
	Color       string
	AtlasTop    uint8
	AtlasSide   uint8
	AtlasBottom uint8
}

var materials = [materialCount]MaterialInfo{
	Air: {
		Name:        "air",
		Transparent: true,
	},
	TopSoil: {
		Name:        "topsoil",
		Breakable:   true,
		Hardness:    0.6,
		Tool:        ToolShovel,
		Color:       "#5d9b3d",
		AtlasTop:    0,
		AtlasSide:   7,
		AtlasBottom: 1,
	},
	SubSoil: {
		Name:        "subsoil",
		Breakable:   true,
		Hardness:    0.8,
		Tool:        ToolShovel,
		Color:       "#8b5a2b",
		AtlasTop:    1,
		AtlasSide:   1,
		AtlasBottom: 1,
	},
	Rock: {
		Name:        "rock",
		Breakable:   true,
		Hardness:    1.5,
		Tool:        ToolPickaxe,
		Color:       "#7a7a7a",
		AtlasTop:    2,
		AtlasSide:   2,
		AtlasBottom: 2,
	},
	Bedrock: {
		Name:        "bedrock",
		Hardness:    -1,
		Tool:        ToolPickaxe,
		Color:       "#2e2e2e",
		AtlasTop:    3,
		AtlasSide:   3,
		AtlasBottom: 3,
	},
	Sand: {
		Name:        "sand",
		Breakable:   true,
		Hardness:    0.5,
		Tool:        ToolShovel,
		Color:       "#dbcf8e",
		AtlasTop:    4,
		AtlasSide:   4,
		AtlasBottom: 4,
	},
	Clay: {
		Name:        "clay",
		Breakable:   true,
		Hardness:    0.7,
		Tool:        ToolShovel,
		Color:       "#9fa4b0",
		AtlasTop:    5,
		AtlasSide:   5,
		AtlasBottom: 5,
	},
	Water: {
		Name:        "water",
		Transparent: true,
		Color:       "#26598c",
		AtlasTop:    6,
		AtlasSide:   6,
		AtlasBottom: 6,
	},
}

// Info returns the table entry for m. Unknown values report as air.
func (m Material) Info() MaterialInfo {
	if m >= materialCount {
		return materials[Air]
	}
	return materials[m]
}

func (m Material) Valid() bool {
	return m < materialCount
}

func (m Material) String() string {
	if !m.Valid() {
		return fmt.Sprintf("material(%d)", uint8(m))
	}
	return materials[m].Name
}

// AtlasIndex returns the atlas tile used for the given face.
func (m Material) AtlasIndex(face Face) uint8 {
	info := m.Info()
	switch face {
	case Top:
		return info.AtlasTop
	case Bottom:
		return info.AtlasBottom
	default:
		return info.AtlasSide
	}
}

func (m Material) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown material %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *Material) UnmarshalText(text []byte) error {
	parsed, err := ParseMaterial(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMaterial resolves a material by its table name.
func ParseMaterial(name string) (Material, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range materials {
		if materials[i].Name == name {
			return Material(i), nil
		}
	}
	return Air, fmt.Errorf("unknown material %q", name)
}

// Voxel is the value stored per cell of a chunk.
type Voxel struct {
	Material Material `json:"material"`
}

// IsTransparent reports whether faces of neighbouring solid voxels show through this one.
func (v Voxel) IsTransparent() bool {
	return v.Material.Info().Transparent
}

func (v Voxel) IsSolid() bool {
	return !v.IsTransparent()
}
