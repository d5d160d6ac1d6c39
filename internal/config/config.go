package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a config-friendly wrapper around time.Duration that accepts human
// readable strings such as "150ms" in configuration files while still
// allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its canonical string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar at line %d", value.Line)
	}
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters for world generation, meshing and
// grass scatter.
type Config struct {
	World   WorldConfig   `json:"world" yaml:"world"`
	Terrain TerrainConfig `json:"terrain" yaml:"terrain"`
	Meshing MeshingConfig `json:"meshing" yaml:"meshing"`
	Grass   GrassConfig   `json:"grass" yaml:"grass"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	Export  ExportConfig  `json:"export" yaml:"export"`
}

type WorldConfig struct {
	ChunkSize int         `json:"chunkSize" yaml:"chunkSize"`
	Origin    ChunkIndex  `json:"origin" yaml:"origin"` // horizontal chunk origin, usually negative half extent
	Chunks    ChunkExtent `json:"chunks" yaml:"chunks"`
	MaxHeight int         `json:"maxHeight" yaml:"maxHeight"` // highest valid voxel y, inclusive
}

type ChunkIndex struct {
	X int `json:"x" yaml:"x"`
	Z int `json:"z" yaml:"z"`
}

type ChunkExtent struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

type TerrainConfig struct {
	Seed        int64   `json:"seed" yaml:"seed"`
	Frequency   float64 `json:"frequency" yaml:"frequency"`
	Octaves     int     `json:"octaves" yaml:"octaves"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
	Lacunarity  float64 `json:"lacunarity" yaml:"lacunarity"`
	BaseHeight  int     `json:"baseHeight" yaml:"baseHeight"`
	Amplitude   float64 `json:"amplitude" yaml:"amplitude"`
	SeaLevel    int     `json:"seaLevel" yaml:"seaLevel"`
	Workers     int     `json:"workers" yaml:"workers"` // 0 picks GOMAXPROCS
}

type MeshingConfig struct {
	Workers      int     `json:"workers" yaml:"workers"`
	AtlasColumns int     `json:"atlasColumns" yaml:"atlasColumns"`
	AtlasRows    int     `json:"atlasRows" yaml:"atlasRows"`
	VoxelSize    float32 `json:"voxelSize" yaml:"voxelSize"`
}

type GrassConfig struct {
	Enabled               bool    `json:"enabled" yaml:"enabled"`
	Density               float64 `json:"density" yaml:"density"`   // instances per unit area
	MaxCount              int     `json:"maxCount" yaml:"maxCount"` // hard cap per chunk
	UpwardNormalThreshold float64 `json:"upwardNormalThreshold" yaml:"upwardNormalThreshold"`
	MinTriangleArea       float64 `json:"minTriangleArea" yaml:"minTriangleArea"`
	Seed                  uint64  `json:"seed" yaml:"seed"`
	Variants              int     `json:"variants" yaml:"variants"`
	MinScale              float64 `json:"minScale" yaml:"minScale"`
	MaxScale              float64 `json:"maxScale" yaml:"maxScale"`
}

type StorageConfig struct {
	Path       string `json:"path" yaml:"path"`
	SaveOnExit bool   `json:"saveOnExit" yaml:"saveOnExit"`
}

type HTTPConfig struct {
	Listen       string   `json:"listen" yaml:"listen"`
	ReadTimeout  Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout Duration `json:"writeTimeout" yaml:"writeTimeout"`
}

type ExportConfig struct {
	STLDir string `json:"stlDir" yaml:"stlDir"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty
// path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			ChunkSize: 16,
			Origin:    ChunkIndex{X: -16, Z: -16},
			Chunks:    ChunkExtent{X: 32, Y: 4, Z: 32},
			MaxHeight: 63,
		},
		Terrain: TerrainConfig{
			Seed:        1337,
			Frequency:   0.008,
			Octaves:     4,
			Persistence: 0.5,
			Lacunarity:  2.0,
			BaseHeight:  22,
			Amplitude:   18,
			SeaLevel:    18,
		},
		Meshing: MeshingConfig{
			Workers:      4,
			AtlasColumns: 4,
			AtlasRows:    4,
			VoxelSize:    1.0,
		},
		Grass: GrassConfig{
			Enabled:               true,
			Density:               6,
			MaxCount:              4096,
			UpwardNormalThreshold: 0.7,
			MinTriangleArea:       1e-6,
			Seed:                  0x9e3779b97f4a7c15,
			Variants:              4,
			MinScale:              0.6,
			MaxScale:              1.2,
		},
		HTTP: HTTPConfig{
			ReadTimeout:  Duration(5 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
		},
	}
}

func (c *Config) Validate() error {
	if c.World.ChunkSize <= 0 {
		return errors.New("world.chunkSize must be positive")
	}
	if c.World.Chunks.X <= 0 || c.World.Chunks.Y <= 0 || c.World.Chunks.Z <= 0 {
		return errors.New("world.chunks must be positive on every axis")
	}
	if c.World.MaxHeight < 0 {
		return errors.New("world.maxHeight cannot be negative")
	}
	if c.World.MaxHeight >= c.World.Chunks.Y*c.World.ChunkSize {
		return errors.New("world.maxHeight must fit inside world.chunks.y")
	}
	if want := c.World.MaxHeight/c.World.ChunkSize + 1; c.World.Chunks.Y != want {
		return fmt.Errorf("world.chunks.y must be %d to reach world.maxHeight without empty chunks", want)
	}
	if c.World.Origin.X != -(c.World.Chunks.X/2) || c.World.Origin.Z != -(c.World.Chunks.Z/2) {
		return fmt.Errorf("world.origin must centre the world: want x=%d z=%d",
			-(c.World.Chunks.X / 2), -(c.World.Chunks.Z / 2))
	}
	if c.Terrain.Octaves <= 0 {
		return errors.New("terrain.octaves must be positive")
	}
	if c.Terrain.Workers < 0 {
		return errors.New("terrain.workers cannot be negative")
	}
	if c.Meshing.Workers < 0 {
		return errors.New("meshing.workers cannot be negative")
	}
	if c.Meshing.AtlasColumns <= 0 || c.Meshing.AtlasRows <= 0 {
		return errors.New("meshing atlas dimensions must be positive")
	}
	if c.Meshing.VoxelSize <= 0 {
		return errors.New("meshing.voxelSize must be positive")
	}
	if c.Grass.Density < 0 {
		return errors.New("grass.density cannot be negative")
	}
	if c.Grass.MaxCount < 0 {
		return errors.New("grass.maxCount cannot be negative")
	}
	if c.Grass.UpwardNormalThreshold < -1 || c.Grass.UpwardNormalThreshold > 1 {
		return errors.New("grass.upwardNormalThreshold must be within [-1, 1]")
	}
	if c.Grass.MinTriangleArea < 0 {
		return errors.New("grass.minTriangleArea cannot be negative")
	}
	if c.Grass.Variants <= 0 {
		return errors.New("grass.variants must be positive")
	}
	if c.Grass.MinScale <= 0 || c.Grass.MaxScale < c.Grass.MinScale {
		return errors.New("grass scale range must be positive and ordered")
	}
	return nil
}
