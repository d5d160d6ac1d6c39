package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxelterrain/internal/config"
	"voxelterrain/internal/export"
	"voxelterrain/internal/grass"
	"voxelterrain/internal/httpapi"
	"voxelterrain/internal/meshing"
	"voxelterrain/internal/pipeline"
	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

func main() {
	var (
		cfgPath   string
		exportDir string
		listen    string
	)
	flag.StringVar(&cfgPath, "config", "", "path to terrain configuration file (json or yaml)")
	flag.StringVar(&exportDir, "export", "", "directory for STL and preview export (overrides export.stlDir)")
	flag.StringVar(&listen, "listen", "", "HTTP listen address (overrides http.listen)")
	flag.Parse()

	if wrote, err := writeConfigFromEnv(cfgPath); err != nil {
		log.Fatalf("sync config from environment: %v", err)
	} else if wrote {
		log.Printf("wrote configuration from environment to %s", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if exportDir != "" {
		cfg.Export.STLDir = exportDir
	}
	if listen != "" {
		cfg.HTTP.Listen = listen
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("voxelterrain exited with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	field, store, err := openWorld(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if cfg.Storage.SaveOnExit {
				if err := field.Save(store); err != nil {
					log.Printf("save world: %v", err)
				} else {
					log.Printf("world saved to %s", cfg.Storage.Path)
				}
			}
			if err := store.Close(); err != nil {
				log.Printf("close world store: %v", err)
			}
		}()
	}

	p := buildPipeline(field, cfg)
	defer func() {
		if n := len(p.Journal()); n > 0 {
			log.Printf("%d voxels changed this session", n)
		}
	}()
	start := time.Now()
	if err := p.RebuildAll(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// individual chunk failures were already logged; keep serving the rest
		log.Printf("initial build finished with errors: %v", err)
	}
	stats := p.Stats()
	log.Printf("built %d chunks: %d vertices, %d triangles, %d grass instances in %s",
		stats.Chunks, stats.Vertices, stats.Triangles, stats.Instances, time.Since(start).Round(time.Millisecond))

	if cfg.Export.STLDir != "" {
		if _, err := export.WriteAll(cfg.Export.STLDir, p); err != nil {
			return err
		}
	}

	if cfg.HTTP.Listen == "" {
		return nil
	}
	return serve(ctx, cfg.HTTP, p)
}

// openWorld restores the persisted world when storage holds one and generates
// terrain otherwise.
func openWorld(ctx context.Context, cfg *config.Config) (*world.Field, world.ChunkStore, error) {
	field := world.NewField(world.NewLayout(cfg.World))

	var store world.ChunkStore
	if cfg.Storage.Path != "" {
		disk, err := world.OpenDiskStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		store = disk
		restored, err := field.Load(store)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if restored > 0 {
			field.AllocateAll()
			log.Printf("restored %d chunks from %s", restored, cfg.Storage.Path)
			return field, store, nil
		}
	}

	if err := terrain.NewGenerator(cfg.Terrain).Populate(ctx, field); err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return field, store, nil
}

func buildPipeline(field *world.Field, cfg *config.Config) *pipeline.Pipeline {
	var instancer *grass.Instancer
	if cfg.Grass.Enabled {
		instancer = grass.NewInstancer(grass.SettingsFromConfig(cfg.Grass))
	}
	return pipeline.New(field, meshing.NewMesher(cfg.Meshing), instancer, pipeline.Options{
		Workers:   cfg.Meshing.Workers,
		VoxelSize: cfg.Meshing.VoxelSize,
	})
}

func serve(ctx context.Context, cfg config.HTTPConfig, p *pipeline.Pipeline) error {
	s := httpapi.NewServer(cfg)
	httpapi.Handler{Pipeline: p}.RegisterRoutes(s)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("serving chunk meshes on %s", cfg.Listen)
		errCh <- s.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}

		time.AfterFunc(10*time.Second, func() {
			log.Printf("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
