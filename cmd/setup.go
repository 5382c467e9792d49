package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/upashthiti/upashthiti/internal/config"
	"github.com/upashthiti/upashthiti/internal/detector"
	"github.com/upashthiti/upashthiti/internal/ledger"
	"github.com/upashthiti/upashthiti/internal/recognizer"
	"github.com/upashthiti/upashthiti/internal/registry"
)

// openRegistry loads the embedding store. A corrupt store file is reported
// but never fatal - the service starts with an empty registry and the next
// successful save writes a fresh file.
func openRegistry(cfg *config.Config) *registry.Registry {
	reg := registry.New(cfg.Registry.Path, cfg.EmbeddingDim())
	if err := reg.Load(); err != nil {
		if errors.Is(err, registry.ErrCorruptStore) {
			fmt.Printf("Warning: embedding store %s is corrupt, starting empty: %v\n", cfg.Registry.Path, err)
		} else {
			fmt.Printf("Warning: could not load embedding store: %v\n", err)
		}
	}
	if reg.MigratedLegacy() {
		if err := reg.Save(); err != nil {
			fmt.Printf("Warning: could not rewrite migrated embedding store: %v\n", err)
		} else {
			fmt.Printf("Migrated legacy embedding store %s to the structured format\n", cfg.Registry.Path)
		}
	}
	return reg
}

// selectDetector picks the face detection engine. Without a configured
// analysis server the service still runs; recognition endpoints report it
// as unavailable.
func selectDetector(ctx context.Context, cfg *config.Config) detector.Detector {
	if cfg.Detector.URL == "" {
		fmt.Println("Warning: DETECTOR_URL not set, face recognition is disabled")
		return detector.Disabled{}
	}

	client := detector.NewClient(cfg.Detector.URL, cfg.Detector.Model)
	if err := client.Ready(ctx); err != nil {
		fmt.Printf("Warning: face detector at %s not ready yet: %v\n", cfg.Detector.URL, err)
	}
	return client
}

// buildService wires the recognition service from configuration.
func buildService(ctx context.Context, cfg *config.Config) (*recognizer.Service, *registry.Registry, *ledger.Ledger) {
	reg := openRegistry(cfg)
	led := ledger.New(cfg.Ledger.Path)
	det := selectDetector(ctx, cfg)
	return recognizer.New(det, reg, led, cfg.Match.Threshold), reg, led
}
