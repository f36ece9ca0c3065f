package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dd0wney/fluidnet/pkg/config"
	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/logging"
	"github.com/dd0wney/fluidnet/pkg/metrics"
	"github.com/dd0wney/fluidnet/pkg/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	seconds := flag.Float64("seconds", 30, "Simulated seconds to run")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	snapshotPath := flag.String("snapshot", "", "Write a snapshot here when the run finishes")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if *verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewJSONLogger(os.Stderr, level)
	registry := metrics.NewRegistry(cfg.MetricsNamespace)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", registry.Handler())
			log.Printf("📊 Metrics on http://%s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	log.Printf("🚀 fluidnet demo starting (%.0f ticks/s, %.0fs simulated)", cfg.TickRate, *seconds)

	system := sim.New(sim.Options{Config: cfg, Logger: logger, Metrics: registry})
	if err := buildRefinery(system); err != nil {
		log.Fatalf("Failed to build scenario: %v", err)
	}

	dt := cfg.TickInterval()
	ticks := int(*seconds * cfg.TickRate)
	start := time.Now()
	for i := 0; i < ticks; i++ {
		system.Update(dt)
		if (i+1)%int(cfg.TickRate) == 0 {
			printNetworks(system, (i+1)/int(cfg.TickRate))
		}
	}
	log.Printf("✅ %d ticks in %v", ticks, time.Since(start).Round(time.Millisecond))

	if *snapshotPath != "" {
		f, err := os.Create(*snapshotPath)
		if err != nil {
			log.Fatalf("Failed to create snapshot file: %v", err)
		}
		defer f.Close()
		if err := system.Snapshot(f); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		log.Printf("💾 Snapshot written to %s", *snapshotPath)
	}
}

// buildRefinery lays out the demo world: a water line feeding a boiler
// area, and a separate crude oil line with a pumpjack, pipes, and two
// refinery consumers. The two lines sit apart so they stay distinct
// networks.
func buildRefinery(s *sim.System) error {
	cap10 := 10.0
	cap250 := 250.0

	place := func(p *entity.Participant) error {
		_, err := s.Spawn(p)
		return err
	}

	// Water line along y=0: offshore pump, pipes, storage tank, boiler.
	if err := place(&entity.Participant{
		Position:   entity.Position{X: 0, Y: 0},
		Adjacency:  entity.AllSides(),
		Production: &entity.ProductionSpec{Kind: fluid.Water, RatePerSecond: 20},
	}); err != nil {
		return err
	}
	for x := 1; x <= 4; x++ {
		if err := place(&entity.Participant{
			Position:  entity.Position{X: x, Y: 0},
			Adjacency: entity.AllSides(),
			Capacity:  &cap10,
		}); err != nil {
			return err
		}
	}
	if err := place(&entity.Participant{
		Position:  entity.Position{X: 5, Y: 0},
		Adjacency: entity.AllSides(),
		Capacity:  &cap250,
	}); err != nil {
		return err
	}
	if err := place(&entity.Participant{
		Position:    entity.Position{X: 6, Y: 0},
		Adjacency:   entity.AllSides(),
		Consumption: &entity.ConsumptionSpec{Kind: fluid.Water, RatePerSecond: 12, Efficiency: 1},
	}); err != nil {
		return err
	}

	// Crude oil line along y=5: pumpjack, pipes, two refinery intakes.
	if err := place(&entity.Participant{
		Position:   entity.Position{X: 0, Y: 5},
		Adjacency:  entity.AllSides(),
		Production: &entity.ProductionSpec{Kind: fluid.CrudeOil, RatePerSecond: 8},
	}); err != nil {
		return err
	}
	for x := 1; x <= 6; x++ {
		if err := place(&entity.Participant{
			Position:  entity.Position{X: x, Y: 5},
			Adjacency: entity.AllSides(),
			Capacity:  &cap10,
		}); err != nil {
			return err
		}
	}
	for _, x := range []int{7, 8} {
		if err := place(&entity.Participant{
			Position:    entity.Position{X: x, Y: 5},
			Adjacency:   entity.AllSides(),
			Consumption: &entity.ConsumptionSpec{Kind: fluid.CrudeOil, RatePerSecond: 3, Efficiency: 0.9},
		}); err != nil {
			return err
		}
	}
	return nil
}

func printNetworks(s *sim.System, second int) {
	fmt.Printf("t=%3ds", second)
	for _, id := range s.NetworkIDs() {
		fmt.Printf("  | net %d (%s): %.1f/%.1fL  %d members",
			id, s.EstablishedKind(id), s.TotalFluid(id), s.TotalCapacity(id), s.MemberCount(id))
	}
	fmt.Println()
}
