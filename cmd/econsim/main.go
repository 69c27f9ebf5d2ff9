// Command econsim runs the closed-city economy simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/talgya/mini-economy/internal/api"
	"github.com/talgya/mini-economy/internal/config"
	"github.com/talgya/mini-economy/internal/econ"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/entropy"
	"github.com/talgya/mini-economy/internal/narrator"
	"github.com/talgya/mini-economy/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Gold Standard City — Closed Economy Simulation")

	// ── Seed ─────────────────────────────────────────────────────────
	rng := entropy.NewClient(os.Getenv("RANDOM_ORG_KEY"))
	seed := cfg.Seed
	if seed == 0 {
		seed = rng.Seed()
		slog.Info("drew fresh world seed", "seed", seed, "true_random", rng.Enabled())
	}

	// ── Database ─────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Generate World State ─────────────────────────────────
	sim := engine.NewSimulation(engine.NewWorld(seed, nil, nil, cfg.BankReserves), cfg.Cadence)
	sim.Strict = cfg.Strict

	if db.HasSave() {
		slog.Info("found saved world state, loading...")
		if err := db.RestoreWorldState(sim); err != nil {
			slog.Error("failed to restore world state", "error", err)
			os.Exit(1)
		}
		slog.Info("world state restored",
			"residents", len(sim.World.Residents),
			"companies", len(sim.World.Companies),
			"tick", sim.TotalTicks(),
			"sim_time", engine.SimTime(sim.TotalTicks(), sim.Cad),
		)
	} else {
		slog.Info("no saved state found, generating new city...")

		world := sim.World
		world.Residents = world.Spawner.SpawnResidents(cfg.Residents, cfg.ResidentCash)
		world.Companies = world.Spawner.SeedCompanies(cfg.CompanyCash)
		world.Reindex()
		world.ResetBaselines()

		for _, c := range world.Companies {
			slog.Info("founded company",
				"name", c.Name,
				"good", econ.GoodName(c.PrimaryGood()),
				"cash", c.Cash,
			)
		}

		// First save anchors the run; loaded worlds are already saved.
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	slog.Info("city ready",
		"residents", len(sim.World.Residents),
		"companies", len(sim.World.Companies),
		"bank_reserves", sim.World.Bank.Reserves,
	)

	// ── Narrator ─────────────────────────────────────────────────────
	llm := narrator.NewClient(os.Getenv("ANTHROPIC_API_KEY"))
	if llm.Enabled() {
		slog.Info("narrator enabled (Haiku)")
		gen := narrator.NewEventGenerator(llm, rng)
		gen.Context = func() string {
			return sim.World.String()
		}
		sim.EventSource = gen
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set — narrated events and gazette disabled")
	}

	// ── Engine ───────────────────────────────────────────────────────
	eng := engine.NewEngine(sim, time.Duration(cfg.TickMillis)*time.Millisecond)
	eng.Running = true
	eng.OnDay = func(day uint64) {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("daily save failed", "error", err, "day", day)
		}
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	adminKey := os.Getenv("ECONSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("ECONSIM_ADMIN_KEY not set — control-plane POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Narrator: llm,
		DB:       db,
		Port:     cfg.Port,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Start ────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nGold Standard City is open: %d residents, %d companies.\n",
		len(sim.World.Residents), len(sim.World.Companies))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	if sim.TotalTicks() > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", sim.TotalTicks(), engine.SimTime(sim.TotalTicks(), sim.Cad))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}
