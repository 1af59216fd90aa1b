package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"harbor_insight/pkg/api/ask"
	"harbor_insight/pkg/core/arbiter"
	"harbor_insight/pkg/core/engine"
	"harbor_insight/pkg/core/llm"
	"harbor_insight/pkg/core/registry"
	"harbor_insight/pkg/core/store"
)

func main() {
	// Load environment variables
	godotenv.Load()

	dbPath := os.Getenv("HARBOR_DB")
	if dbPath == "" {
		dbPath = "financial.db"
	}

	warehouse, err := store.Open(dbPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to open warehouse %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer warehouse.Close()

	reg, err := registry.New()
	if err != nil {
		fmt.Printf("[ERROR] Failed to load data dictionary: %v\n", err)
		os.Exit(1)
	}
	if err := loadDimensions(reg, warehouse); err != nil {
		fmt.Printf("[WARNING] Failed to load warehouse dimensions: %v\n", err)
		fmt.Println("  Period defaults and port detection will be limited")
	}

	arb := buildArbiter()
	eng := engine.New(warehouse, reg, arb)

	askHandler := ask.NewHandler(eng)
	http.HandleFunc("/api/ask", askHandler.HandleAsk)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Question answering API listening on :%s\n", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		fmt.Printf("[ERROR] Server failed: %v\n", err)
		os.Exit(1)
	}
}

// loadDimensions fills the registry with the periods, ports and cargo types
// present in the warehouse.
func loadDimensions(reg *registry.Registry, w *store.Warehouse) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	periods, err := w.Periods(ctx)
	if err != nil {
		return err
	}
	reg.SetPeriods(periods)

	ports, err := w.Ports(ctx)
	if err != nil {
		return err
	}
	reg.SetPorts(ports)

	cargoTypes, err := w.CargoTypes(ctx)
	if err != nil {
		return err
	}
	reg.SetCargoTypes(cargoTypes)
	return nil
}

// buildArbiter wires the LLM collaborator from config/models.yaml. Missing
// config or credentials yield a nil arbiter, which keeps the engine purely
// heuristic.
func buildArbiter() *arbiter.Arbiter {
	configData, err := os.ReadFile("config/models.yaml")
	if err != nil {
		fmt.Println("[WARNING] No config/models.yaml; running without LLM fallback")
		return nil
	}
	var cfg llm.Config
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		fmt.Printf("[WARNING] Invalid config/models.yaml: %v\n", err)
		return nil
	}
	if cfg.ActiveProvider == "" {
		return nil
	}
	if !llm.Available(cfg.ActiveProvider) {
		fmt.Printf("[WARNING] Provider %s has no API key; running without LLM fallback\n", cfg.ActiveProvider)
		return nil
	}
	provider := llm.ForName(cfg.ActiveProvider)
	if provider == nil {
		fmt.Printf("[WARNING] Unknown provider %s; running without LLM fallback\n", cfg.ActiveProvider)
		return nil
	}
	fmt.Printf("[DEBUG] LLM fallback enabled via %s\n", cfg.ActiveProvider)
	return arbiter.New(provider, arbiter.DefaultTimeout).WithModel(cfg.Model)
}
