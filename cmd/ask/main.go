// One-shot CLI: answer a single question against the local warehouse and
// print the answer with its provenance tag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"harbor_insight/pkg/core/arbiter"
	"harbor_insight/pkg/core/engine"
	"harbor_insight/pkg/core/llm"
	"harbor_insight/pkg/core/registry"
	"harbor_insight/pkg/core/store"
)

func main() {
	godotenv.Load()

	dbPath := flag.String("db", "financial.db", "warehouse database path or postgres:// URL")
	noLLM := flag.Bool("no-llm", false, "disable the LLM fallback even when configured")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Println("usage: ask [-db financial.db] [-no-llm] <question>")
		os.Exit(2)
	}

	warehouse, err := store.Open(*dbPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to open warehouse %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer warehouse.Close()

	reg, err := registry.New()
	if err != nil {
		fmt.Printf("[ERROR] Failed to load data dictionary: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if periods, err := warehouse.Periods(ctx); err == nil {
		reg.SetPeriods(periods)
	}
	if ports, err := warehouse.Ports(ctx); err == nil {
		reg.SetPorts(ports)
	}
	if cargoTypes, err := warehouse.CargoTypes(ctx); err == nil {
		reg.SetCargoTypes(cargoTypes)
	}

	var arb *arbiter.Arbiter
	if !*noLLM {
		arb = buildArbiter()
	}

	result := engine.New(warehouse, reg, arb).Ask(ctx, question)
	fmt.Printf("[%s] %s\n", result.Method, result.Answer)
}

func buildArbiter() *arbiter.Arbiter {
	configData, err := os.ReadFile("config/models.yaml")
	if err != nil {
		return nil
	}
	var cfg llm.Config
	if err := yaml.Unmarshal(configData, &cfg); err != nil || cfg.ActiveProvider == "" {
		return nil
	}
	if !llm.Available(cfg.ActiveProvider) {
		return nil
	}
	provider := llm.ForName(cfg.ActiveProvider)
	if provider == nil {
		return nil
	}
	return arbiter.New(provider, arbiter.DefaultTimeout).WithModel(cfg.Model)
}
