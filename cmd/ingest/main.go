// Build the analytical warehouse from the dataset CSVs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"harbor_insight/pkg/core/ingest"
	"harbor_insight/pkg/core/registry"
	"harbor_insight/pkg/core/store"
)

func main() {
	dbPath := flag.String("db", "financial.db", "output database path")
	datasetDir := flag.String("dataset", "dataset", "directory containing the source CSV files")
	flag.Parse()

	reg, err := registry.New()
	if err != nil {
		fmt.Printf("[ERROR] Failed to load data dictionary: %v\n", err)
		os.Exit(1)
	}

	warehouse, err := store.Open(*dbPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer warehouse.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pipeline := ingest.NewPipeline(warehouse.DB(), reg, *datasetDir)
	if err := pipeline.Run(ctx); err != nil {
		fmt.Printf("[ERROR] Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database built at %s\n", *dbPath)
}
