// Print the data quality profile of a built warehouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"harbor_insight/pkg/core/quality"
	"harbor_insight/pkg/core/store"
)

func main() {
	dbPath := flag.String("db", "financial.db", "warehouse database path")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		fmt.Println("Database not found; run ingestion first.")
		os.Exit(1)
	}

	warehouse, err := store.Open(*dbPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer warehouse.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	profile, err := quality.Run(ctx, warehouse.DB())
	if err != nil {
		fmt.Printf("[ERROR] Profiling failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(profile.Render())
}
