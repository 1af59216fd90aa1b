package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"harbor_insight/pkg/core/registry"
	"harbor_insight/pkg/core/store"
)

func TestCleanNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1234", 1234, true},
		{"1,234.5", 1234.5, true},
		{`"2,500"`, 2500, true},
		{" 42 ", 42, true},
		{"-17.25", -17.25, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tc := range cases {
		got, ok := CleanNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CleanNumber(%q): expected (%v, %v), got (%v, %v)", tc.in, tc.want, tc.ok, got, ok)
		}
	}
}

func buildTestWarehouse(t *testing.T, files map[string]string) *store.Warehouse {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	warehouse, err := store.Open(filepath.Join(t.TempDir(), "wh.db"))
	if err != nil {
		t.Fatalf("failed to open warehouse: %v", err)
	}
	t.Cleanup(func() { warehouse.Close() })

	reg, err := registry.New()
	if err != nil {
		t.Fatalf("failed to load dictionary: %v", err)
	}
	if err := NewPipeline(warehouse.DB(), reg, dir).Run(context.Background()); err != nil {
		t.Fatalf("ingestion failed: %v", err)
	}
	return warehouse
}

func TestCanonicalizationDuringLoad(t *testing.T) {
	w := buildTestWarehouse(t, map[string]string{
		"Consolidated PnL.csv": `Period,Line Item,Value
2024-25,Revenue From Operations,120
2024-25,EBIDTA,66
`,
	})

	ctx := context.Background()
	rs, err := w.Query(ctx, "SELECT name, canonical_name FROM dim_account ORDER BY canonical_name")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(rs.Rows))
	}
	// Raw spellings are preserved; canonical names are normalized. The
	// EBIDTA typo maps through the dictionary alias.
	if rs.Rows[0][1] != "EBITDA" {
		t.Errorf("expected canonical EBITDA, got %v", rs.Rows[0][1])
	}
	if rs.Rows[0][0] != "EBIDTA" {
		t.Errorf("raw name must be preserved, got %v", rs.Rows[0][0])
	}
	if rs.Rows[1][1] != "Revenue from Operation" {
		t.Errorf("expected canonical Revenue from Operation, got %v", rs.Rows[1][1])
	}
}

func TestPeriodDimensionFilled(t *testing.T) {
	w := buildTestWarehouse(t, map[string]string{
		"Consolidated PnL.csv": `Period,Line Item,Value
2023-24,EBITDA,55
2024-25,EBITDA,66
`,
		"Quarterly PnL.csv": `Period,Item,Category,Value
Q1 2024-25,EBITDA,Profitability,18
`,
	})

	periods, err := w.Periods(context.Background())
	if err != nil {
		t.Fatalf("failed to load periods: %v", err)
	}
	if len(periods) != 3 {
		t.Fatalf("expected 3 periods, got %d", len(periods))
	}
	// Ascending by sort key: 2023-24 (20230), 2024-25 (20240), Q1 (20241).
	if periods[0].Label != "2023-24" || periods[2].Label != "Q1 2024-25" {
		t.Errorf("unexpected order: %v, %v, %v", periods[0].Label, periods[1].Label, periods[2].Label)
	}
	if periods[2].PeriodType != "quarterly" || periods[2].Quarter != 1 {
		t.Errorf("expected quarterly q1, got %s q%d", periods[2].PeriodType, periods[2].Quarter)
	}
}

func TestMissingValuesStoredAsNull(t *testing.T) {
	w := buildTestWarehouse(t, map[string]string{
		"Consolidated PnL.csv": `Period,Line Item,Value
2024-25,EBITDA,
2024-25,Revenue from Operation,120
`,
	})

	rs, err := w.Query(context.Background(),
		"SELECT COUNT(*) FROM fact_pnl_annual WHERE value IS NULL")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(rs.Rows) != 1 || rs.Rows[0][0].(int64) != 1 {
		t.Errorf("expected exactly one NULL value, got %v", rs.Rows)
	}
}

func TestVolumeDimensionsCreated(t *testing.T) {
	w := buildTestWarehouse(t, map[string]string{
		"Volumes.csv": `Period,Port,State,Commodity,Entity,Type,Value
2024-25,Alpha Port,Dry,Coal,Self,Actual,10
2024-25,Beta Port,Crude,Oil,Self,Actual,5
2024-25,Alpha Port,Dry,Iron Ore,Self,Actual,3
`,
	})

	ctx := context.Background()
	ports, err := w.Ports(ctx)
	if err != nil {
		t.Fatalf("failed to load ports: %v", err)
	}
	if len(ports) != 2 {
		t.Errorf("expected 2 ports, got %v", ports)
	}

	cargoTypes, err := w.CargoTypes(ctx)
	if err != nil {
		t.Fatalf("failed to load cargo types: %v", err)
	}
	if len(cargoTypes) != 2 {
		t.Errorf("expected 2 cargo types, got %v", cargoTypes)
	}

	rs, err := w.Query(ctx, "SELECT SUM(volume_value) FROM fact_volume")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if v, ok := rs.Rows[0][0].(float64); !ok || v != 18 {
		t.Errorf("expected total volume 18, got %v", rs.Rows[0][0])
	}
}

func TestViewsComputeRatios(t *testing.T) {
	w := buildTestWarehouse(t, map[string]string{
		"Consolidated PnL.csv": `Period,Line Item,Value
2024-25,Revenue from Operation,200
2024-25,EBITDA,50
`,
	})

	rs, err := w.Query(context.Background(), "SELECT period, ebitda_margin FROM view_ebitda_margin")
	if err != nil {
		t.Fatalf("view query failed: %v", err)
	}
	if len(rs.Rows) != 1 {
		t.Fatalf("expected 1 margin row, got %d", len(rs.Rows))
	}
	if m, ok := rs.Rows[0][1].(float64); !ok || m != 0.25 {
		t.Errorf("expected margin 0.25, got %v", rs.Rows[0][1])
	}
}

func TestMissingFilesAreSkipped(t *testing.T) {
	// A dataset with only one file still builds.
	w := buildTestWarehouse(t, map[string]string{
		"Consolidated PnL.csv": `Period,Line Item,Value
2024-25,EBITDA,66
`,
	})
	rs, err := w.Query(context.Background(), "SELECT COUNT(*) FROM fact_pnl_annual")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if rs.Rows[0][0].(int64) != 1 {
		t.Errorf("expected 1 fact row, got %v", rs.Rows[0][0])
	}
}
