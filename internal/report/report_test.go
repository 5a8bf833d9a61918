package report

import (
	"context"
	"testing"

	"beacon/api/internal/blob"
)

func TestSaveLoadTeamAndDepartment(t *testing.T) {
	store := NewStore(blob.NewStore(blob.NewMemClient()))
	ctx := context.Background()

	if err := store.Save(ctx, Report{Period: "2026-Q3", TeamID: "t1", Totals: map[string]int{"done": 4}}); err != nil {
		t.Fatalf("Save team report failed: %v", err)
	}
	if err := store.Save(ctx, Report{Period: "2026-Q3", Totals: map[string]int{"done": 12}}); err != nil {
		t.Fatalf("Save department report failed: %v", err)
	}

	team, err := store.Load(ctx, "2026-Q3", "t1")
	if err != nil || team == nil {
		t.Fatalf("Load team report: %v %v", team, err)
	}
	if team.Totals["done"] != 4 {
		t.Errorf("unexpected team totals: %+v", team.Totals)
	}

	dept, err := store.Load(ctx, "2026-Q3", "")
	if err != nil || dept == nil {
		t.Fatalf("Load department report: %v %v", dept, err)
	}

	absent, err := store.Load(ctx, "2026-Q4", "t1")
	if err != nil {
		t.Fatalf("Load absent failed: %v", err)
	}
	if absent != nil {
		t.Error("expected nil for absent report")
	}

	teams, err := store.ListPeriod(ctx, "2026-Q3")
	if err != nil {
		t.Fatalf("ListPeriod failed: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("expected 2 reports for period, got %v", teams)
	}
	if teams[0] != "" || teams[1] != "t1" {
		t.Errorf("unexpected period listing: %v", teams)
	}
}
