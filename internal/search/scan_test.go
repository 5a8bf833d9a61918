package search

import (
	"context"
	"testing"
	"time"

	"beacon/api/internal/blob"
	"beacon/api/internal/initiative"
)

func seedScan(t *testing.T) *Scan {
	t.Helper()
	docs := blob.NewStore(blob.NewMemClient())
	store := initiative.NewStore(initiative.NewDocumentBackend(docs))
	now := time.Now().UTC()
	items := []initiative.Initiative{
		{ID: "i1", Version: 1, Title: "Billing migration", Description: "move invoices to the new system", Status: "active", TeamID: "t1"},
		{ID: "i2", Version: 1, Title: "Hiring plan", Description: "billing analysts for Q3", Status: "active", TeamID: "t2"},
		{ID: "i3", Version: 1, Title: "Old billing cleanup", Status: "done", TeamID: "t1", DeletedAt: &now},
	}
	if err := store.Push(context.Background(), items); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return NewScan(store)
}

func TestScanMatchesTitleAndDescription(t *testing.T) {
	scan := seedScan(t)

	results, total, err := scan.Search(Query{Text: "billing"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 hits (deleted excluded), got %d: %v", total, results)
	}
	// Title match ranks above description match.
	if results[0].ID != "i1" || results[1].ID != "i2" {
		t.Errorf("unexpected ranking: %v", results)
	}
}

func TestScanFilters(t *testing.T) {
	scan := seedScan(t)

	results, _, err := scan.Search(Query{Text: "billing", FilterTeamID: "t2"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "i2" {
		t.Errorf("team filter not applied: %v", results)
	}

	results, _, err = scan.Search(Query{Text: "billing", FilterStatus: "paused"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("status filter not applied: %v", results)
	}
}

func TestScanBlankQueryReturnsNothing(t *testing.T) {
	scan := seedScan(t)
	results, total, err := scan.Search(Query{Text: "   "})
	if err != nil || total != 0 || len(results) != 0 {
		t.Errorf("expected no results for blank query, got %v %d %v", results, total, err)
	}
}
