package util

import (
	"strings"
	"testing"
	"time"
)

func TestNewIDPrefix(t *testing.T) {
	id := NewID("init")
	if !strings.HasPrefix(id, "init_") {
		t.Errorf("expected init_ prefix, got %q", id)
	}
	if NewID("") == NewID("") {
		t.Error("expected distinct random ids")
	}
}

func TestSortableIDOrdersByTime(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := NewSortableID("", t0)
	later := NewSortableID("", t0.Add(time.Second))
	if earlier >= later {
		t.Errorf("expected %q < %q", earlier, later)
	}
}
