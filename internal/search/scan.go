package search

import (
	"context"
	"sort"
	"strings"

	"beacon/api/internal/initiative"
)

// Scan implements Searcher by loading the initiative collection and
// matching substrings. It is the fallback when Meilisearch is down or
// not configured; the collection is small enough that a linear pass
// stays cheap.
type Scan struct {
	store *initiative.Store
}

// NewScan creates a store-backed fallback searcher.
func NewScan(store *initiative.Store) *Scan {
	return &Scan{store: store}
}

// Healthy always returns true. If the store backend is down, the whole
// app is down.
func (s *Scan) Healthy() bool {
	return true
}

// Search matches the query text against titles and descriptions,
// case-insensitively, with title hits ranked first.
func (s *Scan) Search(q Query) ([]Result, int, error) {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return nil, 0, nil
	}

	items, err := s.store.LoadAll(context.Background())
	if err != nil {
		return nil, 0, err
	}

	type ranked struct {
		r     Result
		score int
	}
	var hits []ranked
	for _, item := range items {
		if item.DeletedAt != nil {
			continue
		}
		if q.FilterTeamID != "" && item.TeamID != q.FilterTeamID {
			continue
		}
		if q.FilterStatus != "" && item.Status != q.FilterStatus {
			continue
		}
		score := 0
		if strings.Contains(strings.ToLower(item.Title), text) {
			score += 2
		}
		if strings.Contains(strings.ToLower(item.Description), text) {
			score++
		}
		if score == 0 {
			continue
		}
		hits = append(hits, ranked{
			r: Result{
				ID:      item.ID,
				Title:   item.Title,
				Snippet: snippet(item.Description),
				Status:  item.Status,
				TeamID:  item.TeamID,
			},
			score: score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	total := len(hits)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	results := make([]Result, 0, end-offset)
	for _, h := range hits[offset:end] {
		results = append(results, h.r)
	}
	return results, total, nil
}

func snippet(s string) string {
	const max = 160
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut < 0 {
		cut = max
	}
	return s[:cut] + "…"
}
