package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to
// scanning the initiative store.
type Service struct {
	meili *Meili
	scan  *Scan
}

// NewService creates a search service. meili may be nil if Meilisearch
// is not configured.
func NewService(meili *Meili, scan *Scan) *Service {
	return &Service{meili: meili, scan: scan}
}

// Search tries Meilisearch if healthy, otherwise falls back to the scan.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to scan: %v", err)
	}

	results, total, err := s.scan.Search(q)
	if err != nil {
		log.Printf("search: scan error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexInitiative indexes an initiative (fire-and-forget to Meilisearch).
func (s *Service) IndexInitiative(rec Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexInitiative(rec); err != nil {
			log.Printf("search: index initiative %s: %v", rec.ID, err)
		}
	}()
}

// RemoveInitiative removes an initiative from the index (fire-and-forget).
func (s *Service) RemoveInitiative(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.RemoveInitiative(id); err != nil {
			log.Printf("search: remove initiative %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the whole collection to Meilisearch. Called at
// startup when Meilisearch is healthy.
func (s *Service) ReindexAll(records []Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexInitiatives(records); err != nil {
		log.Printf("search: reindex initiatives: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
