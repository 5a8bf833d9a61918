// Package report stores generated report documents under the reports
// namespace: one file per team per period, plus a department rollup.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"beacon/api/internal/blob"
)

const prefix = "reports/"

type Report struct {
	Period      string         `json:"period"`
	TeamID      string         `json:"teamId,omitempty"` // empty for the department rollup
	GeneratedAt time.Time      `json:"generatedAt"`
	GeneratedBy string         `json:"generatedBy,omitempty"`
	Totals      map[string]int `json:"totals,omitempty"`
	Highlights  []string       `json:"highlights,omitempty"`
}

type Store struct {
	docs *blob.Store
}

func NewStore(docs *blob.Store) *Store {
	return &Store{docs: docs}
}

func path(period, teamID string) string {
	if teamID == "" {
		return fmt.Sprintf("%s%s/department.json", prefix, period)
	}
	return fmt.Sprintf("%s%s/team_%s.json", prefix, period, teamID)
}

func (s *Store) Save(ctx context.Context, r Report) error {
	if r.Period == "" {
		return fmt.Errorf("report: period is required")
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	return s.docs.Save(ctx, path(r.Period, r.TeamID), r, blob.SaveOptions{})
}

// Load returns the report, or nil when none has been generated.
func (s *Store) Load(ctx context.Context, period, teamID string) (*Report, error) {
	var r Report
	found, err := s.docs.Load(ctx, path(period, teamID), &r)
	if err != nil {
		var verr *blob.ValidationError
		if errors.As(err, &verr) {
			log.Printf("report: %v; treating as absent", verr)
			return nil, nil
		}
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &r, nil
}

// ListPeriod returns the team ids with a stored report for the period,
// with "" standing in for the department rollup.
func (s *Store) ListPeriod(ctx context.Context, period string) ([]string, error) {
	paths, err := s.docs.List(ctx, prefix+period+"/")
	if err != nil {
		return nil, err
	}
	teams := make([]string, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(p[strings.LastIndex(p, "/")+1:], ".json")
		if name == "department" {
			teams = append(teams, "")
			continue
		}
		teams = append(teams, strings.TrimPrefix(name, "team_"))
	}
	sort.Strings(teams)
	return teams, nil
}
