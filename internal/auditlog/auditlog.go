// Package auditlog implements the append-only logs: the bounded changelog
// and the date-partitioned activity/error logs, with range queries and a
// retention sweep.
package auditlog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"beacon/api/internal/blob"
)

const (
	// changelogPath holds the most-recent-first change history, hard
	// capped.
	changelogPath = "data/changelog.json"
	changelogCap  = 1000

	logPrefix = "logs/"
	// Each day's entries live in one array document.
	logFileName = "entries.json"
)

// Valid log categories.
const (
	CategoryErrors   = "errors"
	CategoryActivity = "activity"
)

// ChangeRecord is one field-level change to an entity, ordered by
// timestamp within the changelog.
type ChangeRecord struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entityId"`
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is one date-partitioned log record. The partition is derived from
// the entry's own timestamp, never from the wall clock at write time.
type Entry struct {
	ID        string            `json:"id"`
	Severity  string            `json:"severity,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Filter narrows a range query. Zero values match everything.
type Filter struct {
	Severity string
	Actor    string
}

// Changelog is the bounded, most-recent-first change history.
type Changelog struct {
	docs *blob.Store
	cap  int
}

func NewChangelog(docs *blob.Store) *Changelog {
	return &Changelog{docs: docs, cap: changelogCap}
}

// Append prepends records and trims to the cap.
func (c *Changelog) Append(ctx context.Context, records ...ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	current := make([]ChangeRecord, 0)
	if _, err := c.docs.Load(ctx, changelogPath, &current); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		log.Printf("auditlog: %v; starting changelog fresh", verr)
		current = current[:0]
	}

	// Newest first.
	next := make([]ChangeRecord, 0, len(records)+len(current))
	for i := len(records) - 1; i >= 0; i-- {
		next = append(next, records[i])
	}
	next = append(next, current...)
	if len(next) > c.cap {
		next = next[:c.cap]
	}
	return c.docs.Save(ctx, changelogPath, next, blob.SaveOptions{CacheControl: "no-cache"})
}

// Recent returns up to limit records, newest first.
func (c *Changelog) Recent(ctx context.Context, limit int) ([]ChangeRecord, error) {
	records := make([]ChangeRecord, 0)
	if _, err := c.docs.Load(ctx, changelogPath, &records); err != nil {
		var verr *blob.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		log.Printf("auditlog: %v; returning empty changelog", verr)
		return []ChangeRecord{}, nil
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Log is the date-partitioned append-only log.
type Log struct {
	docs *blob.Store
}

func NewLog(docs *blob.Store) *Log {
	return &Log{docs: docs}
}

func dayPath(category string, day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("%s%s/%04d/%02d/%02d/%s", logPrefix, category, day.Year(), int(day.Month()), day.Day(), logFileName)
}

// Append resolves each entry's partition from its own timestamp and writes
// it there. Entries for the same day share one load/save round trip.
func (l *Log) Append(ctx context.Context, category string, entries ...Entry) error {
	byPath := make(map[string][]Entry)
	for _, entry := range entries {
		path := dayPath(category, entry.Timestamp)
		byPath[path] = append(byPath[path], entry)
	}

	for path, added := range byPath {
		current := make([]Entry, 0)
		if _, err := l.docs.Load(ctx, path, &current); err != nil {
			var verr *blob.ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			log.Printf("auditlog: %v; starting day file fresh", verr)
			current = current[:0]
		}
		current = append(current, added...)
		if err := l.docs.Save(ctx, path, current, blob.SaveOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// QueryRange loads each calendar day in [start, end], skipping absent days,
// applies the filter, and returns entries sorted timestamp-descending.
func (l *Log) QueryRange(ctx context.Context, category string, start, end time.Time, filter Filter) ([]Entry, error) {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC()

	results := make([]Entry, 0)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		entries := make([]Entry, 0)
		found, err := l.docs.Load(ctx, dayPath(category, day), &entries)
		if err != nil {
			var verr *blob.ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			log.Printf("auditlog: %v; skipping day", verr)
			continue
		}
		if !found {
			continue
		}
		for _, entry := range entries {
			if filter.Severity != "" && !strings.EqualFold(entry.Severity, filter.Severity) {
				continue
			}
			if filter.Actor != "" && entry.Actor != filter.Actor {
				continue
			}
			results = append(results, entry)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results, nil
}

// RetentionSweep scans every file under the log namespaces, parses the date
// embedded in each path, and deletes files older than the cutoff. Returns
// the number of files deleted. Cost is linear in total file count; accepted
// for low-volume internal use.
func (l *Log) RetentionSweep(ctx context.Context, retentionDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	paths, err := l.docs.List(ctx, logPrefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, path := range paths {
		day, ok := parseDayFromPath(path)
		if !ok {
			log.Printf("auditlog: sweep skipping unparseable path %s", path)
			continue
		}
		if !day.Before(cutoff) {
			continue
		}
		removed, err := l.docs.Delete(ctx, path)
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// parseDayFromPath extracts the calendar date from a path shaped like
// logs/<category>/<year>/<month>/<day>/<file>.
func parseDayFromPath(path string) (time.Time, bool) {
	parts := strings.Split(strings.TrimPrefix(path, logPrefix), "/")
	if len(parts) < 5 {
		return time.Time{}, false
	}
	year, err1 := strconv.Atoi(parts[1])
	month, err2 := strconv.Atoi(parts[2])
	day, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
