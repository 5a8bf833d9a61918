package initiative

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TabularBackend stores one row per entity in a table that deliberately has
// no unique constraint on the id column, mirroring spreadsheet semantics:
// whole-row overwrite, duplicates physically possible. Rows come back in
// insertion order (row_num).
type TabularBackend struct {
	db *sql.DB
}

func NewTabularBackend(db *sql.DB) *TabularBackend {
	return &TabularBackend{db: db}
}

func (b *TabularBackend) LoadAll(ctx context.Context) ([]Initiative, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, version, title, status, owner, team_id, description,
		       start_date, end_date, deleted_at, updated_at, updated_by
		FROM initiatives
		ORDER BY row_num ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load initiatives: %w", err)
	}
	defer rows.Close()

	items := make([]Initiative, 0)
	for rows.Next() {
		var item Initiative
		var deletedAt sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.Version,
			&item.Title,
			&item.Status,
			&item.Owner,
			&item.TeamID,
			&item.Description,
			&item.StartDate,
			&item.EndDate,
			&deletedAt,
			&item.UpdatedAt,
			&item.UpdatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan initiative: %w", err)
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			item.DeletedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate initiatives: %w", err)
	}
	return items, nil
}

// SaveAll clears and rewrites every row in one transaction. The transaction
// keeps readers consistent, but the replace itself is still a full
// overwrite, matching the document backend's semantics.
func (b *TabularBackend) SaveAll(ctx context.Context, items []Initiative) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin initiative rewrite: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM initiatives`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear initiatives: %w", err)
	}

	for _, item := range items {
		var deletedAt *time.Time
		if item.DeletedAt != nil {
			deletedAt = item.DeletedAt
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO initiatives (id, version, title, status, owner, team_id, description,
			                         start_date, end_date, deleted_at, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, item.ID, item.Version, item.Title, item.Status, item.Owner, item.TeamID,
			item.Description, item.StartDate, item.EndDate, deletedAt, item.UpdatedAt, item.UpdatedBy); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert initiative %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit initiative rewrite: %w", err)
	}
	return nil
}
