package autoresponse

import (
	"context"
	"database/sql"
	"fmt"
)

// Store reads auto-response rules from the relational database.
type Store struct {
	db *sql.DB
}

// NewStore creates a rule store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("autoresponse: db required")
	}
	return &Store{db: db}
}

// ListActive returns active rules ordered by descending priority.
func (s *Store) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger, trigger_kind, response, category, priority, active, updated_at
		FROM auto_responses
		WHERE active = TRUE
		ORDER BY priority DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("autoresponse: list rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Kind, &r.Response, &r.Category, &r.Priority, &r.Active, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("autoresponse: scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
