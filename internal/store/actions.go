package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Action kinds recorded in the action log.
const (
	ActionPopulate = "populate"
	ActionDrop     = "drop"
)

// Action is one row of the bio2bel_action log.
type Action struct {
	ID       int64
	Resource string
	Action   string
	Created  time.Time
}

// RecordAction appends an entry to the action log.
func (s *Store) RecordAction(ctx context.Context, resource, action string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if resource == "" || action == "" {
		return fmt.Errorf("record action: resource and action are required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		"INSERT INTO bio2bel_action (resource, action, created_at) VALUES (?, ?, ?)",
		resource,
		action,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// ListActions returns actions oldest first; empty resource lists all.
func (s *Store) ListActions(ctx context.Context, resource string) ([]Action, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := "SELECT id, resource, action, created_at FROM bio2bel_action"
	var args []any
	if r := strings.TrimSpace(resource); r != "" {
		query += " WHERE resource = ?"
		args = append(args, r)
	}
	query += " ORDER BY id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var (
			a       Action
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Resource, &a.Action, &created); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Created = time.UnixMilli(created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountActions returns the number of logged actions.
func (s *Store) CountActions(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM bio2bel_action").Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}
