package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dream_incubator/internal/models"
)

// ScenarioSQLite stores one scenario list per mobile session, entries as a JSON array.
type ScenarioSQLite struct {
	db *sql.DB
}

func NewScenarioSQLite(db *sql.DB) *ScenarioSQLite {
	return &ScenarioSQLite{db: db}
}

const (
	upsertScenarioSQL = `
		INSERT INTO dream_scenarios (session_id, device_id, entries, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			device_id=excluded.device_id,
			entries=excluded.entries,
			uploaded_at=excluded.uploaded_at
	`

	selectScenarioSQL = `
		SELECT session_id, device_id, entries, uploaded_at
		FROM dream_scenarios WHERE session_id=?
	`

	selectAllScenariosSQL = `
		SELECT session_id, device_id, entries, uploaded_at
		FROM dream_scenarios ORDER BY uploaded_at ASC
	`
)

func marshalEntries(entries []models.ScenarioEntry) (string, error) {
	if entries == nil {
		entries = []models.ScenarioEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEntries(s string) ([]models.ScenarioEntry, error) {
	if s == "" {
		return nil, nil
	}
	var entries []models.ScenarioEntry
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces the list stored for l.SessionID.
func (r *ScenarioSQLite) Save(ctx context.Context, l models.ScenarioList) error {
	entries, err := marshalEntries(l.Entries)
	if err != nil {
		return fmt.Errorf("marshal scenarios of session %q: %w", l.SessionID, err)
	}
	uploaded := l.UploadedAt
	if uploaded.IsZero() {
		uploaded = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, upsertScenarioSQL,
		l.SessionID,
		l.DeviceID,
		entries,
		uploaded.UTC(),
	); err != nil {
		return fmt.Errorf("upsert scenarios of session %q: %w", l.SessionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScenarioList(row rowScanner) (models.ScenarioList, error) {
	var (
		l       models.ScenarioList
		entries string
	)
	if err := row.Scan(&l.SessionID, &l.DeviceID, &entries, &l.UploadedAt); err != nil {
		return models.ScenarioList{}, err
	}
	parsed, err := unmarshalEntries(entries)
	if err != nil {
		return models.ScenarioList{}, fmt.Errorf("decode scenarios of session %q: %w", l.SessionID, err)
	}
	l.Entries = parsed
	l.UploadedAt = l.UploadedAt.UTC()
	return l, nil
}

// Get returns (nil, nil) when the session has no stored list.
func (r *ScenarioSQLite) Get(ctx context.Context, sessionID string) (*models.ScenarioList, error) {
	l, err := scanScenarioList(r.db.QueryRowContext(ctx, selectScenarioSQL, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select scenarios of session %q: %w", sessionID, err)
	}
	return &l, nil
}

// LoadAll returns every stored list, oldest upload first.
func (r *ScenarioSQLite) LoadAll(ctx context.Context) ([]models.ScenarioList, error) {
	rows, err := r.db.QueryContext(ctx, selectAllScenariosSQL)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	var out []models.ScenarioList
	for rows.Next() {
		l, err := scanScenarioList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return out, nil
}
