// Package ledger provides an append-only transition history for irlightd.
// It records every believed-state change for auditing and introspection.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// Entry represents a single recorded state transition
type Entry struct {
	ID           int64
	Device       string
	Origin       string
	FromResolved bool
	FromOn       bool
	FromStep     int
	ToOn         bool
	ToStep       int
	Timestamp    time.Time
}

// Ledger provides append-only transition logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record implements reconcile.Recorder. Write failures are logged and
// never propagated back into the synchronization path.
func (l *Ledger) Record(t reconcile.Transition) {
	if err := l.Append(t); err != nil {
		log.Error().Err(err).Str("light", t.Device).Msg("Failed to record transition")
	}
}

// Append adds a transition to the ledger
func (l *Ledger) Append(t reconcile.Transition) error {
	now := time.Now().UTC().Unix()

	_, err := l.db.Exec(`
		INSERT INTO transitions (device, origin, from_resolved, from_on, from_step, to_on, to_step, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Device, string(t.Origin), t.From.Resolved, t.From.On, t.From.Step, t.To.On, t.To.Step, now)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}

	return nil
}

// Recent returns the most recent transitions for a device, newest first
func (l *Ledger) Recent(device string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, device, origin, from_resolved, from_on, from_step, to_on, to_step, created_at
		FROM transitions
		WHERE device = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, device, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`
		DELETE FROM transitions WHERE created_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.Device, &entry.Origin, &entry.FromResolved,
			&entry.FromOn, &entry.FromStep, &entry.ToOn, &entry.ToStep, &timestamp,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
