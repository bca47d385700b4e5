package mutation

import (
	"context"
	"fmt"
	"time"

	"encore.dev/storage/sqldb"
)

// MutationRecord is one row of the append-only mutation audit trail,
// grounded on invalidation/audit.go's AuditLog shape: records exactly what
// was attempted and what the provider returned, satisfying spec.md §7's
// "partial successes are never hidden".
type MutationRecord struct {
	ID           int64
	Endpoint     string
	Method       string
	TournamentID string
	TriggeredBy  string
	Success      bool
	ErrorMessage string
	LatencyMS    int64
	Timestamp    time.Time
	RequestID    string
}

// AuditLogger persists MutationRecords. Append-only: no update or delete
// path, matching invalidation.AuditLogger's compliance rationale.
type AuditLogger struct {
	db *sqldb.Database
}

func NewAuditLogger(db *sqldb.Database) (*AuditLogger, error) {
	al := &AuditLogger{db: db}
	if err := al.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("mutation: audit schema: %w", err)
	}
	return al, nil
}

func (al *AuditLogger) ensureSchema(ctx context.Context) error {
	_, err := al.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mutation_audit (
			id BIGSERIAL PRIMARY KEY,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			tournament_id TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			request_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_mutation_audit_tournament
		ON mutation_audit(tournament_id);

		CREATE INDEX IF NOT EXISTS idx_mutation_audit_created_at
		ON mutation_audit(created_at DESC);
	`)
	return err
}

// Record inserts one audit row. Failures to write the audit trail are
// logged by the caller and never fail the mutation itself.
func (al *AuditLogger) Record(ctx context.Context, rec MutationRecord) error {
	_, err := al.db.Exec(ctx, `
		INSERT INTO mutation_audit
		(endpoint, method, tournament_id, triggered_by, success, error_message, latency_ms, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rec.Endpoint, rec.Method, rec.TournamentID, rec.TriggeredBy,
		rec.Success, rec.ErrorMessage, rec.LatencyMS, rec.RequestID,
	)
	if err != nil {
		return fmt.Errorf("mutation: audit insert: %w", err)
	}
	return nil
}

// GetRecent retrieves recent audit rows, optionally filtered to one tournament.
func (al *AuditLogger) GetRecent(ctx context.Context, limit int, tournamentID string) ([]MutationRecord, error) {
	if tournamentID != "" {
		rows, err := al.db.Query(ctx, `
			SELECT id, endpoint, method, tournament_id, triggered_by, success, COALESCE(error_message, ''), latency_ms, request_id, created_at
			FROM mutation_audit WHERE tournament_id = $1
			ORDER BY created_at DESC LIMIT $2
		`, tournamentID, limit)
		if err != nil {
			return nil, fmt.Errorf("mutation: audit query: %w", err)
		}
		return scanMutationRecords(rows, limit)
	}

	rows, err := al.db.Query(ctx, `
		SELECT id, endpoint, method, tournament_id, triggered_by, success, COALESCE(error_message, ''), latency_ms, request_id, created_at
		FROM mutation_audit
		ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("mutation: audit query: %w", err)
	}
	return scanMutationRecords(rows, limit)
}

func scanMutationRecords(rows *sqldb.Rows, limit int) ([]MutationRecord, error) {
	defer rows.Close()

	out := make([]MutationRecord, 0, limit)
	for rows.Next() {
		var r MutationRecord
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.Method, &r.TournamentID, &r.TriggeredBy, &r.Success, &r.ErrorMessage, &r.LatencyMS, &r.RequestID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("mutation: audit scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
