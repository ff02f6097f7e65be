package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the audit trail in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_records (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			seq BIGINT NOT NULL DEFAULT 0,
			risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_level TEXT NOT NULL DEFAULT '',
			mean_risk DOUBLE PRECISION NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			phone_number TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_call_created ON audit_records (call_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_kind_created ON audit_records (kind, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_records (id, call_id, kind, seq, risk_score, risk_level, mean_risk, chunk_count, phone_number, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID,
		record.CallID,
		string(record.Kind),
		int64(record.Seq),
		record.RiskScore,
		record.RiskLevel,
		record.MeanRisk,
		record.ChunkCount,
		record.PhoneNumber,
		record.Detail,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentByCall(ctx context.Context, callID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, call_id, kind, seq, risk_score, risk_level, mean_risk, chunk_count, phone_number, detail, created_at
		 FROM audit_records WHERE call_id=$1 ORDER BY created_at DESC LIMIT $2`,
		callID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) History(ctx context.Context, q HistoryQuery) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, call_id, kind, seq, risk_score, risk_level, mean_risk, chunk_count, phone_number, detail, created_at
		 FROM audit_records WHERE kind=$1`
	args := []any{string(KindFinalized)}
	if q.ScamOnly {
		query += ` AND risk_level = ANY($2)`
		args = append(args, []string{"high", "critical"})
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r    Record
			kind string
			seq  int64
		)
		if err := rows.Scan(&r.ID, &r.CallID, &kind, &seq, &r.RiskScore, &r.RiskLevel, &r.MeanRisk, &r.ChunkCount, &r.PhoneNumber, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.Kind = RecordKind(kind)
		r.Seq = uint64(seq)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
