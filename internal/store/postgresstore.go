package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultAuditTable = "audit_store"

// PostgresStoreConfig captures configuration required to initialize a Postgres-backed store.
type PostgresStoreConfig struct {
	DSN        string
	Schema     string
	AuditTable string
}

// PostgresStore persists audits in PostgreSQL. The record is kept as JSONB next to
// the generated documents.
type PostgresStore struct {
	db  *sql.DB
	cfg PostgresStoreConfig
}

// NewPostgresStore establishes a connection to PostgreSQL.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	trimmedDSN := strings.TrimSpace(cfg.DSN)
	if trimmedDSN == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	cfg.DSN = trimmedDSN
	if cfg.AuditTable == "" {
		cfg.AuditTable = defaultAuditTable
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}
	return &PostgresStore{db: db, cfg: cfg}, nil
}

// Close releases the underlying database connection.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the audit table (and schema when provided).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store: not initialized")
	}
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres store: create schema: %w", err)
		}
	}
	table := s.fullTableName(s.cfg.AuditTable)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			site TEXT NOT NULL,
			audit_type TEXT NOT NULL,
			record JSONB NOT NULL,
			report_docx BYTEA,
			tasks_xlsx BYTEA,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, table)); err != nil {
		return fmt.Errorf("postgres store: create audit table: %w", err)
	}
	return nil
}

// Save upserts rec.
func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("postgres store: record id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres store: marshal record: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, site, audit_type, record, report_docx, tasks_xlsx, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET record = EXCLUDED.record, report_docx = EXCLUDED.report_docx, tasks_xlsx = EXCLUDED.tasks_xlsx
	`, s.fullTableName(s.cfg.AuditTable))
	if _, err = s.db.ExecContext(ctx, query, rec.ID, rec.Site, rec.Type, json.RawMessage(payload), nullBytes(rec.ReportDocx), nullBytes(rec.TasksXlsx), rec.CreatedAt); err != nil {
		return fmt.Errorf("postgres store: upsert audit record: %w", err)
	}
	return nil
}

// Get loads the record with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf("SELECT record, report_docx, tasks_xlsx FROM %s WHERE id = $1", s.fullTableName(s.cfg.AuditTable))
	var (
		payload []byte
		docx    []byte
		xlsx    []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload, &docx, &xlsx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load audit record: %w", err)
	}
	rec := &Record{}
	if err = json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("postgres store: decode audit record: %w", err)
	}
	rec.ReportDocx = docx
	rec.TasksXlsx = xlsx
	return rec, nil
}

// List returns summaries newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT id, site, audit_type, COALESCE(record->>'model', ''), COALESCE(record#>>'{summary,verdict}', ''),
			created_at, tasks_xlsx IS NOT NULL
		FROM %s ORDER BY created_at DESC LIMIT $1
	`, s.fullTableName(s.cfg.AuditTable))
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list audits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Summary, 0, limit)
	for rows.Next() {
		var sum Summary
		if err = rows.Scan(&sum.ID, &sum.Site, &sum.Type, &sum.Model, &sum.Verdict, &sum.CreatedAt, &sum.HasTasks); err != nil {
			return nil, fmt.Errorf("postgres store: scan audit: %w", err)
		}
		out = append(out, sum)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate audits: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) fullTableName(name string) string {
	if strings.TrimSpace(s.cfg.Schema) == "" {
		return quoteIdentifier(name)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(name)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
