package incident

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS incident_records (
	id          TEXT PRIMARY KEY,
	subject     TEXT NOT NULL CHECK (subject <> ''),
	severity    TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL
)`

const severityRank = `CASE severity
	WHEN 'Critical' THEN 4
	WHEN 'High' THEN 3
	WHEN 'Medium' THEN 2
	WHEN 'Low' THEN 1
	ELSE 0 END`

// PostgresStore keeps records in a PostgreSQL table. The DSN comes from
// the environment, never from the config file.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func OpenPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, &StoreError{Op: "migrate", Err: err}
	}
	logger.Info("incident store connected", zap.String("backend", "postgres"))
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r Record) (string, error) {
	if err := checkRecord(r); err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &StoreError{Op: "insert", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO incident_records (id, subject, severity, description, created_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Subject, string(r.Severity), r.Description, r.CreatedAt, r.Status)
	if err != nil {
		return "", &StoreError{Op: "insert", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return "", &StoreError{Op: "insert", Err: err}
	}
	return r.ID, nil
}

// listSQL builds the SELECT for q. Ordering matches Query.apply.
func listSQL(q Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	if q.Filter.Severity != "" {
		args = append(args, string(q.Filter.Severity))
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	if q.Filter.Text != "" {
		args = append(args, "%"+escapeLike(q.Filter.Text)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(subject ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, n, n))
	}

	var b strings.Builder
	b.WriteString("SELECT id, subject, severity, description, created_at, status FROM incident_records")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	switch q.Sort {
	case TimeAsc:
		b.WriteString(" ORDER BY created_at ASC, id ASC")
	case SeverityAsc:
		b.WriteString(" ORDER BY " + severityRank + " ASC, created_at ASC, id ASC")
	case SeverityDesc:
		b.WriteString(" ORDER BY " + severityRank + " DESC, created_at ASC, id ASC")
	default:
		b.WriteString(" ORDER BY created_at DESC, id DESC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PostgresStore) List(ctx context.Context, q Query) ([]Record, error) {
	query, args := listSQL(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r   Record
			sev string
		)
		if err := rows.Scan(&r.ID, &r.Subject, &sev, &r.Description, &r.CreatedAt, &r.Status); err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		r.Severity = Severity(sev)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM incident_records").Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
