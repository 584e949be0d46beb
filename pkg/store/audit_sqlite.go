package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tracesim/pkg/model"
)

const auditSchema = `CREATE TABLE IF NOT EXISTS audit(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	target TEXT,
	detail TEXT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit(ts);`

// SQLiteAudit keeps the audit log in a local sqlite file so it survives
// restarts. Trace history is never written here.
type SQLiteAudit struct {
	db *sql.DB
}

func OpenSQLiteAudit(ctx context.Context, path string) (*SQLiteAudit, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return &SQLiteAudit{db: db}, nil
}

func (s *SQLiteAudit) Append(ctx context.Context, e model.AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(actor, action, target, detail, ts) VALUES(?,?,?,?,?)`,
		e.Actor, e.Action, e.Target, e.Detail, e.Timestamp.UnixNano())
	return err
}

func (s *SQLiteAudit) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	q := `SELECT actor, action, target, detail, ts FROM (
		SELECT id, actor, action, target, detail, ts FROM audit ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e              model.AuditEntry
			target, detail sql.NullString
			ts             int64
		)
		if err := rows.Scan(&e.Actor, &e.Action, &target, &detail, &ts); err != nil {
			return nil, err
		}
		e.Target, e.Detail = target.String, detail.String
		e.Timestamp = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteAudit) Close() error { return s.db.Close() }
