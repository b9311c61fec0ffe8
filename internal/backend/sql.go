package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	driver string
	schema string
	get    string
	upsert string
	remove string
	keys   string
}

var dialects = map[Type]dialect{
	TypeSQLite: {
		driver: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS mops_kv (
			kv_key TEXT PRIMARY KEY,
			kv_value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		get: `SELECT kv_value FROM mops_kv WHERE kv_key = ?`,
		upsert: `INSERT INTO mops_kv (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(kv_key) DO UPDATE SET kv_value = excluded.kv_value, updated_at = excluded.updated_at`,
		remove: `DELETE FROM mops_kv WHERE kv_key = ?`,
		keys:   `SELECT kv_key FROM mops_kv`,
	},
	TypePostgres: {
		driver: "postgres",
		schema: `CREATE TABLE IF NOT EXISTS mops_kv (
			kv_key TEXT PRIMARY KEY,
			kv_value TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		get: `SELECT kv_value FROM mops_kv WHERE kv_key = $1`,
		upsert: `INSERT INTO mops_kv (kv_key, kv_value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = EXCLUDED.updated_at`,
		remove: `DELETE FROM mops_kv WHERE kv_key = $1`,
		keys:   `SELECT kv_key FROM mops_kv`,
	},
	TypeMySQL: {
		driver: "mysql",
		schema: `CREATE TABLE IF NOT EXISTS mops_kv (
			kv_key VARCHAR(255) NOT NULL PRIMARY KEY,
			kv_value LONGTEXT NOT NULL,
			updated_at BIGINT NOT NULL
		) CHARACTER SET utf8mb4`,
		get: `SELECT kv_value FROM mops_kv WHERE kv_key = ?`,
		upsert: `INSERT INTO mops_kv (kv_key, kv_value, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE kv_value = VALUES(kv_value), updated_at = VALUES(updated_at)`,
		remove: `DELETE FROM mops_kv WHERE kv_key = ?`,
		keys:   `SELECT kv_key FROM mops_kv`,
	},
}

// SQL stores keys as rows of the mops_kv table.
type SQL struct {
	typ     Type
	db      *sql.DB
	dialect dialect
}

// OpenSQL connects to a SQL database, pings it and creates the kv table.
// For sqlite, dsn may be a plain file path; WAL and a busy timeout are
// enabled on it.
func OpenSQL(ctx context.Context, typ Type, dsn string) (*SQL, error) {
	d, ok := dialects[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported sql backend %q", typ)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s dsn is required", typ)
	}
	if typ == TypeSQLite && !strings.Contains(dsn, "?") && dsn != ":memory:" {
		dsn = filepath.Clean(dsn) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", typ, err)
	}
	if typ == TypeSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", typ, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQL{typ: typ, db: db, dialect: d}, nil
}

func (s *SQL) Name() Type { return s.typ }

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.remove, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys filters in Go so that '_' and '%' in client IDs are not treated as
// LIKE wildcards.
func (s *SQL) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.keys)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
