package chatlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrNoChatLog is returned by OpenSQLiteLog when the database file is missing.
var ErrNoChatLog = errors.New("no chat log")

// SQLiteSink stores records in a local SQLite database.
type SQLiteSink struct {
	db    *sql.DB
	table string
}

// NewSQLiteSink opens (or creates) the database at path. Use ":memory:" for
// an in-memory database. An empty table selects DefaultTable.
func NewSQLiteSink(path, table string) (*SQLiteSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A second connection to ":memory:" would see a different, empty database.
	if path == ":memory:" || path == "" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteSink{db: db, table: table}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// OpenSQLiteLog opens an existing database at path read-only for
// inspection. It never creates the file or its schema.
func OpenSQLiteLog(path, table string) (*SQLiteSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoChatLog, path)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteSink{db: db, table: table}, nil
}

func (s *SQLiteSink) initialize() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		message TEXT NOT NULL,
		reply TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
	`, s.table)

	_, err := s.db.Exec(schema)
	return err
}

// Append implements Sink.
func (s *SQLiteSink) Append(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, message, reply, model, created_at) VALUES (?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Message, rec.Reply, rec.Model, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	query := fmt.Sprintf(`SELECT id, message, reply, model, created_at FROM %s ORDER BY seq DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.Message, &rec.Reply, &rec.Model, &created); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.CreatedAt = created.UTC()
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Ping checks that the database is reachable.
func (s *SQLiteSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Name implements Sink.
func (s *SQLiteSink) Name() string {
	return "sqlite"
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
