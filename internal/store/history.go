package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"denim/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS MSG_LOGS (
	ID      INTEGER PRIMARY KEY AUTOINCREMENT,
	PERSON  TEXT NOT NULL,
	MESSAGE TEXT NOT NULL,
	TIME    TEXT NOT NULL
);`

// HistoryPath returns the database file for conversations with peerHost.
func HistoryPath(home, peerHost string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, peerHost)
	return filepath.Join(home, "logs", "msghist_"+clean+".db")
}

// SQLiteHistory is a domain.HistoryStore backed by one SQLite file.
type SQLiteHistory struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*SQLiteHistory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// Append stores rec; its Index is assigned by the database.
func (s *SQLiteHistory) Append(ctx context.Context, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO MSG_LOGS (PERSON, MESSAGE, TIME) VALUES (?, ?, ?)`,
		string(rec.Person), rec.Text, rec.Time.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns every record ordered by index.
func (s *SQLiteHistory) List(ctx context.Context) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT ID, PERSON, MESSAGE, TIME FROM MSG_LOGS ORDER BY ID`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		var (
			rec    domain.HistoryRecord
			person string
			ts     string
		)
		if err := rows.Scan(&rec.Index, &person, &rec.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Person = domain.Person(person)
		if rec.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("history record %d: bad time %q: %w", rec.Index, ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update replaces the text of the record at index.
func (s *SQLiteHistory) Update(ctx context.Context, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE MSG_LOGS SET MESSAGE = ? WHERE ID = ?`, text, index)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	return requireRow(res, index)
}

// Delete removes the record at index and shifts every later record down by
// one, so indexes stay 1..n.
func (s *SQLiteHistory) Delete(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM MSG_LOGS WHERE ID = ?`, index)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if err := requireRow(res, index); err != nil {
		return err
	}
	// Two passes through negative IDs keep the primary key unique mid-update.
	for _, stmt := range []string{
		`UPDATE MSG_LOGS SET ID = -(ID - 1) WHERE ID > ?`,
		`UPDATE MSG_LOGS SET ID = -ID WHERE ID < 0`,
		`UPDATE sqlite_sequence SET seq = (SELECT COALESCE(MAX(ID), 0) FROM MSG_LOGS) WHERE name = 'MSG_LOGS'`,
	} {
		args := []any{}
		if strings.Contains(stmt, "?") {
			args = append(args, index)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("reindex history: %w", err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *SQLiteHistory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func requireRow(res sql.Result, index int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: index %d", domain.ErrRecordNotFound, index)
	}
	return nil
}

// Compile-time assertion that SQLiteHistory implements domain.HistoryStore.
var _ domain.HistoryStore = (*SQLiteHistory)(nil)
