package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/win_mon/internal/domain"
)

const historyDBName = "history.db"

// EncryptedHistory implements domain.TerminationStore using a SQLCipher
// encrypted SQLite database.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the history database in dataDir.
// The key is used as the SQLCipher raw key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// One writer, the poll loop.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open history (wrong key?): %w", err)
	}
	return h, nil
}

func (h *EncryptedHistory) createTables() error {
	_, err := h.db.Exec(`
	CREATE TABLE IF NOT EXISTS terminations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at_unix_ms INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		rule TEXT NOT NULL,
		pid INTEGER NOT NULL,
		process_name TEXT NOT NULL DEFAULT '',
		window_name TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL,
		timeout INTEGER NOT NULL,
		outcome TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS terminations_at ON terminations (at_unix_ms);
	`)
	return err
}

// Record appends an event.
func (h *EncryptedHistory) Record(event domain.TerminationEvent) error {
	_, err := h.db.Exec(`
		INSERT INTO terminations
			(at_unix_ms, session_id, rule, pid, process_name, window_name, duration, timeout, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.At.UnixMilli(), event.SessionID, event.Rule, event.PID, event.ProcessName,
		event.WindowName, event.Duration, int(event.Timeout), string(event.Outcome),
	)
	return err
}

// Recent returns up to limit events, newest first.
func (h *EncryptedHistory) Recent(limit int) ([]domain.TerminationEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := h.db.Query(`
		SELECT at_unix_ms, session_id, rule, pid, process_name, window_name, duration, timeout, outcome
		FROM terminations ORDER BY at_unix_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TerminationEvent
	for rows.Next() {
		var (
			ev      domain.TerminationEvent
			atMs    int64
			timeout int
			outcome string
		)
		if err := rows.Scan(&atMs, &ev.SessionID, &ev.Rule, &ev.PID, &ev.ProcessName,
			&ev.WindowName, &ev.Duration, &timeout, &outcome); err != nil {
			return nil, err
		}
		ev.At = time.UnixMilli(atMs).UTC()
		ev.Timeout = domain.Timeout(timeout)
		ev.Outcome = domain.TerminationOutcome(outcome)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Path returns the database file path.
func (h *EncryptedHistory) Path() string {
	return h.dbPath
}

// Close releases the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// OpenHistory opens the encrypted history in dataDir, creating its key on first use.
func OpenHistory(dataDir string) (*EncryptedHistory, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, err
	}
	return NewEncryptedHistory(dataDir, key)
}

// Ensure EncryptedHistory implements domain.TerminationStore.
var _ domain.TerminationStore = (*EncryptedHistory)(nil)
