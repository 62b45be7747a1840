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

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	prefsDBName = "prefs.db"
)

// EncryptedPrefs implements domain.PrefsStore and domain.KickHistory
// using a SQLCipher encrypted SQLite database.
type EncryptedPrefs struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedPrefs opens (or creates) the encrypted preferences database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedPrefs(dataDir string, key []byte) (*EncryptedPrefs, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, prefsDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only shows up on the first real query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	p := &EncryptedPrefs{
		db:     db,
		dbPath: dbPath,
	}

	if err := p.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return p, nil
}

// createTables creates the schema if it doesn't exist.
func (p *EncryptedPrefs) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kick_history (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL,
		tracked_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT DEFAULT '',
		kicked_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kick_history_kicked_at ON kick_history (kicked_at);
	`
	_, err := p.db.Exec(schema)
	return err
}

// --- domain.PrefsStore implementation ---

// Get returns the stored value for key.
func (p *EncryptedPrefs) Get(key string) (string, bool, error) {
	var value string
	err := p.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores a value.
func (p *EncryptedPrefs) Set(key, value string) error {
	now := time.Now().Unix()
	_, err := p.db.Exec(`INSERT OR REPLACE INTO prefs (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, now)
	return err
}

// --- domain.KickHistory implementation ---

// RecordKick appends a kick record.
func (p *EncryptedPrefs) RecordKick(rec domain.KickRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := p.db.Exec(`
		INSERT INTO kick_history (id, app_id, tracked_ms, success, error, kicked_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AppID, rec.TrackedFor.Milliseconds(), success, rec.Error, rec.At.UnixMilli(),
	)
	return err
}

// RecentKicks returns up to limit records, newest first.
func (p *EncryptedPrefs) RecentKicks(limit int) ([]domain.KickRecord, error) {
	rows, err := p.db.Query(`
		SELECT id, app_id, tracked_ms, success, error, kicked_at
		FROM kick_history ORDER BY kicked_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.KickRecord
	for rows.Next() {
		var rec domain.KickRecord
		var trackedMs, kickedAt int64
		var success int
		if err := rows.Scan(&rec.ID, &rec.AppID, &trackedMs, &success, &rec.Error, &kickedAt); err != nil {
			return nil, err
		}
		rec.TrackedFor = time.Duration(trackedMs) * time.Millisecond
		rec.Success = success == 1
		rec.At = time.UnixMilli(kickedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (p *EncryptedPrefs) Path() string {
	return p.dbPath
}

// Close releases the database connection.
func (p *EncryptedPrefs) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ensure EncryptedPrefs implements both interfaces.
var _ domain.PrefsStore = (*EncryptedPrefs)(nil)
var _ domain.KickHistory = (*EncryptedPrefs)(nil)
