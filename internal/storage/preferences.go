package storage

import (
	"database/sql"
	"errors"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/justyntemme/quotebook/internal/models"
)

// MaxRecentLanguages bounds the recently used language list
const MaxRecentLanguages = 8

const preferredLanguageKey = "preferred_language"

// Preferences is a small SQLite-backed settings store
type Preferences struct {
	db *sql.DB
}

// NewPreferences opens (or creates) the preferences database
func NewPreferences(dbPath string) (*Preferences, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	p := &Preferences{db: db}
	if err := p.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return p, nil
}

func (p *Preferences) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS recent_languages (
		code TEXT PRIMARY KEY,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recent_languages_seq ON recent_languages(seq);
	`

	_, err := p.db.Exec(schema)
	return err
}

// Get returns the stored value for key and whether it exists
func (p *Preferences) Get(key string) (string, bool, error) {
	var value string
	err := p.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key
func (p *Preferences) Set(key, value string) error {
	_, err := p.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	return err
}

// Delete removes key
func (p *Preferences) Delete(key string) error {
	_, err := p.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// PreferredLanguage returns the last chosen search language, Any if unset
func (p *Preferences) PreferredLanguage() (models.LanguagePreference, error) {
	value, _, err := p.Get(preferredLanguageKey)
	if err != nil {
		return models.AnyLanguage, err
	}
	return models.ParseLanguage(value), nil
}

// SetPreferredLanguage stores the search language filter
func (p *Preferences) SetPreferredLanguage(pref models.LanguagePreference) error {
	return p.Set(preferredLanguageKey, pref.RestrictValue())
}

// Close closes the database connection
func (p *Preferences) Close() error {
	return p.db.Close()
}

// RecentLanguages is the most-recent-first list of language codes the user picked
type RecentLanguages struct {
	db *sql.DB
}

// NewRecentLanguages returns the recent language list stored in prefs
func NewRecentLanguages(prefs *Preferences) *RecentLanguages {
	return &RecentLanguages{db: prefs.db}
}

// Load returns the stored codes, most recent first
func (r *RecentLanguages) Load() ([]string, error) {
	rows, err := r.db.Query(`SELECT code FROM recent_languages ORDER BY seq DESC LIMIT ?`, MaxRecentLanguages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Add moves code to the front, case-insensitively, and drops the oldest
// entries beyond MaxRecentLanguages. Blank codes are ignored.
func (r *RecentLanguages) Add(code string) error {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO recent_languages (code, seq)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_languages))
		ON CONFLICT(code) DO UPDATE SET seq = excluded.seq`, code)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		DELETE FROM recent_languages WHERE code NOT IN (
			SELECT code FROM recent_languages ORDER BY seq DESC LIMIT ?
		)`, MaxRecentLanguages)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Clear empties the list
func (r *RecentLanguages) Clear() error {
	_, err := r.db.Exec(`DELETE FROM recent_languages`)
	return err
}
