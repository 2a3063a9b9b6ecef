package settings

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/annsts/underlay/internal/player"
)

// Store persists panel credentials, login sessions and playback
// settings across restarts.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite only supports one writer at a time; limit pool to 1 connection
	// to avoid SQLITE_BUSY under concurrent web handler access.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expiry DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- users ---

// EnsureAdmin creates the panel user, or updates its password when it
// already exists.
func (s *Store) EnsureAdmin(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE users SET password_hash = ? WHERE username = ?`,
		string(hash), username,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, string(hash),
	)
	return err
}

// Authenticate checks credentials and returns the user ID, or 0 when
// they don't match.
func (s *Store) Authenticate(username, password string) (int64, error) {
	var id int64
	var hash string
	err := s.db.QueryRow(
		`SELECT id, password_hash FROM users WHERE username = ?`,
		username,
	).Scan(&id, &hash)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return 0, nil
	}
	return id, nil
}

// --- login sessions ---

type Session struct {
	UserID int64
	Expiry time.Time
}

func (s *Store) SaveSession(token string, userID int64, expiry time.Time) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO sessions (token, user_id, expiry) VALUES (?, ?, ?)",
		token, userID, expiry.Format(time.RFC3339))
	return err
}

// LoadSessions returns all non-expired login sessions.
func (s *Store) LoadSessions() (map[string]*Session, error) {
	rows, err := s.db.Query("SELECT token, user_id, expiry FROM sessions WHERE expiry > datetime('now', 'localtime')")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]*Session)
	for rows.Next() {
		var token string
		var userID int64
		var expiryStr string
		if err := rows.Scan(&token, &userID, &expiryStr); err != nil {
			continue
		}
		t, _ := time.Parse(time.RFC3339, expiryStr)
		result[token] = &Session{UserID: userID, Expiry: t}
	}
	return result, nil
}

func (s *Store) DeleteSession(token string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

func (s *Store) CleanExpiredSessions() {
	s.db.Exec("DELETE FROM sessions WHERE expiry <= datetime('now', 'localtime')")
}

// --- settings ---

func (s *Store) get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Seed returns the persistent generation seed, drawing and storing a
// fresh one on first use so restarts keep the same musical identity.
func (s *Store) Seed() (int32, error) {
	v, ok, err := s.get("seed")
	if err != nil {
		return 0, err
	}
	if ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err == nil {
			return int32(n), nil
		}
		// fall through and replace a corrupt value
	}
	seed := rand.Int31()
	if err := s.set("seed", strconv.FormatInt(int64(seed), 10)); err != nil {
		return 0, err
	}
	return seed, nil
}

func (s *Store) SaveVolume(v int) error {
	return s.set("volume", strconv.Itoa(v))
}

func (s *Store) Volume() (int, bool) {
	v, ok, err := s.get("volume")
	if err != nil || !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Store) SaveAutoReconnect(on bool) error {
	return s.set("auto_reconnect", strconv.FormatBool(on))
}

func (s *Store) AutoReconnect() (bool, bool) {
	v, ok, err := s.get("auto_reconnect")
	if err != nil || !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func (s *Store) SaveLayers(layers []player.Layer) error {
	data, err := json.Marshal(layers)
	if err != nil {
		return err
	}
	return s.set("layers", string(data))
}

func (s *Store) Layers() ([]player.Layer, bool) {
	v, ok, err := s.get("layers")
	if err != nil || !ok {
		return nil, false
	}
	var layers []player.Layer
	if err := json.Unmarshal([]byte(v), &layers); err != nil {
		return nil, false
	}
	return layers, true
}

func (s *Store) SaveConfig(cfg player.GlobalConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.set("config", string(data))
}

func (s *Store) Config() (player.GlobalConfig, bool) {
	v, ok, err := s.get("config")
	if err != nil || !ok {
		return player.GlobalConfig{}, false
	}
	var cfg player.GlobalConfig
	if err := json.Unmarshal([]byte(v), &cfg); err != nil {
		return player.GlobalConfig{}, false
	}
	return cfg, true
}
