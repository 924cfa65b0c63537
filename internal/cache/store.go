// Package cache is a small SQLite-backed key/value store with per-entry expiry.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrMiss is returned when a key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

const (
	encodingJSON    = "json"
	encodingMsgpack = "msgpack"
)

// Store provides key/value storage with expiration on the cache database.
type Store struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewStore creates a store on a migrated cache database connection.
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		now: time.Now,
		log: log.With().Str("component", "cache_store").Logger(),
	}
}

// SetJSON stores value encoded as JSON for ttl.
func (s *Store) SetJSON(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s as JSON: %w", key, err)
	}
	return s.put(key, data, encodingJSON, ttl)
}

// GetJSON decodes a live JSON entry into dest. Returns ErrMiss for missing or
// expired keys.
func (s *Store) GetJSON(key string, dest interface{}) error {
	data, err := s.get(key, encodingJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// SetMsgpack stores value encoded as MessagePack for ttl. Used for bulky
// numeric payloads such as price matrices.
func (s *Store) SetMsgpack(key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s as msgpack: %w", key, err)
	}
	return s.put(key, data, encodingMsgpack, ttl)
}

// GetMsgpack decodes a live MessagePack entry into dest.
func (s *Store) GetMsgpack(key string, dest interface{}) error {
	data, err := s.get(key, encodingMsgpack)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(key string, data []byte, encoding string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache ttl for %s must be positive, got %s", key, ttl)
	}
	now := s.now()
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (key, value, encoding, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encoding = excluded.encoding,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`, key, data, encoding, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key, encoding string) ([]byte, error) {
	var (
		data      []byte
		stored    string
		expiresAt int64
	)
	err := s.db.QueryRow(
		"SELECT value, encoding, expires_at FROM cache_entries WHERE key = ?", key,
	).Scan(&data, &stored, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	if s.now().Unix() >= expiresAt {
		return nil, ErrMiss
	}
	if stored != encoding {
		return nil, fmt.Errorf("cache entry %s is %s encoded, not %s", key, stored, encoding)
	}
	return data, nil
}

// ExpiresAt returns the expiry of a key, or false if the key does not exist.
// Does not check if expired.
func (s *Store) ExpiresAt(key string) (time.Time, bool) {
	var expiresAt int64
	err := s.db.QueryRow("SELECT expires_at FROM cache_entries WHERE key = ?", key).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(expiresAt, 0), true
}

// Extend pushes the expiry of an existing entry out by d, counted from its
// current expiry. Missing keys are ignored.
func (s *Store) Extend(key string, d time.Duration) error {
	_, err := s.db.Exec(
		"UPDATE cache_entries SET expires_at = expires_at + ? WHERE key = ?",
		int64(d.Seconds()), key,
	)
	if err != nil {
		return fmt.Errorf("failed to extend cache entry %s: %w", key, err)
	}
	return nil
}

// Delete removes a cache entry.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all entries whose key starts with prefix.
func (s *Store) DeleteByPrefix(prefix string) (int64, error) {
	res, err := s.db.Exec(
		"DELETE FROM cache_entries WHERE substr(key, 1, ?) = ?", len(prefix), prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache prefix %s: %w", prefix, err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes every expired entry and returns how many were removed.
func (s *Store) DeleteExpired() (int64, error) {
	res, err := s.db.Exec("DELETE FROM cache_entries WHERE expires_at <= ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug().Int64("removed", n).Msg("Removed expired cache entries")
	}
	return n, nil
}

// Count returns the number of stored entries, expired or not.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cache_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
