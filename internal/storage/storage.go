// Package storage persists the client's local state in a bbolt file.
//
// It holds exactly one serialized user record under a fixed key, plus the
// session cookies for the API origin.
package storage

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketLocal   = []byte("local")
	bucketCookies = []byte("cookies")
	keyUser       = []byte("user")
)

// DB is the durable local store.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketLocal); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketCookies)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

// Close releases the file lock.
func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveUser stores the serialized user record, replacing any previous one.
func (s *DB) SaveUser(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("user record is empty")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocal).Put(keyUser, raw)
	})
}

// LoadUser returns the stored user record. ok is false when nothing is stored.
// The bytes are returned as-is; callers must validate them.
func (s *DB) LoadUser() (raw []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLocal).Get(keyUser)
		if len(v) == 0 {
			return nil
		}
		raw = append([]byte(nil), v...)
		ok = true
		return nil
	})
	return raw, ok, err
}

// RemoveUser deletes the stored user record.
func (s *DB) RemoveUser() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocal).Delete(keyUser)
	})
}

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// SaveCookies replaces the cookies stored for origin.
func (s *DB) SaveCookies(origin string, cookies []*http.Cookie) error {
	out := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		out = append(out, storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCookies).Put([]byte(origin), raw)
	})
}

// LoadCookies returns the cookies stored for origin, dropping expired ones.
func (s *DB) LoadCookies(origin string) ([]*http.Cookie, error) {
	var stored []storedCookie
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCookies).Get([]byte(origin))
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, &stored)
	})
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out, nil
}

// ClearCookies drops every stored cookie.
func (s *DB) ClearCookies() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketCookies); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketCookies)
		return err
	})
}
