package testutil

import (
	"errors"
	"sync"
)

// MemLocal is an in-memory state.Local.
type MemLocal struct {
	mu      sync.Mutex
	raw     []byte
	cookies int

	// SaveErr, when set, is returned by SaveUser.
	SaveErr error
}

// SaveUser stores raw.
func (m *MemLocal) SaveUser(raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if len(raw) == 0 {
		return errors.New("user record is empty")
	}
	m.raw = append([]byte(nil), raw...)
	return nil
}

// LoadUser returns the stored record.
func (m *MemLocal) LoadUser() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raw == nil {
		return nil, false, nil
	}
	return append([]byte(nil), m.raw...), true, nil
}

// RemoveUser drops the stored record.
func (m *MemLocal) RemoveUser() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = nil
	return nil
}

// ClearCookies counts cookie clears.
func (m *MemLocal) ClearCookies() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies++
	return nil
}

// CookieClears returns how many times ClearCookies was called.
func (m *MemLocal) CookieClears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cookies
}

// Raw returns the stored record, or nil.
func (m *MemLocal) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw
}
