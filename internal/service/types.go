package service

import (
	"bytes"
	"encoding/json"
	"time"
)

// User is the signed-in account.
type User struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	Name                  string    `json:"name"`
	Verified              bool      `json:"verified"`
	LastVerificationEmail time.Time `json:"lastVerificationEmail"`
	Token                 string    `json:"token,omitempty"`
}

// Note is a short text note.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Important bool      `json:"importance"`
	Date      time.Time `json:"date"`
	User      NoteOwner `json:"user"`
}

// NoteDraft carries the user-editable fields of a note.
type NoteDraft struct {
	Content   string `json:"content"`
	Important bool   `json:"importance"`
}

// Draft returns the editable part of n.
func (n Note) Draft() NoteDraft {
	return NoteDraft{Content: n.Content, Important: n.Important}
}

// NewUser is the registration payload.
type NewUser struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Credentials identify a user at login.
type Credentials struct {
	Email    string
	Password string
}

// NoteOwner references the user owning a note. The server sends either
// the full user object or just its ID.
type NoteOwner struct {
	ID   string
	User *User
}

// UnmarshalJSON accepts a user object, a bare ID string or null.
func (o *NoteOwner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = NoteOwner{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*o = NoteOwner{ID: id}
		return nil
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*o = NoteOwner{ID: u.ID, User: &u}
	return nil
}

// MarshalJSON writes the full user when known, otherwise the ID.
func (o NoteOwner) MarshalJSON() ([]byte, error) {
	if o.User != nil {
		return json.Marshal(o.User)
	}
	if o.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(o.ID)
}
