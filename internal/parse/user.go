// Package parse converts untyped payloads into validated domain records.
//
// Validation is all-or-nothing: a record either passes every check or the
// caller gets a *FieldError naming the first offending field. Partially
// populated values are never returned.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ynote/internal/service"
)

// ErrMalformed matches every validation failure produced by this package.
var ErrMalformed = errors.New("malformed record")

// FieldError reports a missing or mistyped field.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("incorrect or missing %s: %v (%s)", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrMalformed) match any field error.
func (e *FieldError) Is(target error) bool {
	return target == ErrMalformed
}

// ParseUser decodes a serialized user record and validates it.
func ParseUser(data []byte) (service.User, error) {
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return service.User{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if record == nil {
		return service.User{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return UserFromRecord(record)
}

// UserFromRecord validates an untyped user record.
func UserFromRecord(record map[string]any) (service.User, error) {
	id, err := requireString(record, "id")
	if err != nil {
		return service.User{}, err
	}
	email, err := requireString(record, "email")
	if err != nil {
		return service.User{}, err
	}
	name, err := requireString(record, "name")
	if err != nil {
		return service.User{}, err
	}
	verified, err := requireBool(record, "verified")
	if err != nil {
		return service.User{}, err
	}
	lastEmail, err := requireDate(record, "lastVerificationEmail")
	if err != nil {
		return service.User{}, err
	}
	token, err := optionalString(record, "token")
	if err != nil {
		return service.User{}, err
	}

	return service.User{
		ID:                    id,
		Email:                 email,
		Name:                  name,
		Verified:              verified,
		LastVerificationEmail: lastEmail,
		Token:                 token,
	}, nil
}

func requireString(record map[string]any, field string) (string, error) {
	v, ok := record[field]
	if !ok {
		return "", &FieldError{Field: field, Value: nil, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Field: field, Value: v, Reason: "not a string"}
	}
	if strings.TrimSpace(s) == "" {
		return "", &FieldError{Field: field, Value: s, Reason: "empty"}
	}
	return s, nil
}

func optionalString(record map[string]any, field string) (string, error) {
	v, ok := record[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Field: field, Value: v, Reason: "not a string"}
	}
	return s, nil
}

func requireBool(record map[string]any, field string) (bool, error) {
	v, ok := record[field]
	if !ok {
		return false, &FieldError{Field: field, Value: nil, Reason: "missing"}
	}
	b, ok := v.(bool)
	if !ok {
		return false, &FieldError{Field: field, Value: v, Reason: "not a boolean"}
	}
	return b, nil
}

func requireDate(record map[string]any, field string) (time.Time, error) {
	s, err := requireString(record, field)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &FieldError{Field: field, Value: s, Reason: "not a date"}
	}
	return t, nil
}
