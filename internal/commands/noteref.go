package commands

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"ynote/internal/service"
)

// ErrNoteRefRequired indicates no note reference was provided.
var ErrNoteRefRequired = errors.New("note reference required")

// ParseNoteRef parses a 1-based note number from the first argument.
func ParseNoteRef(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrNoteRefRequired
	}
	ref := args[0]
	if !isAllDigits(ref) {
		return 0, fmt.Errorf("invalid note reference: %s", ref)
	}
	num, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid note reference: %s", ref)
	}
	return num, nil
}

// findNoteByNumber returns the num-th note (1-based) as listed.
func findNoteByNumber(notes []service.Note, num int) (service.Note, error) {
	if num < 1 || num > len(notes) {
		return service.Note{}, fmt.Errorf("note number out of range: %d", num)
	}
	return notes[num-1], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
