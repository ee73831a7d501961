// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"ynote/internal/service"
)

const (
	// DateLayout is how note dates are shown.
	DateLayout = "2006-01-02"

	// EmptyHint is printed instead of an empty note list.
	EmptyHint = "no notes yet (add one with: ynote add <text>)"

	importantMarker = "[!] "
)

// FormatNote formats a note line for the list.
// Format: "{N:>4}  [!] {CONTENT}  ({DATE})\n", the marker only on important notes.
func FormatNote(w io.Writer, num int, note service.Note) {
	marker := ""
	if note.Important {
		marker = importantMarker
	}
	content := normalizeContent(note.Content)
	if note.Date.IsZero() {
		fmt.Fprintf(w, "%4d  %s%s\n", num, marker, content)
		return
	}
	fmt.Fprintf(w, "%4d  %s%s  (%s)\n", num, marker, content, note.Date.Local().Format(DateLayout))
}

// FormatNotes formats the whole list, numbered from 1, or the empty hint.
func FormatNotes(w io.Writer, notes []service.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, EmptyHint)
		return
	}
	for i, n := range notes {
		FormatNote(w, i+1, n)
	}
}

// FormatUser formats the signed-in user for whoami.
func FormatUser(w io.Writer, u service.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
	if u.Verified {
		fmt.Fprintln(w, "email verified")
		return
	}
	fmt.Fprintln(w, "email not verified")
	if !u.LastVerificationEmail.IsZero() {
		fmt.Fprintf(w, "verification email last sent %s\n", u.LastVerificationEmail.Local().Format("2006-01-02 15:04"))
	}
}

// normalizeContent normalizes note content for a single display line.
// - Empty or whitespace-only content becomes "(empty)"
// - Newlines are replaced with spaces
func normalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r", " ")
	content = strings.ReplaceAll(content, "\n", " ")

	if strings.TrimSpace(content) == "" {
		return "(empty)"
	}
	return content
}
