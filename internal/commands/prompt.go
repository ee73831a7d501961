package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads lines and passwords from one input. Passwords are read
// without echo when the input is a terminal.
type prompter struct {
	lines  *bufio.Scanner
	fd     int
	isTerm bool
	errOut io.Writer
}

func newPrompter(in io.Reader, errOut io.Writer) *prompter {
	if in == nil {
		in = os.Stdin
	}
	p := &prompter{lines: bufio.NewScanner(in), fd: -1, errOut: errOut}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// Line returns the next input line without its newline.
func (p *prompter) Line() (string, bool) {
	if !p.lines.Scan() {
		return "", false
	}
	return p.lines.Text(), true
}

// Err returns the first non-EOF read error.
func (p *prompter) Err() error {
	return p.lines.Err()
}

// Password prompts with label and reads a password.
func (p *prompter) Password(label string) (string, error) {
	if p.isTerm {
		fmt.Fprint(p.errOut, label)
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.errOut)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, ok := p.Line()
	if !ok {
		if err := p.lines.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimRight(line, "\r"), nil
}

var errPasswordMismatch = errors.New("passwords do not match")

// NewPassword reads a password twice and checks both entries match.
func (p *prompter) NewPassword(label string) (string, error) {
	pw, err := p.Password(label + ": ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("password required")
	}
	again, err := p.Password("Repeat " + strings.ToLower(label) + ": ")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errPasswordMismatch
	}
	return pw, nil
}
