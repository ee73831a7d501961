package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"ynote/internal/notice"
)

// NoticePrinter renders notices and snackbar lines. It is safe for
// concurrent use; background delete confirmations print through it.
type NoticePrinter struct {
	mu sync.Mutex
	w  io.Writer

	infoStyle  lipgloss.Style
	errorStyle lipgloss.Style
	warnStyle  lipgloss.Style
	bodyStyle  lipgloss.Style
	snackStyle lipgloss.Style
	hintStyle  lipgloss.Style
}

// NewNoticePrinter creates a printer writing to w. Colors are used only
// when w is a terminal that supports them.
func NewNoticePrinter(w io.Writer) *NoticePrinter {
	r := lipgloss.NewRenderer(w)
	return &NoticePrinter{
		w:          w,
		infoStyle:  r.NewStyle().Foreground(lipgloss.Color("29")).Bold(true),
		errorStyle: r.NewStyle().Foreground(lipgloss.Color("160")).Bold(true),
		warnStyle:  r.NewStyle().Foreground(lipgloss.Color("136")).Bold(true),
		bodyStyle:  r.NewStyle().Foreground(lipgloss.Color("245")),
		snackStyle: r.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true),
		hintStyle:  r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Notify implements notice.Sink.
func (p *NoticePrinter) Notify(n notice.Notice) {
	var title string
	switch n.Kind {
	case notice.Error:
		title = p.errorStyle.Render("error: " + n.Title)
	case notice.Inconsistent:
		title = p.warnStyle.Render("warning: " + n.Title)
	default:
		title = p.infoStyle.Render(n.Title)
	}

	var b strings.Builder
	if n.Title != "" {
		b.WriteString(title)
		b.WriteByte('\n')
	}
	if body := strings.TrimSpace(n.Body); body != "" {
		for _, line := range strings.Split(body, "\n") {
			b.WriteString("  ")
			b.WriteString(p.bodyStyle.Render(line))
			b.WriteByte('\n')
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.w, b.String())
}

// Snackbar prints a transient message with an optional action hint.
func (p *NoticePrinter) Snackbar(msg, hint string) {
	line := p.snackStyle.Render(" " + msg + " ")
	if hint != "" {
		line += "  " + p.hintStyle.Render(hint)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}
