// Package cli implements the reldb command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/types"
)

type OutputMode int

const (
	ModeTTY OutputMode = iota
	ModePlain
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	nullStyle   = lipgloss.NewStyle().Faint(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// DetectMode picks styled output for terminals unless NO_COLOR or TERM=dumb
// is set.
func DetectMode(f *os.File) OutputMode {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeTTY
	}
	return ModePlain
}

type printer struct {
	mode OutputMode
	w    io.Writer
}

func (p printer) style(s lipgloss.Style, text string) string {
	if p.mode == ModeTTY {
		return s.Render(text)
	}
	return text
}

func (p printer) payloads(payloads []query.Payload) {
	for _, pl := range payloads {
		switch pl.Kind {
		case query.PayloadSelect:
			p.table(pl.Columns, pl)
		case query.PayloadInsert:
			fmt.Fprintln(p.w, p.style(okStyle, fmt.Sprintf("INSERT %d", pl.Affected)))
		default:
			fmt.Fprintln(p.w, p.style(okStyle, fmt.Sprintf("%s %s", pl.Kind, pl.Table)))
		}
	}
}

func (p printer) errorf(err error) {
	fmt.Fprintln(p.w, p.style(errStyle, "error:"), err)
}

func cell(v types.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return v.String()
}

// table prints rows as aligned columns. Widths are computed on plain text so
// styling does not skew alignment.
func (p printer) table(columns []string, pl query.Payload) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, row := range pl.Rows {
		for i, v := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell(v)))
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-lipgloss.Width(s))
	}

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = p.style(headerStyle, pad(c, widths[i]))
	}
	fmt.Fprintln(p.w, strings.TrimRight(strings.Join(header, " | "), " "))

	sep := make([]string, len(columns))
	for i := range columns {
		sep[i] = strings.Repeat("-", widths[i])
	}
	fmt.Fprintln(p.w, strings.Join(sep, "-+-"))

	for _, row := range pl.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			text := pad(cell(v), widths[i])
			if v.IsNull() {
				text = p.style(nullStyle, text)
			}
			cells[i] = text
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, " | "), " "))
	}

	fmt.Fprintf(p.w, "(%d rows)\n", len(pl.Rows))
}
