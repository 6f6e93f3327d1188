package shell

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/minirel/minirel/pkg/types"
)

var (
	primaryColor = lipgloss.Color("#8B5CF6")
	accentColor  = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#94A3B8")
)

// renderer formats shell output. With color disabled every style is a
// no-op so output is plain text.
type renderer struct {
	color bool

	header  lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
	title   lipgloss.Style
	ruleSep string
}

func newRenderer(color bool) *renderer {
	r := &renderer{color: color, ruleSep: "-+-"}
	if !color {
		plain := lipgloss.NewStyle()
		r.header, r.ok, r.err, r.muted, r.title = plain, plain, plain, plain, plain
		return r
	}
	r.header = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	r.ok = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	r.err = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	r.muted = lipgloss.NewStyle().Foreground(mutedColor)
	r.title = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	return r
}

func (r *renderer) render(st lipgloss.Style, s string) string {
	if !r.color {
		return s
	}
	return st.Render(s)
}

// table lays out rows under a header, columns padded to their widest cell
// and separated by " | ".
func (r *renderer) table(rs *types.ResultSet) string {
	if rs.Len() == 0 {
		return r.render(r.muted, "(no rows)")
	}

	widths := make([]int, len(rs.Columns))
	cells := make([][]string, rs.Len())
	for j, c := range rs.Columns {
		widths[j] = lipgloss.Width(c)
	}
	for i := range cells {
		vals := rs.Row(i)
		cells[i] = make([]string, len(vals))
		for j, v := range vals {
			cells[i][j] = v.String()
			if w := lipgloss.Width(cells[i][j]); w > widths[j] {
				widths[j] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(r.render(r.header, r.line(rs.Columns, widths)))
	b.WriteByte('\n')

	rule := make([]string, len(widths))
	for j, w := range widths {
		rule[j] = strings.Repeat("-", w)
	}
	b.WriteString(r.render(r.muted, strings.Join(rule, r.ruleSep)))

	for _, row := range cells {
		b.WriteByte('\n')
		b.WriteString(r.line(row, widths))
	}
	return b.String()
}

func (r *renderer) line(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for j, c := range cells {
		padded[j] = c + strings.Repeat(" ", widths[j]-lipgloss.Width(c))
	}
	return strings.TrimRight(strings.Join(padded, " | "), " ")
}
