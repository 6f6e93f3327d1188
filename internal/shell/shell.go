// Package shell implements the interactive line-oriented front end.
// Statements may span several lines and run once a line contains ';'.
// Lines starting with '.' outside a statement are meta-commands.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minirel/minirel/internal/engine"
	"github.com/minirel/minirel/internal/errors"
)

const (
	// DefaultPrompt is shown when no statement is pending.
	DefaultPrompt = "minirel> "
	// ContinuationPrompt is shown while a statement is incomplete.
	ContinuationPrompt = "   ...> "
)

const helpText = `Supported statements:
  CREATE TABLE, INSERT, SELECT, UPDATE, DELETE, simple INNER JOIN
Meta commands:
  .help                 show this message
  .tables               list tables
  .stats                show statement statistics
  .fingerprint <table>  print the content digest of a table
  .quit, .exit          leave the shell`

// Shell reads statements from in and writes results to out. It drives the
// engine directly and must be its only caller.
type Shell struct {
	engine *engine.Engine
	in     io.Reader
	out    io.Writer

	prompt     string
	contPrompt string
	banner     bool
	render     *renderer
}

// Option configures a Shell.
type Option func(*Shell)

// WithPrompt replaces the primary prompt.
func WithPrompt(p string) Option {
	return func(s *Shell) { s.prompt = p }
}

// WithColor enables styled output.
func WithColor(on bool) Option {
	return func(s *Shell) { s.render = newRenderer(on) }
}

// WithBanner controls the greeting printed by Run.
func WithBanner(on bool) Option {
	return func(s *Shell) { s.banner = on }
}

// New creates a shell over e.
func New(e *engine.Engine, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		engine:     e,
		in:         in,
		out:        out,
		prompt:     DefaultPrompt,
		contPrompt: ContinuationPrompt,
		banner:     true,
		render:     newRenderer(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes input until EOF, a quit command or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	if s.banner {
		s.println(s.render.render(s.render.title, "minirel in-memory relational engine"))
		s.println("Type statements terminated by ';'.")
		s.println("Meta-commands: .help  .tables  .quit")
	}

	scanner := bufio.NewScanner(s.in)
	var buffer []string

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(buffer) == 0 {
			fmt.Fprint(s.out, s.prompt)
		} else {
			fmt.Fprint(s.out, s.contPrompt)
		}

		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimRight(scanner.Text(), " \t\r")

		if len(buffer) == 0 && strings.HasPrefix(strings.TrimSpace(line), ".") {
			if quit := s.meta(strings.TrimSpace(line)); quit {
				return nil
			}
			continue
		}

		buffer = append(buffer, line)
		if !strings.Contains(line, ";") {
			continue
		}

		statement := strings.Join(buffer, " ")
		buffer = buffer[:0]
		s.execute(statement)
	}
}

func (s *Shell) execute(statement string) {
	res, err := s.engine.Execute(statement)
	if err != nil {
		s.println(s.render.render(s.render.err, "Error: "+errors.Message(err)))
		return
	}
	s.printResult(res)
}

func (s *Shell) printResult(res *engine.Result) {
	switch res.Kind {
	case engine.ResultRows:
		rs := res.ResultSet()
		s.println(s.render.table(rs))
		s.println(fmt.Sprintf("(%d rows)", rs.Len()))
	case engine.ResultRowID:
		s.println(s.render.render(s.render.ok, fmt.Sprintf("Inserted row id %d", res.RowID)))
	case engine.ResultCount:
		s.println(fmt.Sprintf("%d rows affected", res.Affected))
	default:
		s.println(s.render.render(s.render.ok, "OK"))
	}
}

// meta runs one meta-command and reports whether the shell should exit.
func (s *Shell) meta(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".quit", ".exit":
		return true
	case ".help":
		s.println(helpText)
	case ".tables":
		s.tables()
	case ".stats":
		s.stats()
	case ".fingerprint":
		if len(fields) != 2 {
			s.println(s.render.render(s.render.err, "Error: usage: .fingerprint <table>"))
			break
		}
		tbl, err := s.engine.Table(fields[1])
		if err != nil {
			s.println(s.render.render(s.render.err, "Error: "+errors.Message(err)))
			break
		}
		s.println(tbl.Fingerprint())
	default:
		s.println(s.render.render(s.render.err, "Unknown meta-command: "+line))
	}
	return false
}

func (s *Shell) tables() {
	names := s.engine.TableNames()
	if len(names) == 0 {
		s.println(s.render.render(s.render.muted, "(no tables)"))
		return
	}
	for _, name := range names {
		tbl, err := s.engine.Table(name)
		if err != nil {
			continue
		}
		cols := make([]string, 0, len(tbl.Columns()))
		for _, c := range tbl.Columns() {
			cols = append(cols, c.String())
		}
		s.println(fmt.Sprintf("%s (%s)", s.render.render(s.render.header, name), strings.Join(cols, ", ")))
	}
}

func (s *Shell) stats() {
	st := s.engine.Stats()
	if st == nil {
		s.println(s.render.render(s.render.muted, "(stats disabled)"))
		return
	}
	snap := st.Snapshot(5)
	if len(snap.Statements) == 0 {
		s.println(s.render.render(s.render.muted, "(no statements yet)"))
		return
	}
	for _, k := range snap.Statements {
		s.println(fmt.Sprintf("%-7s executed=%d failed=%d", k.Kind, k.Executed, k.Failed))
	}
	for _, p := range snap.TopPredicates {
		s.println(fmt.Sprintf("where %s.%s frequency=%d index_hits=%d scans=%d",
			p.Table, p.Column, p.Frequency, p.IndexHits, p.Scans))
	}
}

func (s *Shell) println(line string) {
	fmt.Fprintln(s.out, line)
}
