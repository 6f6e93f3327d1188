package parser

import (
	"strings"

	"github.com/minirel/minirel/pkg/types"
)

// Statement represents a parsed statement.
type Statement interface {
	statementNode()
	String() string
}

// Kind returns a short upper-case label for the statement type.
func Kind(stmt Statement) string {
	switch stmt.(type) {
	case *CreateTableStatement:
		return "CREATE"
	case *InsertStatement:
		return "INSERT"
	case *SelectStatement:
		return "SELECT"
	case *JoinStatement:
		return "JOIN"
	case *UpdateStatement:
		return "UPDATE"
	case *DeleteStatement:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// CreateTableStatement represents CREATE TABLE name (col type [PRIMARY KEY] [UNIQUE], ...).
type CreateTableStatement struct {
	Name    string
	Columns []types.ColumnDef
}

func (s *CreateTableStatement) statementNode() {}

// String returns the statement text.
func (s *CreateTableStatement) String() string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		def := c.Name + " " + string(c.Type)
		switch {
		case c.PrimaryKey:
			def += " PRIMARY KEY"
		case c.Unique:
			def += " UNIQUE"
		}
		defs[i] = def
	}
	return "CREATE TABLE " + s.Name + " (" + strings.Join(defs, ", ") + ")"
}

// InsertStatement represents INSERT INTO name (cols) VALUES (vals).
// Values are raw literals: string, int64 or nil.
type InsertStatement struct {
	Table   string
	Columns []string
	Values  []interface{}
}

func (s *InsertStatement) statementNode() {}

// Record pairs each column with its literal.
func (s *InsertStatement) Record() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Columns))
	for i, c := range s.Columns {
		out[c] = s.Values[i]
	}
	return out
}

// String returns the statement text.
func (s *InsertStatement) String() string {
	vals := make([]string, len(s.Values))
	for i, v := range s.Values {
		vals[i] = types.FormatLiteral(v)
	}
	return "INSERT INTO " + s.Table + " (" + types.JoinNames(s.Columns) + ") VALUES (" + strings.Join(vals, ", ") + ")"
}

// SelectStatement represents SELECT cols FROM table [WHERE col = value].
// A nil Columns slice means *.
type SelectStatement struct {
	Table   string
	Columns []string
	Where   *types.Predicate
}

func (s *SelectStatement) statementNode() {}

// String returns the statement text.
func (s *SelectStatement) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.Columns == nil {
		sb.WriteString("*")
	} else {
		sb.WriteString(types.JoinNames(s.Columns))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(s.Table)
	writeWhere(&sb, s.Where)
	return sb.String()
}

// JoinStatement represents
// SELECT l.a, r.b FROM l INNER JOIN r ON l.x = r.y.
type JoinStatement struct {
	Columns     []types.QualifiedColumn
	Left        string
	Right       string
	LeftColumn  string
	RightColumn string
}

func (s *JoinStatement) statementNode() {}

// String returns the statement text.
func (s *JoinStatement) String() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.String()
	}
	return "SELECT " + strings.Join(cols, ", ") +
		" FROM " + s.Left + " INNER JOIN " + s.Right +
		" ON " + s.Left + "." + s.LeftColumn + " = " + s.Right + "." + s.RightColumn
}

// Assignment is a single col = value pair in an UPDATE.
type Assignment struct {
	Column string
	Value  interface{}
}

// UpdateStatement represents UPDATE table SET c = v, ... [WHERE col = value].
type UpdateStatement struct {
	Table       string
	Assignments []Assignment
	Where       *types.Predicate
}

func (s *UpdateStatement) statementNode() {}

// Values returns the assignments as a column→literal mapping.
func (s *UpdateStatement) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Assignments))
	for _, a := range s.Assignments {
		out[a.Column] = a.Value
	}
	return out
}

// String returns the statement text.
func (s *UpdateStatement) String() string {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(s.Table)
	sb.WriteString(" SET ")
	for i, a := range s.Assignments {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Column)
		sb.WriteString(" = ")
		sb.WriteString(types.FormatLiteral(a.Value))
	}
	writeWhere(&sb, s.Where)
	return sb.String()
}

// DeleteStatement represents DELETE FROM table [WHERE col = value].
type DeleteStatement struct {
	Table string
	Where *types.Predicate
}

func (s *DeleteStatement) statementNode() {}

// String returns the statement text.
func (s *DeleteStatement) String() string {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(s.Table)
	writeWhere(&sb, s.Where)
	return sb.String()
}

func writeWhere(sb *strings.Builder, where *types.Predicate) {
	if where == nil {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(where.String())
}
