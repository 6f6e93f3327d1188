package types

import (
	"fmt"
	"strings"
)

// Record maps every declared column name of a table to its Value.
// Projected records returned by queries carry only the projected keys.
type Record map[string]Value

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// Predicate is an equality clause: Column Operator Value.
// Value is a raw literal normalized against the column type at evaluation.
type Predicate struct {
	Column   string
	Operator string
	Value    interface{}
}

// Eq builds a column = value predicate.
func Eq(column string, value interface{}) *Predicate {
	return &Predicate{Column: column, Operator: "=", Value: value}
}

// String returns the SQL representation of the predicate.
func (p *Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Column, p.Operator, FormatLiteral(p.Value))
}

// QualifiedColumn names a column of a specific table in a join projection.
type QualifiedColumn struct {
	Table  string
	Column string
}

// String returns the table.column form used as the output key.
func (q QualifiedColumn) String() string {
	return q.Table + "." + q.Column
}

// ResultSet is an ordered sequence of records with its projection order.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// Row returns the values of row i in projection order.
func (rs *ResultSet) Row(i int) []Value {
	out := make([]Value, len(rs.Columns))
	for j, c := range rs.Columns {
		out[j] = rs.Rows[i][c]
	}
	return out
}

// FormatLiteral renders a raw literal the way a statement would spell it.
func FormatLiteral(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return "NULL"
	case Value:
		return v.SQL()
	case string:
		return QuoteText(v)
	default:
		return fmt.Sprint(v)
	}
}

// JoinNames joins column names with ", ".
func JoinNames(names []string) string {
	return strings.Join(names, ", ")
}
