// Package engine provides the table registry and statement dispatch for minirel.
//
// The engine exposes two equivalent surfaces: typed calls (CreateTable,
// Insert, Select, Update, Delete, InnerJoin) and Execute, which parses one
// textual statement and routes it to the typed calls. An Engine is not
// safe for concurrent use; front ends serving several callers must
// serialize access themselves.
package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/internal/observability"
	"github.com/minirel/minirel/internal/query/executor"
	"github.com/minirel/minirel/internal/query/parser"
	"github.com/minirel/minirel/internal/table"
	"github.com/minirel/minirel/pkg/types"
)

// kindParse labels statements that failed before a kind was known.
const kindParse = "PARSE"

// Engine maps table names to tables.
type Engine struct {
	tables map[string]*table.Table
	stats  *observability.StatementStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithStats records statement and predicate statistics into s.
func WithStats(s *observability.StatementStats) Option {
	return func(e *Engine) {
		e.stats = s
	}
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{tables: make(map[string]*table.Table)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns the statistics tracker, or nil if none was configured.
func (e *Engine) Stats() *observability.StatementStats {
	return e.stats
}

func (e *Engine) observe(kind string, start time.Time, err error) {
	if e.stats != nil {
		e.stats.RecordStatement(kind, time.Since(start), err)
	}
}

func (e *Engine) observePredicate(tbl *table.Table, where *types.Predicate) {
	if e.stats == nil || where == nil {
		return
	}
	if _, ok := tbl.Column(where.Column); !ok {
		return
	}
	e.stats.RecordPredicate(tbl.Name(), where.Column, tbl.Index(where.Column) != nil)
}

// CreateTable registers a new table.
func (e *Engine) CreateTable(name string, columns []types.ColumnDef) (err error) {
	start := time.Now()
	defer func() { e.observe("CREATE", start, err) }()

	if _, exists := e.tables[name]; exists {
		return errors.NewSchemaError(errors.CodeTableExists, "table '%s' already exists", name)
	}
	tbl, err := table.New(name, columns)
	if err != nil {
		return err
	}
	e.tables[name] = tbl
	return nil
}

// Table returns the named table.
func (e *Engine) Table(name string) (*table.Table, error) {
	tbl, ok := e.tables[name]
	if !ok {
		return nil, errors.NewTableNotFound(name)
	}
	return tbl, nil
}

// HasTable reports whether a table with the given name exists.
func (e *Engine) HasTable(name string) bool {
	_, ok := e.tables[name]
	return ok
}

// TableNames returns all table names in sorted order.
func (e *Engine) TableNames() []string {
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Insert adds a row to the named table and returns its row id.
func (e *Engine) Insert(tableName string, values map[string]interface{}) (id int64, err error) {
	start := time.Now()
	defer func() { e.observe("INSERT", start, err) }()

	tbl, err := e.Table(tableName)
	if err != nil {
		return 0, err
	}
	return tbl.Insert(values)
}

// Select returns the projected rows of the named table matching where.
func (e *Engine) Select(tableName string, columns []string, where *types.Predicate) (rs *types.ResultSet, err error) {
	start := time.Now()
	defer func() { e.observe("SELECT", start, err) }()

	tbl, err := e.Table(tableName)
	if err != nil {
		return nil, err
	}
	e.observePredicate(tbl, where)
	return tbl.Select(columns, where)
}

// Update assigns values to matching rows of the named table.
func (e *Engine) Update(tableName string, values map[string]interface{}, where *types.Predicate) (n int, err error) {
	start := time.Now()
	defer func() { e.observe("UPDATE", start, err) }()

	tbl, err := e.Table(tableName)
	if err != nil {
		return 0, err
	}
	e.observePredicate(tbl, where)
	return tbl.Update(values, where)
}

// Delete removes matching rows from the named table.
func (e *Engine) Delete(tableName string, where *types.Predicate) (n int, err error) {
	start := time.Now()
	defer func() { e.observe("DELETE", start, err) }()

	tbl, err := e.Table(tableName)
	if err != nil {
		return 0, err
	}
	e.observePredicate(tbl, where)
	return tbl.Delete(where)
}

// InnerJoin joins two tables on leftCol = rightCol.
func (e *Engine) InnerJoin(leftName, rightName, leftCol, rightCol string, projection []types.QualifiedColumn) (rs *types.ResultSet, err error) {
	start := time.Now()
	defer func() { e.observe("JOIN", start, err) }()

	left, err := e.Table(leftName)
	if err != nil {
		return nil, err
	}
	right, err := e.Table(rightName)
	if err != nil {
		return nil, err
	}
	return executor.InnerJoin(left, right, leftCol, rightCol, projection)
}

// Execute parses and runs one statement. Surrounding whitespace and a
// trailing semicolon are ignored; an empty statement is a no-op.
func (e *Engine) Execute(sql string) (*Result, error) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	if sql == "" {
		return noneResult(), nil
	}

	start := time.Now()
	stmt, err := parser.Parse(sql)
	if err != nil {
		e.observe(kindParse, start, err)
		return nil, err
	}
	return e.ExecuteStatement(stmt)
}

// ExecuteStatement runs an already parsed statement.
func (e *Engine) ExecuteStatement(stmt parser.Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStatement:
		if err := e.CreateTable(s.Name, s.Columns); err != nil {
			return nil, err
		}
		return noneResult(), nil

	case *parser.InsertStatement:
		id, err := e.Insert(s.Table, s.Record())
		if err != nil {
			return nil, err
		}
		return rowIDResult(id), nil

	case *parser.SelectStatement:
		rs, err := e.Select(s.Table, s.Columns, s.Where)
		if err != nil {
			return nil, err
		}
		return rowsResult(rs), nil

	case *parser.JoinStatement:
		rs, err := e.InnerJoin(s.Left, s.Right, s.LeftColumn, s.RightColumn, s.Columns)
		if err != nil {
			return nil, err
		}
		return rowsResult(rs), nil

	case *parser.UpdateStatement:
		n, err := e.Update(s.Table, s.Values(), s.Where)
		if err != nil {
			return nil, err
		}
		return countResult(n), nil

	case *parser.DeleteStatement:
		n, err := e.Delete(s.Table, s.Where)
		if err != nil {
			return nil, err
		}
		return countResult(n), nil

	default:
		return nil, errors.NewStatementError(errors.CodeSyntaxError, "unsupported statement %T", stmt)
	}
}
