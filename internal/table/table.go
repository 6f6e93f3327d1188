// Package table implements the in-memory row store with constraint
// enforcement through per-column hash indexes.
package table

import (
	"fmt"
	"sort"

	"github.com/google/btree"

	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/internal/index"
	"github.com/minirel/minirel/pkg/types"
)

// btreeDegree is the fan-out of the row store.
const btreeDegree = 32

type row struct {
	id  int64
	rec types.Record
}

func rowLess(a, b row) bool { return a.id < b.id }

// Table is a named, schema-checked collection of records keyed by row id.
// Row ids start at 1, grow monotonically and are never reused.
// Table is not safe for concurrent use.
type Table struct {
	name      string
	columns   []types.ColumnDef
	colIndex  map[string]int
	rows      *btree.BTreeG[row]
	nextRowID int64

	// indexes holds one hash index per primary-key or unique column,
	// enumerated in declared column order through indexOrder.
	indexes    map[string]*index.HashIndex
	indexOrder []string
}

// New validates the column definitions and creates an empty table.
func New(name string, columns []types.ColumnDef) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.NewSchemaError(errors.CodeInvalidColumnDef,
			"table '%s' must declare at least one column", name)
	}

	t := &Table{
		name:      name,
		columns:   make([]types.ColumnDef, 0, len(columns)),
		colIndex:  make(map[string]int, len(columns)),
		rows:      btree.NewG[row](btreeDegree, rowLess),
		nextRowID: 1,
		indexes:   make(map[string]*index.HashIndex),
	}

	for _, col := range columns {
		if _, dup := t.colIndex[col.Name]; dup {
			return nil, errors.NewSchemaError(errors.CodeDuplicateColumn,
				"duplicate column name '%s' in table '%s'", col.Name, name)
		}
		if !col.Type.Valid() {
			return nil, errors.NewSchemaError(errors.CodeUnsupportedType,
				"unsupported type '%s' for column '%s'; supported types: INT, TEXT", col.Type, col.Name)
		}
		if col.PrimaryKey {
			col.Unique = true
		}
		t.colIndex[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
		if col.Indexed() {
			t.indexes[col.Name] = index.New(col.Name, true)
			t.indexOrder = append(t.indexOrder, col.Name)
		}
	}

	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column definitions in declared order.
func (t *Table) Columns() []types.ColumnDef {
	out := make([]types.ColumnDef, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the declared column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the definition of the named column.
func (t *Table) Column(name string) (types.ColumnDef, bool) {
	i, ok := t.colIndex[name]
	if !ok {
		return types.ColumnDef{}, false
	}
	return t.columns[i], true
}

// Len returns the number of live rows.
func (t *Table) Len() int { return t.rows.Len() }

// NextRowID returns the id the next successful insert will receive.
func (t *Table) NextRowID() int64 { return t.nextRowID }

// Index returns the hash index on column, or nil if the column is not constrained.
func (t *Table) Index(column string) *index.HashIndex {
	return t.indexes[column]
}

// Get returns a copy of the record stored under rowID.
func (t *Table) Get(rowID int64) (types.Record, bool) {
	r, ok := t.rows.Get(row{id: rowID})
	if !ok {
		return nil, false
	}
	return r.rec.Clone(), true
}

// Scan calls fn for every row in row-id order until fn returns false.
// The record passed to fn must not be modified.
func (t *Table) Scan(fn func(rowID int64, rec types.Record) bool) {
	t.rows.Ascend(func(r row) bool {
		return fn(r.id, r.rec)
	})
}

func (t *Table) column(name string) (types.ColumnDef, error) {
	col, ok := t.Column(name)
	if !ok {
		return types.ColumnDef{}, errors.NewColumnNotFound(t.name, name)
	}
	return col, nil
}

// normalizeValues resolves and coerces a column→raw mapping. Unknown keys
// are reported in sorted order so the error is deterministic.
func (t *Table) normalizeValues(values map[string]interface{}) (map[string]types.Value, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := t.colIndex[k]; !ok {
			return nil, errors.NewColumnNotFound(t.name, k)
		}
	}

	out := make(map[string]types.Value, len(values))
	for _, col := range t.columns {
		raw, ok := values[col.Name]
		if !ok {
			continue
		}
		v, err := col.Normalize(raw)
		if err != nil {
			return nil, err
		}
		out[col.Name] = v
	}
	return out, nil
}

// Insert stores a new row and returns its row id. Columns absent from
// values are stored as Null. Either the row and all of its index entries
// are committed, or nothing changes and no row id is consumed.
func (t *Table) Insert(values map[string]interface{}) (int64, error) {
	normalized, err := t.normalizeValues(values)
	if err != nil {
		return 0, err
	}

	rec := make(types.Record, len(t.columns))
	for _, col := range t.columns {
		rec[col.Name] = normalized[col.Name]
	}

	rowID := t.nextRowID
	for _, name := range t.indexOrder {
		if t.indexes[name].Conflicts(rec[name], rowID) {
			return 0, errors.NewConstraintViolation(name, rec[name])
		}
	}

	for i, name := range t.indexOrder {
		if err := t.indexes[name].Insert(rec[name], rowID); err != nil {
			for _, done := range t.indexOrder[:i] {
				t.indexes[done].Delete(rec[done], rowID)
			}
			return 0, err
		}
	}

	t.rows.ReplaceOrInsert(row{id: rowID, rec: rec})
	t.nextRowID++
	return rowID, nil
}

// match returns the ids of rows satisfying where, in scan order for
// unindexed columns and bucket order for indexed ones. A nil predicate
// matches every row.
func (t *Table) match(where *types.Predicate) ([]int64, error) {
	if where == nil {
		ids := make([]int64, 0, t.rows.Len())
		t.rows.Ascend(func(r row) bool {
			ids = append(ids, r.id)
			return true
		})
		return ids, nil
	}

	if where.Operator != "=" {
		return nil, errors.NewStatementError(errors.CodeUnsupportedOperator,
			"only '=' is supported in WHERE, got '%s'", where.Operator)
	}
	col, err := t.column(where.Column)
	if err != nil {
		return nil, err
	}
	value, err := col.Normalize(where.Value)
	if err != nil {
		return nil, err
	}
	if value.IsNull() {
		return nil, errors.NewStatementError(errors.CodeInvalidPredicate,
			"cannot compare column '%s' with NULL", where.Column)
	}

	if idx, ok := t.indexes[col.Name]; ok {
		ids := idx.Lookup(value)
		for _, id := range ids {
			if !t.rows.Has(row{id: id}) {
				return nil, errors.NewInternalError(
					fmt.Sprintf("index on %s.%s references missing row", t.name, col.Name),
					fmt.Errorf("row id %d", id))
			}
		}
		return ids, nil
	}

	var ids []int64
	t.rows.Ascend(func(r row) bool {
		if r.rec[col.Name] == value {
			ids = append(ids, r.id)
		}
		return true
	})
	return ids, nil
}

// Select returns the projected records matching where. A nil or ["*"]
// projection selects every column in declared order.
func (t *Table) Select(columns []string, where *types.Predicate) (*types.ResultSet, error) {
	cols, err := t.projection(columns)
	if err != nil {
		return nil, err
	}
	ids, err := t.match(where)
	if err != nil {
		return nil, err
	}

	rs := &types.ResultSet{Columns: cols, Rows: make([]types.Record, 0, len(ids))}
	for _, id := range ids {
		r, _ := t.rows.Get(row{id: id})
		out := make(types.Record, len(cols))
		for _, c := range cols {
			out[c] = r.rec[c]
		}
		rs.Rows = append(rs.Rows, out)
	}
	return rs, nil
}

func (t *Table) projection(columns []string) ([]string, error) {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return t.ColumnNames(), nil
	}
	out := make([]string, len(columns))
	for i, c := range columns {
		if _, err := t.column(c); err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

type undoEntry struct {
	id  int64
	old types.Record
	new types.Record
}

// Update assigns values to every row matching where and returns the
// number of rows changed. The statement is atomic: if any row would
// violate a unique constraint, every row already changed by this call is
// restored and the violation is returned.
func (t *Table) Update(values map[string]interface{}, where *types.Predicate) (int, error) {
	normalized, err := t.normalizeValues(values)
	if err != nil {
		return 0, err
	}
	ids, err := t.match(where)
	if err != nil {
		return 0, err
	}
	if len(normalized) == 0 {
		return 0, nil
	}

	undo := make([]undoEntry, 0, len(ids))
	for _, id := range ids {
		r, _ := t.rows.Get(row{id: id})
		next := r.rec.Clone()
		for k, v := range normalized {
			next[k] = v
		}

		if err := t.reindex(id, r.rec, next); err != nil {
			t.rollback(undo)
			return 0, err
		}
		t.rows.ReplaceOrInsert(row{id: id, rec: next})
		undo = append(undo, undoEntry{id: id, old: r.rec, new: next})
	}
	return len(undo), nil
}

// reindex moves rowID's entries from old to next in every index. It
// checks all indexes before touching any so a violation changes nothing.
func (t *Table) reindex(rowID int64, old, next types.Record) error {
	for _, name := range t.indexOrder {
		if old[name] == next[name] {
			continue
		}
		if t.indexes[name].Conflicts(next[name], rowID) {
			return errors.NewConstraintViolation(name, next[name])
		}
	}
	for _, name := range t.indexOrder {
		if err := t.indexes[name].Update(old[name], next[name], rowID); err != nil {
			return errors.NewInternalError("index update failed after validation", err)
		}
	}
	return nil
}

func (t *Table) rollback(undo []undoEntry) {
	for i := len(undo) - 1; i >= 0; i-- {
		u := undo[i]
		for _, name := range t.indexOrder {
			t.indexes[name].Delete(u.new[name], u.id)
		}
		for _, name := range t.indexOrder {
			// Restoring pre-statement values cannot collide.
			_ = t.indexes[name].Insert(u.old[name], u.id)
		}
		t.rows.ReplaceOrInsert(row{id: u.id, rec: u.old})
	}
}

// Delete removes every row matching where and returns the count removed.
func (t *Table) Delete(where *types.Predicate) (int, error) {
	ids, err := t.match(where)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		r, ok := t.rows.Delete(row{id: id})
		if !ok {
			continue
		}
		for _, name := range t.indexOrder {
			t.indexes[name].Delete(r.rec[name], id)
		}
	}
	return len(ids), nil
}
