package engine

import (
	"fmt"

	"github.com/minirel/minirel/pkg/types"
)

// ResultKind identifies which field of a Result carries the outcome.
type ResultKind int

const (
	// ResultNone is returned by DDL and empty statements.
	ResultNone ResultKind = iota
	// ResultRowID carries the id allocated by an INSERT.
	ResultRowID
	// ResultRows carries the records of a SELECT or join.
	ResultRows
	// ResultCount carries the number of rows an UPDATE or DELETE affected.
	ResultCount
)

var resultKindNames = map[ResultKind]string{
	ResultNone:  "none",
	ResultRowID: "row_id",
	ResultRows:  "rows",
	ResultCount: "count",
}

// String returns the lower-case name of the kind.
func (k ResultKind) String() string {
	if s, ok := resultKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ResultKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Result is the outcome of one executed statement.
type Result struct {
	Kind     ResultKind     `json:"kind"`
	Columns  []string       `json:"columns,omitempty"`
	Rows     []types.Record `json:"rows,omitempty"`
	RowID    int64          `json:"row_id,omitempty"`
	Affected int            `json:"affected"`
}

func noneResult() *Result { return &Result{Kind: ResultNone} }

func rowIDResult(id int64) *Result { return &Result{Kind: ResultRowID, RowID: id} }

func countResult(n int) *Result { return &Result{Kind: ResultCount, Affected: n} }

func rowsResult(rs *types.ResultSet) *Result {
	return &Result{Kind: ResultRows, Columns: rs.Columns, Rows: rs.Rows}
}

// ResultSet returns the rows of a ResultRows result, or nil.
func (r *Result) ResultSet() *types.ResultSet {
	if r.Kind != ResultRows {
		return nil
	}
	return &types.ResultSet{Columns: r.Columns, Rows: r.Rows}
}
