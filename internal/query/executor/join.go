// Package executor provides join execution across tables.
package executor

import (
	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/internal/table"
	"github.com/minirel/minirel/pkg/types"
)

// side identifies which input a projected column is read from.
type side int

const (
	sideLeft side = iota
	sideRight
)

type projected struct {
	key    string
	side   side
	column string
}

// InnerJoin evaluates left INNER JOIN right ON left.leftCol = right.rightCol
// with a hash-bucket join. The right table is bucketed by its join column,
// then the left table is scanned once, emitting one record per match keyed
// by "table.column". Output is grouped by left row in left scan order.
// Null join keys never match.
//
// Projection entries resolve against the literal table names; when both
// sides carry the same name the left table wins.
func InnerJoin(left, right *table.Table, leftCol, rightCol string, projection []types.QualifiedColumn) (*types.ResultSet, error) {
	if _, ok := left.Column(leftCol); !ok {
		return nil, errors.NewColumnNotFound(left.Name(), leftCol)
	}
	if _, ok := right.Column(rightCol); !ok {
		return nil, errors.NewColumnNotFound(right.Name(), rightCol)
	}

	plan, err := resolveProjection(left, right, projection)
	if err != nil {
		return nil, err
	}

	buckets := make(map[types.Value][]types.Record)
	right.Scan(func(_ int64, rec types.Record) bool {
		key := rec[rightCol]
		if !key.IsNull() {
			buckets[key] = append(buckets[key], rec)
		}
		return true
	})

	rs := &types.ResultSet{Columns: make([]string, len(plan)), Rows: []types.Record{}}
	for i, p := range plan {
		rs.Columns[i] = p.key
	}

	left.Scan(func(_ int64, lrec types.Record) bool {
		key := lrec[leftCol]
		if key.IsNull() {
			return true
		}
		for _, rrec := range buckets[key] {
			out := make(types.Record, len(plan))
			for _, p := range plan {
				if p.side == sideLeft {
					out[p.key] = lrec[p.column]
				} else {
					out[p.key] = rrec[p.column]
				}
			}
			rs.Rows = append(rs.Rows, out)
		}
		return true
	})

	return rs, nil
}

func resolveProjection(left, right *table.Table, projection []types.QualifiedColumn) ([]projected, error) {
	if len(projection) == 0 {
		return nil, errors.NewStatementError(errors.CodeInvalidProjection,
			"join requires at least one qualified projection column")
	}

	plan := make([]projected, 0, len(projection))
	for _, q := range projection {
		var (
			src *table.Table
			s   side
		)
		switch q.Table {
		case left.Name():
			src, s = left, sideLeft
		case right.Name():
			src, s = right, sideRight
		default:
			return nil, errors.NewStatementError(errors.CodeUnknownTableAlias,
				"unknown table alias '%s' in projection %s", q.Table, q.String())
		}
		if _, ok := src.Column(q.Column); !ok {
			return nil, errors.NewColumnNotFound(src.Name(), q.Column)
		}
		plan = append(plan, projected{key: q.String(), side: s, column: q.Column})
	}
	return plan, nil
}
