package executor

import (
	"testing"

	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/internal/table"
	"github.com/minirel/minirel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTable(t *testing.T, name string, cols []types.ColumnDef, rows ...map[string]interface{}) *table.Table {
	t.Helper()
	tbl, err := table.New(name, cols)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := tbl.Insert(r)
		require.NoError(t, err)
	}
	return tbl
}

func joinFixture(t *testing.T) (*table.Table, *table.Table) {
	a := buildTable(t, "A",
		[]types.ColumnDef{
			{Name: "id", Type: types.TypeInt, PrimaryKey: true},
			{Name: "gid", Type: types.TypeInt},
		},
		map[string]interface{}{"id": 1, "gid": 10},
		map[string]interface{}{"id": 2, "gid": 20},
	)
	b := buildTable(t, "B",
		[]types.ColumnDef{
			{Name: "id", Type: types.TypeInt, PrimaryKey: true},
			{Name: "gid", Type: types.TypeInt},
			{Name: "label", Type: types.TypeText},
		},
		map[string]interface{}{"id": 1, "gid": 10, "label": "x"},
		map[string]interface{}{"id": 2, "gid": 20, "label": "y"},
		map[string]interface{}{"id": 3, "gid": 10, "label": "z"},
	)
	return a, b
}

func TestInnerJoin(t *testing.T) {
	a, b := joinFixture(t)

	rs, err := InnerJoin(a, b, "gid", "gid", []types.QualifiedColumn{
		{Table: "A", Column: "id"},
		{Table: "B", Column: "label"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A.id", "B.label"}, rs.Columns)

	assert.Equal(t, []types.Record{
		{"A.id": types.Int(1), "B.label": types.Text("x")},
		{"A.id": types.Int(1), "B.label": types.Text("z")},
		{"A.id": types.Int(2), "B.label": types.Text("y")},
	}, rs.Rows)
}

func TestInnerJoin_NoMatches(t *testing.T) {
	a, b := joinFixture(t)
	_, err := b.Delete(nil)
	require.NoError(t, err)

	rs, err := InnerJoin(a, b, "gid", "gid", []types.QualifiedColumn{{Table: "A", Column: "id"}})
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}

func TestInnerJoin_NullKeysNeverMatch(t *testing.T) {
	cols := []types.ColumnDef{{Name: "k", Type: types.TypeText}}
	l := buildTable(t, "l", cols, map[string]interface{}{"k": nil}, map[string]interface{}{"k": "a"})
	r := buildTable(t, "r", cols, map[string]interface{}{"k": nil}, map[string]interface{}{"k": "a"})

	rs, err := InnerJoin(l, r, "k", "k", []types.QualifiedColumn{{Table: "l", Column: "k"}})
	require.NoError(t, err)
	assert.Equal(t, []types.Record{{"l.k": types.Text("a")}}, rs.Rows)
}

func TestInnerJoin_Errors(t *testing.T) {
	a, b := joinFixture(t)

	tests := []struct {
		name       string
		leftCol    string
		rightCol   string
		projection []types.QualifiedColumn
		want       error
	}{
		{
			name: "unknown alias", leftCol: "gid", rightCol: "gid",
			projection: []types.QualifiedColumn{{Table: "C", Column: "id"}},
			want:       errors.ErrUnknownTableAlias,
		},
		{
			name: "unknown projected column", leftCol: "gid", rightCol: "gid",
			projection: []types.QualifiedColumn{{Table: "B", Column: "nope"}},
			want:       errors.ErrColumnNotFound,
		},
		{
			name: "unknown left join column", leftCol: "nope", rightCol: "gid",
			projection: []types.QualifiedColumn{{Table: "A", Column: "id"}},
			want:       errors.ErrColumnNotFound,
		},
		{
			name: "unknown right join column", leftCol: "gid", rightCol: "nope",
			projection: []types.QualifiedColumn{{Table: "A", Column: "id"}},
			want:       errors.ErrColumnNotFound,
		},
		{
			name: "empty projection", leftCol: "gid", rightCol: "gid",
			want: errors.ErrInvalidProjection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InnerJoin(a, b, tt.leftCol, tt.rightCol, tt.projection)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
