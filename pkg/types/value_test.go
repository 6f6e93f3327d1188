package types

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, Null(), v)
	assert.Equal(t, "NULL", v.String())
	assert.Nil(t, v.Interface())
}

func TestValue_EqualityIsKindAware(t *testing.T) {
	assert.Equal(t, Int(1), Int(1))
	assert.NotEqual(t, Int(1), Text("1"))
	assert.NotEqual(t, Text(""), Null())
	assert.NotEqual(t, Int(0), Null())

	m := map[Value]int{Int(1): 1, Text("1"): 2}
	assert.Len(t, m, 2)
}

func TestValue_Accessors(t *testing.T) {
	n, ok := Int(42).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = Text("42").AsInt()
	assert.False(t, ok)

	s, ok := Text("alice").AsText()
	assert.True(t, ok)
	assert.Equal(t, "alice", s)
}

func TestValue_SQL(t *testing.T) {
	assert.Equal(t, "7", Int(7).SQL())
	assert.Equal(t, "'O''Brien'", Text("O'Brien").SQL())
	assert.Equal(t, "NULL", Null().SQL())
}

func TestValue_MarshalJSON(t *testing.T) {
	rec := Record{"id": Int(1), "name": Text("Ann"), "email": Null()}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"Ann","email":null}`, string(data))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"null equal", Null(), Null(), 0},
		{"null before int", Null(), Int(-5), -1},
		{"int before text", Int(100), Text("1"), -1},
		{"text after null", Text(""), Null(), 1},
		{"int order", Int(2), Int(10), -1},
		{"text order", Text("b"), Text("a"), 1},
		{"int equal", Int(3), Int(3), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestCompare_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genValue := gen.OneGenOf(
		gen.Const(Null()),
		gen.Int64().Map(func(n int64) Value { return Int(n) }),
		gen.AlphaString().Map(func(s string) Value { return Text(s) }),
	)

	properties.Property("compare is antisymmetric", prop.ForAll(
		func(a, b Value) bool {
			return Compare(a, b) == -Compare(b, a)
		},
		genValue, genValue,
	))

	properties.Property("compare is zero exactly for equal values", prop.ForAll(
		func(a, b Value) bool {
			return (Compare(a, b) == 0) == (a == b)
		},
		genValue, genValue,
	))

	properties.TestingRun(t)
}
