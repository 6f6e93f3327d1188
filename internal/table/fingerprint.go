package table

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/minirel/minirel/pkg/types"
)

// Fingerprint returns a 128-bit murmur3 digest of the table's schema,
// rows, row-id counter and index contents as a hex string. Two tables
// with identical observable state have identical fingerprints.
func (t *Table) Fingerprint() string {
	h := murmur3.New128()
	var buf [8]byte

	writeInt := func(n int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}
	writeValue := func(v types.Value) {
		h.Write([]byte{byte(v.Kind())})
		switch v.Kind() {
		case types.KindInt:
			n, _ := v.AsInt()
			writeInt(n)
		case types.KindText:
			s, _ := v.AsText()
			writeString(s)
		}
	}

	writeString(t.name)
	for _, col := range t.columns {
		writeString(col.String())
	}
	writeInt(t.nextRowID)

	t.rows.Ascend(func(r row) bool {
		writeInt(r.id)
		for _, col := range t.columns {
			writeValue(r.rec[col.Name])
		}
		return true
	})

	for _, name := range t.indexOrder {
		writeString(name)
		t.indexes[name].Range(func(v types.Value, ids []int64) bool {
			writeValue(v)
			writeInt(int64(len(ids)))
			for _, id := range ids {
				writeInt(id)
			}
			return true
		})
	}

	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}
