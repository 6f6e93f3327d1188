// Package index provides in-memory hash indexes over primary-key and unique columns.
package index

import (
	"sort"

	"github.com/minirel/minirel/internal/errors"
	"github.com/minirel/minirel/pkg/types"
)

// HashIndex maps column values to the row ids holding them.
// Null values are never indexed. For unique indexes every bucket holds
// at most one row id.
type HashIndex struct {
	column  string
	unique  bool
	buckets map[types.Value][]int64
}

// New creates an empty hash index for column.
func New(column string, unique bool) *HashIndex {
	return &HashIndex{
		column:  column,
		unique:  unique,
		buckets: make(map[types.Value][]int64),
	}
}

// Column returns the indexed column name.
func (h *HashIndex) Column() string { return h.column }

// Unique reports whether the index enforces uniqueness.
func (h *HashIndex) Unique() bool { return h.unique }

// Conflicts reports whether inserting value for rowID would violate
// uniqueness. A bucket already containing only rowID is not a conflict.
func (h *HashIndex) Conflicts(value types.Value, rowID int64) bool {
	if !h.unique || value.IsNull() {
		return false
	}
	for _, id := range h.buckets[value] {
		if id != rowID {
			return true
		}
	}
	return false
}

// Insert adds rowID under value. On a uniqueness violation the index is
// left untouched and a constraint error is returned.
func (h *HashIndex) Insert(value types.Value, rowID int64) error {
	if value.IsNull() {
		return nil
	}
	if h.Conflicts(value, rowID) {
		return errors.NewConstraintViolation(h.column, value)
	}
	ids := h.buckets[value]
	for _, id := range ids {
		if id == rowID {
			return nil
		}
	}
	h.buckets[value] = append(ids, rowID)
	return nil
}

// Delete removes rowID from value's bucket. Empty buckets are dropped.
func (h *HashIndex) Delete(value types.Value, rowID int64) {
	if value.IsNull() {
		return
	}
	ids, ok := h.buckets[value]
	if !ok {
		return
	}
	for i, id := range ids {
		if id == rowID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(h.buckets, value)
		return
	}
	h.buckets[value] = ids
}

// Update moves rowID from oldValue to newValue. If the move would violate
// uniqueness nothing changes and the error is returned.
func (h *HashIndex) Update(oldValue, newValue types.Value, rowID int64) error {
	if oldValue == newValue {
		return nil
	}
	if h.Conflicts(newValue, rowID) {
		return errors.NewConstraintViolation(h.column, newValue)
	}
	h.Delete(oldValue, rowID)
	return h.Insert(newValue, rowID)
}

// Lookup returns the row ids stored under value in insertion order.
// The returned slice is a copy.
func (h *HashIndex) Lookup(value types.Value) []int64 {
	if value.IsNull() {
		return nil
	}
	ids := h.buckets[value]
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// Len returns the number of distinct indexed values.
func (h *HashIndex) Len() int {
	return len(h.buckets)
}

// Size returns the total number of indexed row ids.
func (h *HashIndex) Size() int {
	n := 0
	for _, ids := range h.buckets {
		n += len(ids)
	}
	return n
}

// Range calls fn for every bucket in value order until fn returns false.
func (h *HashIndex) Range(fn func(value types.Value, rowIDs []int64) bool) {
	keys := make([]types.Value, 0, len(h.buckets))
	for k := range h.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return types.Compare(keys[i], keys[j]) < 0
	})
	for _, k := range keys {
		if !fn(k, h.buckets[k]) {
			return
		}
	}
}
