package model

import (
	"slices"
	"strings"
)

// Snapshot is the full, ordered task list delivered on each live query update.
// It is replaced wholesale, never patched.
type Snapshot []Task

// SortSnapshot orders tasks by CreatedAt descending, breaking ties by ID.
func SortSnapshot(s Snapshot) {
	slices.SortStableFunc(s, compareTasks)
}

// IsSorted reports whether the snapshot respects the feed ordering.
func (s Snapshot) IsSorted() bool {
	return slices.IsSortedFunc(s, compareTasks)
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return slices.Clone(s)
}

func compareTasks(a, b Task) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
