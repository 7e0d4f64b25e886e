package accel

import "fmt"

// Partition is the 1-D launch geometry of a row-parallel kernel.
// GlobalSize = NumGroups*LocalSize and is never less than Rows; work items
// with an id >= Rows must do nothing.
type Partition struct {
	Rows       int
	GlobalSize int
	LocalSize  int
	NumGroups  int
}

func (p Partition) String() string {
	return fmt.Sprintf("rows=%d global=%d local=%d groups=%d", p.Rows, p.GlobalSize, p.LocalSize, p.NumGroups)
}

// Covers reports whether every row in [0,Rows) maps to a work item.
func (p Partition) Covers() bool {
	return p.GlobalSize == p.NumGroups*p.LocalSize && p.GlobalSize >= p.Rows
}

// PlanPartition picks the group size for rows work items on a device whose
// maximum group size is maxGroup. When rows divides evenly, maxGroup is used
// as is. Otherwise the group count ceil(rows/maxGroup) is increased by one
// and the group size becomes ceil(rows/groups), so all rows stay covered.
// The final group count is recomputed from that size, which leaves idle work
// items only in the last, partial group.
func PlanPartition(rows, maxGroup int) Partition {
	if rows <= 0 {
		return Partition{}
	}
	if maxGroup <= 0 {
		maxGroup = 1
	}
	if rows%maxGroup == 0 {
		return Partition{Rows: rows, GlobalSize: rows, LocalSize: maxGroup, NumGroups: rows / maxGroup}
	}
	local := ceilDiv(rows, ceilDiv(rows, maxGroup)+1)
	groups := ceilDiv(rows, local)
	return Partition{Rows: rows, GlobalSize: groups * local, LocalSize: local, NumGroups: groups}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
