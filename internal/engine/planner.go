package engine

import (
	"fmt"
	"sort"

	"github.com/nimeshe/epicimport/internal/types"
)

// RemoteOp is the creation operation a plan entry performs.
type RemoteOp string

const (
	OpCreateEpic RemoteOp = "create_epic"
	OpCreateTask RemoteOp = "create_task"
)

// PlanEntry is one dependency-ordered creation step.
type PlanEntry struct {
	ID        string // "row-<source line>", stable across runs
	Row       types.RowModel
	Op        RemoteOp
	DependsOn []string // entry IDs that must complete first
}

// Plan is a topologically ordered creation plan: Epics strictly precede
// their Tasks, and same-rank entries keep increasing source-line order, so
// planning the same validated input twice yields the identical sequence.
type Plan struct {
	Entries []PlanEntry
}

func entryID(row types.RowModel) string {
	return fmt.Sprintf("row-%d", row.SourceLine)
}

// BuildPlan orders validated rows into a creation plan. Rows carrying
// error-severity diagnostics are excluded; warn-only rows proceed.
//
// Unresolvable parents and dependency cycles are planning diagnostics for
// the affected rows only — independent rows are still planned. Cycles
// cannot occur in the two-level Epic/Task model but are detected rather
// than looped on.
func BuildPlan(validation types.ValidationResult) (Plan, []types.Diagnostic) {
	var diags []types.Diagnostic

	blocked := validation.ErrorRows()
	rows := make([]types.RowModel, 0, len(validation.Rows))
	for _, row := range validation.Rows {
		if !blocked[row.SourceLine] {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SourceLine < rows[j].SourceLine })

	epicByKey := make(map[string]string) // epic key -> entry ID
	for _, row := range rows {
		if row.Kind == types.KindEpic {
			epicByKey[types.EpicKey(row.Title)] = entryID(row)
		}
	}

	entries := make(map[string]PlanEntry)
	var order []string // candidate IDs in source order
	for _, row := range rows {
		entry := PlanEntry{ID: entryID(row), Row: row}
		switch row.Kind {
		case types.KindEpic:
			entry.Op = OpCreateEpic
		case types.KindTask:
			entry.Op = OpCreateTask
			parentID, ok := epicByKey[types.EpicKey(row.ParentRef)]
			if !ok {
				diags = append(diags, types.Errorf(row.SourceLine, "Parent",
					fmt.Sprintf("no planned Epic matches parent %q", row.ParentRef)))
				continue
			}
			entry.DependsOn = []string{parentID}
		default:
			continue
		}
		entries[entry.ID] = entry
		order = append(order, entry.ID)
	}

	ordered, leftover := topoSort(entries, order)
	for _, id := range leftover {
		diags = append(diags, types.Errorf(entries[id].Row.SourceLine, "Parent",
			"cyclic dependency: row cannot be ordered"))
	}

	return Plan{Entries: ordered}, diags
}

// topoSort runs Kahn's algorithm with a deterministic tie-break: among
// ready entries, the lowest source line goes first. Entries left with
// unsatisfied dependencies (a cycle) are returned separately.
func topoSort(entries map[string]PlanEntry, order []string) (ordered []PlanEntry, leftover []string) {
	indegree := make(map[string]int, len(entries))
	dependents := make(map[string][]string, len(entries))
	for _, id := range order {
		entry := entries[id]
		for _, dep := range entry.DependsOn {
			if _, ok := entries[dep]; !ok {
				continue // dependency itself was excluded; caller diagnosed it
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for _, id := range order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	byLine := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool {
			return entries[ids[i]].Row.SourceLine < entries[ids[j]].Row.SourceLine
		})
	}
	byLine(ready)

	placed := make(map[string]bool, len(entries))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		ordered = append(ordered, entries[id])
		placed[id] = true

		released := false
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			byLine(ready)
		}
	}

	for _, id := range order {
		if !placed[id] {
			leftover = append(leftover, id)
		}
	}
	return ordered, leftover
}
