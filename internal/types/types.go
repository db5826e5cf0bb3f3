// Package types defines the core data structures shared by the epicimport
// validation and import engine.
package types

import (
	"strings"
	"time"
)

// Kind classifies a CSV row as a parent or child work item.
type Kind string

const (
	KindEpic Kind = "Epic"
	KindTask Kind = "Task"
)

// ParseKind parses the Type column of a CSV row. The bool result is false
// when the value names no known kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.TrimSpace(s) {
	case string(KindEpic):
		return KindEpic, true
	case string(KindTask):
		return KindTask, true
	}
	return "", false
}

// RowModel is the normalized in-memory form of one CSV record. Rows are
// created during parsing and never mutated once validation begins.
type RowModel struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Kind        Kind     `json:"kind"`
	Labels      []string `json:"labels,omitempty"`   // semicolon-decoded, order preserved, deduplicated
	Assignee    string   `json:"assignee,omitempty"` // empty = unassigned
	Milestone   string   `json:"milestone,omitempty"`
	Repository  string   `json:"repository"`           // defaults to the configured primary repo
	ParentRef   string   `json:"parent_ref,omitempty"` // Epic title this Task belongs to
	SourceLine  int      `json:"source_line"`          // 1-based CSV line, for diagnostics
}

// EpicKey returns the synthetic key under which an Epic row is registered
// for parent resolution: its title, trimmed and case-folded.
func EpicKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Severity of a diagnostic. Errors block a row from planning; warnings do not.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Diagnostic is one validation, planning, or execution finding tied to a
// source row. Row 0 means a header or run-global finding.
type Diagnostic struct {
	Row      int      `json:"row"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Errorf constructs an error-severity diagnostic.
func Errorf(row int, field, message string) Diagnostic {
	return Diagnostic{Row: row, Field: field, Message: message, Severity: SeverityError}
}

// Warnf constructs a warn-severity diagnostic.
func Warnf(row int, field, message string) Diagnostic {
	return Diagnostic{Row: row, Field: field, Message: message, Severity: SeverityWarn}
}

// ValidationResult aggregates every diagnostic found across all rows of one
// batch. Validation never stops at the first violation: the caller gets the
// complete list so a CSV can be fixed in one edit cycle.
type ValidationResult struct {
	Rows        []RowModel   `json:"-"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	RowCount    int          `json:"rows_count"`
}

// Valid reports whether no error-severity diagnostics were recorded.
func (v *ValidationResult) Valid() bool {
	for _, d := range v.Diagnostics {
		if d.Severity == SeverityError {
			return false
		}
	}
	return true
}

// ErrorRows returns the set of source lines that carry at least one
// error-severity diagnostic. Warn-only rows are not included.
func (v *ValidationResult) ErrorRows() map[int]bool {
	rows := make(map[int]bool)
	for _, d := range v.Diagnostics {
		if d.Severity == SeverityError && d.Row > 0 {
			rows[d.Row] = true
		}
	}
	return rows
}

// Warnings counts warn-severity diagnostics.
func (v *ValidationResult) Warnings() int {
	n := 0
	for _, d := range v.Diagnostics {
		if d.Severity == SeverityWarn {
			n++
		}
	}
	return n
}

// ImportStatus summarizes the outcome of an import run.
type ImportStatus string

const (
	// StatusSuccess means every planned entry was created.
	StatusSuccess ImportStatus = "success"
	// StatusPartial means some entries failed or were skipped but at least
	// one succeeded. Created objects are listed so a corrected CSV can be
	// resubmitted without duplicating them.
	StatusPartial ImportStatus = "partial"
	// StatusAborted means a configuration or authentication problem
	// prevented any remote call from being attempted.
	StatusAborted ImportStatus = "aborted"
)

// CreatedObject records one remote object minted during a run. It doubles as
// the rollback ledger entry: rollback replays these in reverse order.
type CreatedObject struct {
	Ref         string    `json:"ref"`  // remote identifier, e.g. issue number "42"
	ObjectKind  string    `json:"kind"` // "epic", "task", "label", "milestone"
	Repository  string    `json:"repository"`
	Timestamp   time.Time `json:"timestamp"`
	PlanEntryID string    `json:"plan_entry_id,omitempty"`
	URL         string    `json:"url,omitempty"`
}

// ImportResult is the final outcome of plan-and-execute.
type ImportResult struct {
	RunID       string          `json:"run_id"`
	Created     []CreatedObject `json:"created"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
	Status      ImportStatus    `json:"status"`
}

// RollbackResult reports a best-effort reverse-order rollback.
type RollbackResult struct {
	RunID       string          `json:"run_id"`
	Deleted     []CreatedObject `json:"deleted"`
	Diagnostics []Diagnostic    `json:"diagnostics,omitempty"`
}
