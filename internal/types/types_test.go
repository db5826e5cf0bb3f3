package types

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
		ok    bool
	}{
		{"Epic", KindEpic, true},
		{"Task", KindTask, true},
		{"  Epic  ", KindEpic, true},
		{"epic", "", false},
		{"Story", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseKind(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseKind(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEpicKey(t *testing.T) {
	if EpicKey("  User Auth  ") != "user auth" {
		t.Errorf("EpicKey should trim and case-fold, got %q", EpicKey("  User Auth  "))
	}
	if EpicKey("AUTH") != EpicKey("auth") {
		t.Error("epic keys must match case-insensitively")
	}
}

func TestValidationResult_Valid(t *testing.T) {
	result := &ValidationResult{}
	if !result.Valid() {
		t.Error("empty result should be valid")
	}

	result.Diagnostics = append(result.Diagnostics, Warnf(2, "Assignee", "unknown user"))
	if !result.Valid() {
		t.Error("warnings alone should not invalidate the batch")
	}

	result.Diagnostics = append(result.Diagnostics, Errorf(3, "Title", "required"))
	if result.Valid() {
		t.Error("an error diagnostic must invalidate the batch")
	}
}

func TestValidationResult_ErrorRows(t *testing.T) {
	result := &ValidationResult{
		Diagnostics: []Diagnostic{
			Errorf(3, "Title", "required"),
			Errorf(3, "Type", "unknown"),
			Warnf(4, "Assignee", "unknown user"),
			Errorf(0, "headers", "missing columns"),
		},
	}

	rows := result.ErrorRows()
	if len(rows) != 1 || !rows[3] {
		t.Errorf("ErrorRows() = %v, want only row 3", rows)
	}
	if result.Warnings() != 1 {
		t.Errorf("Warnings() = %d, want 1", result.Warnings())
	}
}
