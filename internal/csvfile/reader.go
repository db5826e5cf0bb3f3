// Package csvfile reads the 7-column work-item CSV and produces normalized
// row models plus structural parse diagnostics. It never aborts at the first
// malformed line; every problem is reported so the file can be fixed in one
// pass.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nimeshe/epicimport/internal/types"
)

// RequiredColumns are the header columns every import CSV must carry.
// Repository is recognized as an optional eighth column.
var RequiredColumns = []string{
	"Title", "Description", "Type", "Labels", "Assignee", "Milestone", "Parent",
}

// ReadFile opens and parses a CSV file from disk.
func ReadFile(path, defaultRepo string) ([]types.RowModel, []types.Diagnostic) {
	f, err := os.Open(path) // #nosec G304 - user-supplied CSV path
	if err != nil {
		return nil, []types.Diagnostic{
			types.Errorf(0, "file", fmt.Sprintf("failed to read file: %v", err)),
		}
	}
	defer func() { _ = f.Close() }()
	return Read(f, defaultRepo)
}

// Read parses CSV content. Rows that cannot be normalized still appear in
// the diagnostics with their source line; well-formed rows are returned even
// when other rows are broken.
func Read(r io.Reader, defaultRepo string) ([]types.RowModel, []types.Diagnostic) {
	var rows []types.RowModel
	var diags []types.Diagnostic

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows reported per-line, not fatally
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, []types.Diagnostic{types.Errorf(0, "headers", "no columns found")}
	}
	if err != nil {
		return nil, []types.Diagnostic{
			types.Errorf(0, "headers", fmt.Sprintf("failed to parse header: %v", err)),
		}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		diags = append(diags, types.Errorf(0, "headers",
			"missing required columns: "+strings.Join(missing, ", ")))
	}

	line := 1 // header occupies line 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			diags = append(diags, types.Errorf(line, "",
				fmt.Sprintf("malformed line: %v", err)))
			continue
		}
		if isEmpty(record) {
			continue
		}
		if len(record) != len(header) {
			diags = append(diags, types.Errorf(line, "",
				fmt.Sprintf("field count mismatch: header has %d, row has %d", len(header), len(record))))
			continue
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		kind, _ := types.ParseKind(field("Type"))
		repo := field("Repository")
		if repo == "" {
			repo = defaultRepo
		}
		rows = append(rows, types.RowModel{
			Title:       field("Title"),
			Description: field("Description"),
			Kind:        kind, // empty Kind is caught by structural validation
			Labels:      ParseLabels(field("Labels")),
			Assignee:    field("Assignee"),
			Milestone:   field("Milestone"),
			Repository:  repo,
			ParentRef:   field("Parent"),
			SourceLine:  line,
		})
	}

	return rows, diags
}

// ParseLabels decodes the semicolon-separated Labels column, trimming
// whitespace and dropping empty or duplicate entries while preserving order.
func ParseLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var labels []string
	for _, part := range strings.Split(s, ";") {
		label := strings.TrimSpace(part)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}

func isEmpty(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
