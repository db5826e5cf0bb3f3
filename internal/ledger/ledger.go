// Package ledger persists the rollback ledger: an append-only JSONL record
// of every remote object created during an import run, keyed by run ID.
// The file is durable so rollback stays possible after the process exits.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nimeshe/epicimport/internal/types"
)

// DefaultDir is the ledger directory relative to the working directory.
const DefaultDir = ".epicimport/runs"

// Ledger is the append-only record for one run. Appends are serialized and
// synced so a crash mid-run loses at most the entry being written.
type Ledger struct {
	mu    sync.Mutex
	runID string
	file  *os.File
}

// Open creates a new ledger file for a fresh run under dir.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	runID := uuid.NewString()
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_EXCL, 0o644) // #nosec G304 - path built from fresh UUID
	if err != nil {
		return nil, fmt.Errorf("creating ledger file: %w", err)
	}
	return &Ledger{runID: runID, file: f}, nil
}

// RunID returns the identifier under which this run's ledger is stored.
func (l *Ledger) RunID() string {
	return l.runID
}

// Record appends one created object and syncs it to disk before returning.
// The executor calls this after every successful create, before moving on,
// so the ledger always covers everything that exists remotely.
func (l *Ledger) Record(obj types.CreatedObject) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshaling ledger entry: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing ledger: %w", err)
	}
	return nil
}

// Close releases the underlying file. The ledger file itself is kept; it is
// the durable input to a later rollback.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Load reads the ledger for a completed (or interrupted) run, in creation
// order. Unparseable lines are skipped with a warning rather than blocking
// rollback of the entries that did survive.
func Load(dir, runID string) ([]types.CreatedObject, error) {
	path := filepath.Join(dir, runID+".jsonl")
	f, err := os.Open(path) // #nosec G304 - path under the ledger directory
	if err != nil {
		return nil, fmt.Errorf("opening ledger for run %s: %w", runID, err)
	}
	defer func() { _ = f.Close() }()

	var entries []types.CreatedObject
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var obj types.CreatedObject
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping corrupt ledger line %d in run %s: %v\n", line, runID, err)
			continue
		}
		entries = append(entries, obj)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("reading ledger for run %s: %w", runID, err)
	}
	return entries, nil
}

// ListRuns returns the run IDs present under dir, newest file first.
func ListRuns(dir string) ([]string, error) {
	infos, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing ledger directory: %w", err)
	}

	type run struct {
		id  string
		mod int64
	}
	var runs []run
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		fi, err := info.Info()
		if err != nil {
			continue
		}
		runs = append(runs, run{id: strings.TrimSuffix(name, ".jsonl"), mod: fi.ModTime().UnixNano()})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].mod > runs[j].mod })

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}
