package storage

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/maruel/plancart/internal/jsonldb"
)

// entry is one key/value row in the JSONL file.
type entry struct {
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Modified time.Time `json:"modified"`
}

func (e *entry) Clone() *entry {
	c := *e
	return &c
}

func (e *entry) Validate() error {
	if e.Key == "" {
		return errEmptyKey
	}
	return nil
}

// minCompactRows is the log size below which the file is never compacted.
const minCompactRows = 1024

// JSONL is a Blobs implementation persisted in a single append-only JSONL
// file.
//
// Each Save appends one row; the last row for a key wins. The file is
// rewritten with only the live rows when it holds more stale rows than live
// ones, so a save costs one appended line, amortized.
//
// Values are stored as text, matching the textual layout of browser local
// storage.
type JSONL struct {
	table *jsonldb.Table[*entry]

	mu     sync.RWMutex
	latest map[string]*entry
}

// NewJSONL opens (or creates on first write) the JSONL file at path.
func NewJSONL(path string) (*JSONL, error) {
	table, err := jsonldb.NewTable[*entry](path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob table: %w", err)
	}
	j := &JSONL{table: table, latest: map[string]*entry{}}
	for e := range table.All() {
		j.latest[e.Key] = e
	}
	if table.Len() > len(j.latest) {
		if err := j.compactLocked(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Load implements Blobs.
func (j *JSONL) Load(_ context.Context, key string) ([]byte, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	e, ok := j.latest[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(e.Value), nil
}

// Save implements Blobs.
func (j *JSONL) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return errEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e := &entry{Key: key, Value: string(data), Modified: time.Now().UTC()}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.table.Append(e); err != nil {
		return err
	}
	j.latest[key] = e
	if n := j.table.Len(); n > minCompactRows && n > 2*len(j.latest) {
		if err := j.compactLocked(); err != nil {
			slog.WarnContext(ctx, "Failed to compact blob table", "err", err)
		}
	}
	return nil
}

// compactLocked rewrites the file with one row per key, ordered by key.
//
// Must be called with mu held, or before j is shared.
func (j *JSONL) compactLocked() error {
	rows := slices.SortedFunc(maps.Values(j.latest), func(a, b *entry) int {
		return cmp.Compare(a.Key, b.Key)
	})
	if err := j.table.Replace(rows); err != nil {
		return fmt.Errorf("failed to compact blob table: %w", err)
	}
	return nil
}

// Len returns the number of stored keys.
func (j *JSONL) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.latest)
}

var _ Blobs = (*JSONL)(nil)
