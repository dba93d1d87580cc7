package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"
)

// Row is implemented by types stored in a Table.
type Row[T any] interface {
	// Clone returns a deep copy.
	Clone() T
	// Validate returns an error if the row must not be persisted.
	Validate() error
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path string
	mu   sync.RWMutex

	rows []T
}

// NewTable creates a new Table and loads all data from the file.
//
// A missing file is an empty table; the file is created on first write.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	table := &Table[T]{path: path}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows := []T{}
	scanner := bufio.NewScanner(f)
	// Cart blobs can exceed the default 64KiB token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(b, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row %d in %s: %w", line, t.path, err)
		}
		if err := row.Validate(); err != nil {
			return fmt.Errorf("invalid row %d in %s: %w", line, t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	t.rows = rows
	return nil
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Find returns a clone of the first row matching fn.
func (t *Table[T]) Find(fn func(T) bool) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, row := range t.rows {
		if fn(row) {
			return row.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Append validates a new row, adds it to the table and persists it.
func (t *Table[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: data file
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Join(fmt.Errorf("failed to write row: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Modify runs fn on a copy of the rows while holding the write lock and
// persists the returned rows.
//
// If fn returns an error, or persisting fails, the table is left unchanged.
func (t *Table[T]) Modify(fn func(rows []T) ([]T, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cp := make([]T, len(t.rows))
	for i, row := range t.rows {
		cp[i] = row.Clone()
	}
	next, err := fn(cp)
	if err != nil {
		return err
	}
	for _, row := range next {
		if err := row.Validate(); err != nil {
			return err
		}
	}
	if err := t.write(next); err != nil {
		return err
	}
	t.rows = next
	return nil
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	return t.Modify(func([]T) ([]T, error) {
		return rows, nil
	})
}

// write persists rows through a temporary file renamed over the table file.
//
// Must be called with the write lock held.
func (t *Table[T]) write(rows []T) error {
	f, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp table file: %w", err)
	}
	tmp := f.Name()
	w := bufio.NewWriter(f)
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return errors.Join(fmt.Errorf("failed to marshal row: %w", err), f.Close(), os.Remove(tmp))
		}
		if _, err := w.Write(data); err != nil {
			return errors.Join(fmt.Errorf("failed to write row: %w", err), f.Close(), os.Remove(tmp))
		}
		if err := w.WriteByte('\n'); err != nil {
			return errors.Join(fmt.Errorf("failed to write newline: %w", err), f.Close(), os.Remove(tmp))
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Join(fmt.Errorf("failed to flush writer: %w", err), f.Close(), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp table file: %w", err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename table file: %w", err), os.Remove(tmp))
	}
	return nil
}
