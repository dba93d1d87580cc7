package jsonldb

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// testRow is a simple row type for testing.
type testRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func (r *testRow) Validate() error {
	if r.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}

// setupTable creates a table in the test's temp directory.
func setupTable(t *testing.T) (*Table[*testRow], string) {
	path := filepath.Join(t.TempDir(), "sub", "test.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table, path
}

func names(table *Table[*testRow]) []string {
	var out []string
	for r := range table.All() {
		out = append(out, r.Name)
	}
	return out
}

func TestTable(t *testing.T) {
	t.Run("Append", func(t *testing.T) {
		table, path := setupTable(t)
		for i, n := range []string{"One", "Two"} {
			if err := table.Append(&testRow{ID: i + 1, Name: n}); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}
		if got := table.Len(); got != 2 {
			t.Errorf("Len() = %d, want 2", got)
		}

		reloaded, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatalf("NewTable reload failed: %v", err)
		}
		if got := names(reloaded); !slices.Equal(got, []string{"One", "Two"}) {
			t.Errorf("reloaded rows = %v", got)
		}
	})

	t.Run("Append rejects invalid row", func(t *testing.T) {
		table, _ := setupTable(t)
		if err := table.Append(&testRow{Name: "no id"}); err == nil {
			t.Fatal("expected validation error")
		}
		if table.Len() != 0 {
			t.Errorf("Len() = %d, want 0", table.Len())
		}
	})

	t.Run("All returns clones", func(t *testing.T) {
		table, _ := setupTable(t)
		if err := table.Append(&testRow{ID: 1, Name: "Original"}); err != nil {
			t.Fatal(err)
		}
		for r := range table.All() {
			r.Name = "Modified"
		}
		if got := names(table); got[0] != "Original" {
			t.Errorf("All() returned reference instead of clone")
		}
	})

	t.Run("Find", func(t *testing.T) {
		table, _ := setupTable(t)
		_ = table.Append(&testRow{ID: 10, Name: "Ten"})
		_ = table.Append(&testRow{ID: 20, Name: "Twenty"})

		tests := []struct {
			name  string
			id    int
			found bool
		}{
			{"existing", 20, true},
			{"missing", 99, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, ok := table.Find(func(r *testRow) bool { return r.ID == tt.id })
				if ok != tt.found {
					t.Fatalf("Find(%d) found = %v, want %v", tt.id, ok, tt.found)
				}
				if ok && got.ID != tt.id {
					t.Errorf("Find(%d) = %+v", tt.id, got)
				}
			})
		}
	})

	t.Run("Modify", func(t *testing.T) {
		table, path := setupTable(t)
		_ = table.Append(&testRow{ID: 1, Name: "One"})

		err := table.Modify(func(rows []*testRow) ([]*testRow, error) {
			rows[0].Name = "Uno"
			return append(rows, &testRow{ID: 2, Name: "Dos"}), nil
		})
		if err != nil {
			t.Fatalf("Modify failed: %v", err)
		}
		reloaded, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		if got := names(reloaded); !slices.Equal(got, []string{"Uno", "Dos"}) {
			t.Errorf("rows = %v", got)
		}
	})

	t.Run("Modify error leaves table unchanged", func(t *testing.T) {
		table, _ := setupTable(t)
		_ = table.Append(&testRow{ID: 1, Name: "One"})
		wantErr := errors.New("boom")

		err := table.Modify(func(rows []*testRow) ([]*testRow, error) {
			rows[0].Name = "Changed"
			return nil, wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("Modify error = %v, want %v", err, wantErr)
		}
		if got := names(table); got[0] != "One" {
			t.Errorf("row mutated through failed Modify: %v", got)
		}
	})

	t.Run("Modify rejects invalid rows", func(t *testing.T) {
		table, path := setupTable(t)
		_ = table.Append(&testRow{ID: 1, Name: "One"})
		err := table.Modify(func(rows []*testRow) ([]*testRow, error) {
			return []*testRow{{Name: "invalid"}}, nil
		})
		if err == nil {
			t.Fatal("expected validation error")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"One"`) {
			t.Errorf("file rewritten despite validation error: %s", data)
		}
	})

	t.Run("Replace", func(t *testing.T) {
		table, _ := setupTable(t)
		_ = table.Append(&testRow{ID: 1, Name: "One"})
		if err := table.Replace(nil); err != nil {
			t.Fatal(err)
		}
		if table.Len() != 0 {
			t.Errorf("Len() = %d after Replace(nil)", table.Len())
		}
	})
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantLen int
		wantErr bool
	}{
		{"empty file", "", 0, false},
		{"blank lines skipped", "{\"id\":1,\"name\":\"a\"}\n\n{\"id\":2,\"name\":\"b\"}\n", 2, false},
		{"corrupt json", "{\"id\":1,\n", 0, true},
		{"invalid row", "{\"id\":0,\"name\":\"a\"}\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "t.jsonl")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			table, err := NewTable[*testRow](path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTable failed: %v", err)
			}
			if table.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", table.Len(), tt.wantLen)
			}
		})
	}
}
