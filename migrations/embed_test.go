package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	// Given: The embedded filesystem
	// When: We read the directory
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded FS: %v", err)
	}

	// Then: It contains both schema migrations in order
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	want := []string{"001_initial_schema.sql", "002_sessions.sql"}
	if len(names) != len(want) {
		t.Fatalf("embedded files = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("embedded file %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestEmbeddedFS_MigrationFilesReadable(t *testing.T) {
	tests := []struct {
		file  string
		table string
	}{
		{"001_initial_schema.sql", "CREATE TABLE parts"},
		{"002_sessions.sql", "CREATE TABLE sessions"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			content, err := FS.ReadFile(tt.file)
			if err != nil {
				t.Fatalf("failed to read migration file: %v", err)
			}

			s := string(content)
			if !strings.Contains(s, "-- +goose Up") {
				t.Error("migration missing '-- +goose Up' directive")
			}
			if !strings.Contains(s, "-- +goose Down") {
				t.Error("migration missing '-- +goose Down' directive")
			}
			if !strings.Contains(s, tt.table) {
				t.Errorf("migration missing %q", tt.table)
			}
		})
	}
}
