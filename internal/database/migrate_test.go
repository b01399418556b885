package database

import (
	"strings"
	"testing"
)

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames(migrationFiles)
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("migrations not sorted: %v", names)
		}
	}
	for _, name := range names {
		if !strings.HasSuffix(name, ".sql") {
			t.Errorf("unexpected migration file %q", name)
		}
	}
}

func TestMigrationVersion(t *testing.T) {
	tests := map[string]string{
		"001_init.sql":              "001",
		"migrations/002_posts.sql":  "002",
		"010_add_index_on_user.sql": "010",
	}
	for name, want := range tests {
		if got := MigrationVersion(name); got != want {
			t.Errorf("MigrationVersion(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestInitMigrationKeepsParticipantUnique(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "PRIMARY KEY (conversation_id, user_id)") {
		t.Fatal("conversation_participants must be keyed by (conversation_id, user_id)")
	}
}
