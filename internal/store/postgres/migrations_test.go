package postgres

import "testing"

func TestPendingMigrations(t *testing.T) {
	pending, err := pendingMigrations(map[string]bool{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) == 0 {
		t.Fatal("expected embedded migrations to be discovered")
	}
	if pending[0] != "001_initial_schema.sql" {
		t.Errorf("expected initial schema first, got %q", pending[0])
	}
	for i := 1; i < len(pending); i++ {
		if pending[i-1] >= pending[i] {
			t.Errorf("expected lexical apply order, got %q before %q", pending[i-1], pending[i])
		}
	}
}

func TestPendingMigrationsSkipsApplied(t *testing.T) {
	applied := map[string]bool{"001_initial_schema.sql": true}

	pending, err := pendingMigrations(applied)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range pending {
		if applied[v] {
			t.Errorf("already-applied migration %q listed as pending", v)
		}
	}
}
