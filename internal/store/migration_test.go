package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationIdempotency(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wheel.db")

	db, err := NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("Failed to migrate (pass %d): %v", i+1, err)
		}
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("Expected schema version 2, got %d", version)
	}

	w := &Wheel{Name: "after-migrations"}
	if err := db.CreateWheel(ctx, w); err != nil {
		t.Fatalf("Failed to create wheel after repeated migrations: %v", err)
	}
	if _, err := db.GetWheel(ctx, w.ID); err != nil {
		t.Fatalf("Failed to read wheel after repeated migrations: %v", err)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data", "wheel.db")

	db, err := Open(ctx, Options{Driver: DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}

	if _, err := Open(ctx, Options{Driver: "mysql"}); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
