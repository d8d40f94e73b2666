package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// Set WHEEL_TEST_PG_DSN to run against a live server.
func newPostgresTestDB(t *testing.T) *PostgresDB {
	t.Helper()

	dsn := os.Getenv("WHEEL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("WHEEL_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	db, err := NewPostgresDB(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newPostgresTestDB(t)

	w := &Wheel{Name: "pg-" + uuid.NewString()}
	if err := db.CreateWheel(ctx, w); err != nil {
		t.Fatalf("CreateWheel: %v", err)
	}
	defer db.DeleteWheel(ctx, w.ID)

	slices := testSlices()
	if err := db.SaveSlices(ctx, w.ID, slices); err != nil {
		t.Fatalf("SaveSlices: %v", err)
	}
	got, err := db.LoadSlices(ctx, w.ID)
	if err != nil {
		t.Fatalf("LoadSlices: %v", err)
	}
	if len(got) != 3 || got[2].ID != slices[2].ID {
		t.Errorf("unexpected slices: %+v", got)
	}

	h := wheel.History{Wins: map[uuid.UUID]int{slices[0].ID: 2}, TotalSpins: 2}
	if err := db.SaveHistory(ctx, w.ID, h); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	loaded, err := db.LoadHistory(ctx, w.ID)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if loaded.TotalSpins != 2 || loaded.WinsFor(slices[0].ID) != 2 {
		t.Errorf("unexpected history: %+v", loaded)
	}

	spin := &Spin{WheelID: w.ID, SliceID: slices[0].ID, Label: slices[0].Label, TargetAngle: 1, TotalRotation: 26}
	if err := db.SaveSpin(ctx, spin); err != nil {
		t.Fatalf("SaveSpin: %v", err)
	}
	page, err := db.ListSpins(ctx, SpinsQuery{WheelID: w.ID})
	if err != nil {
		t.Fatalf("ListSpins: %v", err)
	}
	if page.TotalCount != 1 || page.Spins[0].ID != spin.ID {
		t.Errorf("unexpected spins page: %+v", page)
	}

	h.Wins[slices[0].ID], h.TotalSpins = 3, 3
	if err := db.CommitSpin(ctx, &Spin{WheelID: w.ID, SliceID: slices[0].ID, Label: slices[0].Label}, h); err != nil {
		t.Fatalf("CommitSpin: %v", err)
	}
	if loaded, _ := db.LoadHistory(ctx, w.ID); loaded.TotalSpins != 3 {
		t.Errorf("total_spins after CommitSpin = %d, want 3", loaded.TotalSpins)
	}

	if err := db.ReplaceSlices(ctx, w.ID, slices[:2], true); err != nil {
		t.Fatalf("ReplaceSlices: %v", err)
	}
	if got, _ := db.LoadSlices(ctx, w.ID); len(got) != 2 {
		t.Errorf("slices after ReplaceSlices = %d, want 2", len(got))
	}
	if loaded, _ := db.LoadHistory(ctx, w.ID); loaded.TotalSpins != 0 || len(loaded.Wins) != 0 {
		t.Errorf("history not reset: %+v", loaded)
	}

	if err := db.DeleteWheel(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWheel: %v", err)
	}
	if _, err := db.GetWheel(ctx, w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
