// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers round-trips, deletes, and stale-lease reclassification on load

package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rentals.db")
	s, err := NewSQLiteStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(name string) *BotRecord {
	now := time.Now().Truncate(time.Millisecond)
	return &BotRecord{
		Name:             name,
		ConnectionName:   name,
		OwnerID:          uuid.New(),
		OwnerName:        "Steve",
		Status:           "ACTIVE",
		CreatedAt:        now,
		ExpiresAt:        now.Add(2 * time.Hour),
		RemainingSeconds: 0,
		LastActiveAt:     now,
		Position:         &Position{X: 100.5, Y: 64, Z: -20.25, Yaw: 90, Pitch: -10, World: "world"},
		SpawnPoint:       &Position{X: 0.5, Y: 70, Z: 0.5, World: "world"},
	}
}

func TestCreatesParentDirectories(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "nested", "deep", "rentals.db")

	s, err := NewSQLiteStore(path, testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestUpsertAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("Bot_Alice")
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.Name != rec.Name {
		t.Errorf("name = %q, want %q", got.Name, rec.Name)
	}
	if got.OwnerID != rec.OwnerID {
		t.Errorf("owner id = %v, want %v", got.OwnerID, rec.OwnerID)
	}
	if got.Status != "ACTIVE" {
		t.Errorf("status = %q, want ACTIVE", got.Status)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("expires at = %v, want %v", got.ExpiresAt, rec.ExpiresAt)
	}
	if got.Position == nil || got.Position.X != 100.5 || got.Position.World != "world" {
		t.Errorf("position = %+v, want %+v", got.Position, rec.Position)
	}
	if got.SpawnPoint == nil || got.SpawnPoint.Y != 70 {
		t.Errorf("spawn point = %+v, want %+v", got.SpawnPoint, rec.SpawnPoint)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("Bot_Alice")
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	rec.Status = "STOPPED"
	rec.RemainingSeconds = 3600
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	records, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after replace, got %d", len(records))
	}
	if records[0].Status != "STOPPED" {
		t.Errorf("status = %q, want STOPPED", records[0].Status)
	}
	if records[0].RemainingSeconds != 3600 {
		t.Errorf("remaining seconds = %d, want 3600", records[0].RemainingSeconds)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	if err := s.Delete(context.Background(), "never-existed"); err != nil {
		t.Errorf("Delete of missing record returned error: %v", err)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, testRecord("Bot_Alice")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Delete(ctx, "Bot_Alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	records, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records after delete, got %d", len(records))
	}
}

func TestLoadReclassifiesStaleActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("Bot_Stale")
	rec.ExpiresAt = time.Now().Add(-10 * time.Minute)
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Status != "EXPIRED" {
		t.Errorf("status = %q, want EXPIRED", records[0].Status)
	}
	if records[0].RemainingSeconds != 0 {
		t.Errorf("remaining seconds = %d, want 0", records[0].RemainingSeconds)
	}

	// The correction is persisted, so a fresh load sees EXPIRED directly.
	again, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("second LoadAll failed: %v", err)
	}
	if again[0].Status != "EXPIRED" {
		t.Errorf("reclassification not persisted, status = %q", again[0].Status)
	}
}

func TestLoadKeepsStoppedRecordsStopped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("Bot_Frozen")
	rec.Status = "STOPPED"
	rec.ExpiresAt = time.Now().Add(-24 * time.Hour)
	rec.RemainingSeconds = 7200
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if records[0].Status != "STOPPED" {
		t.Errorf("status = %q, want STOPPED", records[0].Status)
	}
	if records[0].RemainingSeconds != 7200 {
		t.Errorf("remaining seconds = %d, want 7200", records[0].RemainingSeconds)
	}
}
