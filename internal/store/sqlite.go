// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides rental persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rentals (
			bot_name TEXT PRIMARY KEY,
			connection_name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			owner_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			remaining_seconds INTEGER NOT NULL DEFAULT 0,
			last_active_at INTEGER NOT NULL,
			world TEXT,
			x REAL DEFAULT 0,
			y REAL DEFAULT 0,
			z REAL DEFAULT 0,
			yaw REAL DEFAULT 0,
			pitch REAL DEFAULT 0,
			spawn_world TEXT,
			spawn_x REAL DEFAULT 0,
			spawn_y REAL DEFAULT 0,
			spawn_z REAL DEFAULT 0,
			spawn_yaw REAL DEFAULT 0,
			spawn_pitch REAL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_rentals_owner
			ON rentals(owner_id);

		CREATE INDEX IF NOT EXISTS idx_rentals_status
			ON rentals(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Upsert inserts or replaces the record under its name.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *BotRecord) error {
	query := `
		INSERT OR REPLACE INTO rentals
		(bot_name, connection_name, owner_id, owner_name, status,
		 created_at, expires_at, remaining_seconds, last_active_at,
		 world, x, y, z, yaw, pitch,
		 spawn_world, spawn_x, spawn_y, spawn_z, spawn_yaw, spawn_pitch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	pos := rec.Position
	if pos == nil {
		pos = &Position{}
	}
	spawn := rec.SpawnPoint
	if spawn == nil {
		spawn = &Position{}
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.Name,
		rec.ConnectionName,
		rec.OwnerID.String(),
		rec.OwnerName,
		rec.Status,
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		rec.RemainingSeconds,
		rec.LastActiveAt.UnixMilli(),
		nullableWorld(rec.Position), pos.X, pos.Y, pos.Z, pos.Yaw, pos.Pitch,
		nullableWorld(rec.SpawnPoint), spawn.X, spawn.Y, spawn.Z, spawn.Yaw, spawn.Pitch,
	)
	if err != nil {
		return fmt.Errorf("upserting rental: %w", err)
	}

	s.logger.Debug("saved rental", "bot", rec.Name, "status", rec.Status)
	return nil
}

// Delete removes the record under the given name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rentals WHERE bot_name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting rental: %w", err)
	}
	s.logger.Debug("deleted rental", "bot", name)
	return nil
}

// LoadAll returns every persisted record, reclassifying stale ACTIVE records
// as EXPIRED and writing the correction back.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]*BotRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot_name, connection_name, owner_id, owner_name, status,
		       created_at, expires_at, remaining_seconds, last_active_at,
		       world, x, y, z, yaw, pitch,
		       spawn_world, spawn_x, spawn_y, spawn_z, spawn_yaw, spawn_pitch
		FROM rentals
	`)
	if err != nil {
		return nil, fmt.Errorf("querying rentals: %w", err)
	}
	defer rows.Close()

	var records []*BotRecord
	var stale []*BotRecord

	now := time.Now()
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		// An ACTIVE record whose lease ran out while we were down becomes
		// EXPIRED; it is never deleted and never silently reconnected.
		if rec.Status == "ACTIVE" && now.After(rec.ExpiresAt) {
			rec.Status = "EXPIRED"
			rec.RemainingSeconds = 0
			stale = append(stale, rec)
			s.logger.Info("rental expired while offline", "bot", rec.Name)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rentals: %w", err)
	}

	for _, rec := range stale {
		if err := s.Upsert(ctx, rec); err != nil {
			s.logger.Warn("failed to persist expiry reclassification", "bot", rec.Name, "error", err)
		}
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (*BotRecord, error) {
	var (
		rec                        BotRecord
		ownerID                    string
		createdAt, expiresAt       int64
		lastActiveAt               int64
		world, spawnWorld          sql.NullString
		x, y, z                    float64
		yaw, pitch                 float64
		sx, sy, sz                 float64
		syaw, spitch               float64
	)

	err := rows.Scan(
		&rec.Name, &rec.ConnectionName, &ownerID, &rec.OwnerName, &rec.Status,
		&createdAt, &expiresAt, &rec.RemainingSeconds, &lastActiveAt,
		&world, &x, &y, &z, &yaw, &pitch,
		&spawnWorld, &sx, &sy, &sz, &syaw, &spitch,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning rental: %w", err)
	}

	rec.OwnerID, err = uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("parsing owner id %q: %w", ownerID, err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.ExpiresAt = time.UnixMilli(expiresAt)
	rec.LastActiveAt = time.UnixMilli(lastActiveAt)

	if world.Valid {
		rec.Position = &Position{X: x, Y: y, Z: z, Yaw: float32(yaw), Pitch: float32(pitch), World: world.String}
	}
	if spawnWorld.Valid {
		rec.SpawnPoint = &Position{X: sx, Y: sy, Z: sz, Yaw: float32(syaw), Pitch: float32(spitch), World: spawnWorld.String}
	}

	return &rec, nil
}

// nullableWorld maps a missing position to a NULL world column, mirroring the
// presence check on load.
func nullableWorld(p *Position) any {
	if p == nil || p.World == "" {
		return nil
	}
	return p.World
}
