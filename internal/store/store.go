// ABOUTME: Store interface and record types for rental persistence
// ABOUTME: Defines BotRecord and the narrow load-all/upsert/delete contract

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Position is a saved world location.
type Position struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	World      string
}

// BotRecord is the persisted form of a rented bot, keyed by Name.
type BotRecord struct {
	Name           string
	ConnectionName string
	OwnerID        uuid.UUID
	OwnerName      string

	Status           string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RemainingSeconds int64
	LastActiveAt     time.Time

	Position   *Position
	SpawnPoint *Position
}

// Store is the persistence gateway for bot records. Implementations must be
// safe for concurrent use.
type Store interface {
	// LoadAll returns every persisted record. Records saved as ACTIVE whose
	// expiry has already passed are reclassified as EXPIRED (remaining time
	// zeroed) before being returned, and the correction is written back.
	LoadAll(ctx context.Context) ([]*BotRecord, error)

	// Upsert inserts or replaces the record under its name.
	Upsert(ctx context.Context, rec *BotRecord) error

	// Delete removes the record under the given name. Deleting a missing
	// record is not an error.
	Delete(ctx context.Context, name string) error

	Close() error
}
