// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/domain"
)

// Repository defines the interface for persisting devices and their credentials.
type Repository interface {
	credential.Adapter

	// GetDevice retrieves a device by its user ID. Returns nil, nil when absent.
	GetDevice(ctx context.Context, userID string) (*domain.Device, error)

	// UpsertDevice creates or updates a device record.
	UpsertDevice(ctx context.Context, device *domain.Device) error

	// TouchDevice updates the last_seen_at timestamp for a device.
	TouchDevice(ctx context.Context, userID string, lastSeen time.Time) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
