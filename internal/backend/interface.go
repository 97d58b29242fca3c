// Package backend assembles the storage and messaging backends selected by configuration.
package backend

import (
	"context"

	"lifehub/internal/amqp"
	"lifehub/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the opened backends. Events is nil when AMQP is not configured.
type BackendResult struct {
	Store   storage.Store
	Events  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireAMQP turns an AMQP connection failure into an error instead of
	// running without events. The worker needs it, the API does not.
	RequireAMQP bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
