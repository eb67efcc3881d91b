// Package memory is the conversation store: prior turns are read
// before classification and the finalized user/assistant pair is
// written after a response passes validation. Three drivers share one
// interface: SQLite for single-node persistence, redis for shared
// context across instances, and an in-process map for tests and dev.
//
// Store failures are tolerated by the pipeline (a request proceeds
// with empty context), so drivers report errors rather than retrying
// internally.
package memory

import (
	"context"
	"fmt"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/errors"
	"github.com/otto-ai/otto/pkg/protocol"
)

// defaultContextTurns bounds context reads when the caller passes no
// explicit limit.
const defaultContextTurns = 10

// Store persists conversation turns per caller.
type Store interface {
	// GetContext returns up to limit prior turns for the caller,
	// oldest first. A caller with no history gets an empty slice,
	// not an error.
	GetContext(ctx context.Context, callerID string, limit int) ([]protocol.Turn, error)

	// Append records one finalized turn.
	Append(ctx context.Context, callerID string, turn protocol.Turn) error

	Close() error
}

// Open builds the store named by the config driver.
func Open(cfg config.MemoryConfig) (Store, error) {
	switch config.MemoryDriver(cfg.Driver) {
	case config.DriverSQLite, "":
		return OpenSQLite(cfg.Path)
	case config.DriverRedis:
		return OpenRedis(cfg.RedisURL, cfg.TTL())
	case config.DriverMemory:
		return NewMemStore(), nil
	default:
		return nil, errors.User(errors.CodeConfigInvalid,
			fmt.Sprintf("unknown memory driver %q", cfg.Driver))
	}
}
