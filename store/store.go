// Package store persists the previous cache plan of each session so that
// cache points stay stable across process restarts.
package store

import (
	"context"
	"fmt"
	"slices"
	"switchboard/core/cache"
	"time"
)

// Kind names a plan store implementation.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Store is a cache.PlanStore that can also drop stale sessions.
type Store interface {
	cache.PlanStore
	// Prune removes sessions whose plan was last saved before cutoff.
	Prune(ctx context.Context, cutoff time.Time, dryRun bool) (PruneResult, error)
	Close() error
}

// PruneResult reports what a Prune call removed.
type PruneResult struct {
	Deleted int
	// Errors lists non-fatal failures for individual sessions.
	// Fatal errors are returned from Prune itself.
	Errors []string
}

// Options selects and configures a store.
type Options struct {
	Kind Kind
	Dir  string // KindFile
	Path string // KindSQLite
}

// Open returns the store named by opts.Kind. An empty kind means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindFile:
		return NewFile(opts.Dir)
	case KindSQLite:
		return OpenSQLite(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unknown plan store %q", opts.Kind)
	}
}

// validPlan rejects boundaries that are not strictly increasing and non-negative.
func validPlan(plan []int) error {
	for i, b := range plan {
		if b < 0 {
			return fmt.Errorf("invalid plan: negative boundary %d", b)
		}
		if i > 0 && b <= plan[i-1] {
			return fmt.Errorf("invalid plan: boundaries not strictly increasing at %d", i)
		}
	}
	return nil
}

func clonePlan(plan []int) []int {
	if len(plan) == 0 {
		return nil
	}
	return slices.Clone(plan)
}
