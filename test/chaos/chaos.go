// Package chaos injects infrastructure faults into stress runs.
package chaos

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rentfit/storage"
)

// TerminateRandomBackend occasionally kills a backend connection of the
// current database, so in-flight transactions fail mid-way.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.IntN(5) == 0 {
				_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = current_database() AND pid <> pg_backend_pid() ORDER BY random() LIMIT 1`)
			}
		}
	}
}

// ErrInjected is returned by FlakyObjects when it decides to fail.
var ErrInjected = errors.New("chaos: injected storage failure")

// FlakyObjects fails a fraction of uploads and deletes of the wrapped store.
type FlakyObjects struct {
	Next interface {
		Upload(ctx context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error)
		Delete(ctx context.Context, publicID string, kind storage.ResourceKind) error
	}
	FailRate float64

	mu       sync.Mutex
	failures int
}

func (f *FlakyObjects) fail() bool {
	if rand.Float64() >= f.FailRate {
		return false
	}
	f.mu.Lock()
	f.failures++
	f.mu.Unlock()
	return true
}

func (f *FlakyObjects) Upload(ctx context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error) {
	if f.fail() {
		return storage.UploadResult{}, ErrInjected
	}
	return f.Next.Upload(ctx, data, opts)
}

func (f *FlakyObjects) Delete(ctx context.Context, publicID string, kind storage.ResourceKind) error {
	if f.fail() {
		return ErrInjected
	}
	return f.Next.Delete(ctx, publicID, kind)
}

// Failures is the number of injected faults so far.
func (f *FlakyObjects) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}
