// Package actors drives the agreement service concurrently for stress runs.
package actors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"rentfit/agreement"
	"rentfit/apperr"
	"rentfit/outbox"
	"rentfit/storage"
	"rentfit/test/infra"
)

// Ledger is the set of agreement IDs created so far.
type Ledger struct {
	mu  sync.Mutex
	ids []string
}

func (l *Ledger) Add(id string) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
}

// Pick returns a random known agreement ID, or "" when none exist yet.
func (l *Ledger) Pick(rng *rand.Rand) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.ids) == 0 {
		return ""
	}
	return l.ids[rng.IntN(len(l.ids))]
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// expected reports whether err is a business rejection that concurrent
// actors are bound to provoke.
func expected(err error) bool {
	switch apperr.CodeOf(err) {
	// Killed backends surface as internal errors.
	case apperr.CodeBadRequest, apperr.CodeNotFound, apperr.CodeConflict, apperr.CodeDependencyFailed, apperr.CodeInternal:
		return true
	}
	return false
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Creator drafts agreements against the seeded tenancies.
func Creator(ctx context.Context, svc *agreement.Service, parties []infra.Parties, ledger *Ledger, rng *rand.Rand, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		p := parties[rng.IntN(len(parties))]
		a, err := svc.Create(ctx, agreement.CreateInput{
			TemplateName: "Standard Residential Lease",
			StateCode:    "KA",
			CreatedBy:    p.OwnerID,
			TenancyID:    p.TenancyID,
			Clauses:      []agreement.Clause{{Key: "notice", Text: "Either party may terminate with one month's notice."}},
		})
		switch {
		case err == nil:
			ledger.Add(a.ID)
		case ctx.Err() != nil:
			return nil
		case !expected(err):
			return fmt.Errorf("creator: %w", err)
		}
		time.Sleep(time.Duration(20+rng.IntN(30)) * time.Millisecond)
	}
	return nil
}

// Signer signs random agreements as random users. Several signers racing on
// the same agreement must each land exactly one signature entry.
func Signer(ctx context.Context, svc *agreement.Service, userIDs []string, ledger *Ledger, rng *rand.Rand, stop <-chan struct{}) error {
	methods := []agreement.SignMethod{agreement.MethodESign, agreement.MethodOTP, agreement.MethodManual}
	for !stopped(ctx, stop) {
		id := ledger.Pick(rng)
		if id == "" {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		_, err := svc.Sign(ctx, id, userIDs[rng.IntN(len(userIDs))], agreement.SignInput{
			Method:         methods[rng.IntN(len(methods))],
			IdempotencyKey: fmt.Sprintf("stress-%d", rng.IntN(50)),
		})
		if err != nil && ctx.Err() == nil && !expected(err) {
			return fmt.Errorf("signer: %w", err)
		}
		time.Sleep(time.Duration(5+rng.IntN(20)) * time.Millisecond)
	}
	return nil
}

// Canceller occasionally cancels agreements through the administrative update.
func Canceller(ctx context.Context, svc *agreement.Service, ledger *Ledger, rng *rand.Rand, stop <-chan struct{}) error {
	cancelled := agreement.StatusCancelled
	for !stopped(ctx, stop) {
		if id := ledger.Pick(rng); id != "" && rng.IntN(4) == 0 {
			_, err := svc.Update(ctx, id, agreement.UpdateInput{Status: &cancelled}, "")
			if err != nil && ctx.Err() == nil && !expected(err) {
				return fmt.Errorf("canceller: %w", err)
			}
		}
		time.Sleep(time.Duration(100+rng.IntN(100)) * time.Millisecond)
	}
	return nil
}

// OutboxWorker drains the outbox through the relay.
func OutboxWorker(ctx context.Context, relay *outbox.Relay, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		if _, err := relay.Poll(ctx); err != nil && ctx.Err() == nil {
			// Backends are killed by chaos; the next poll retries.
			time.Sleep(50 * time.Millisecond)
			continue
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// MemoryObjects is an in-process document store.
type MemoryObjects struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{docs: make(map[string][]byte)}
}

func (m *MemoryObjects) Upload(_ context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("%s/%d", opts.Folder, len(m.docs)+1)
	m.docs[id] = data
	return storage.UploadResult{SecureURL: "mem://" + id, PublicID: id, Format: "pdf", Bytes: len(data)}, nil
}

func (m *MemoryObjects) Delete(_ context.Context, publicID string, _ storage.ResourceKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, publicID)
	return nil
}

func (m *MemoryObjects) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}
