package agreement

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rentfit/outbox"
	"rentfit/tenancy"
	"rentfit/test/infra"
	"rentfit/unit"
	"rentfit/user"
)

// integrationPool connects to DATABASE_URL in an isolated schema with the
// embedded migrations applied.
func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})
	return pool
}

func integrationService(pool *pgxpool.Pool) (*Service, *tenancy.Repository) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tenancies := tenancy.NewRepository(pool)
	svc := NewService(Deps{
		Pool:      pool,
		Store:     NewRepository(pool),
		Outbox:    outbox.NewRepository(),
		Users:     user.NewRepository(pool),
		Units:     unit.NewRepository(pool),
		Tenancies: tenancies,
		Renderer:  &fakeRenderer{},
		Objects:   &fakeObjects{},
		Activator: tenancy.NewActivator(tenancies, logger),
		Logger:    logger,
	})
	return svc, tenancies
}

func TestRepositoryRoundTrip_Integration(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	p, err := infra.SeedParties(ctx, pool)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewRepository(pool)

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	signedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Agreement{
		TemplateName: "Lease",
		StateCode:    "KA",
		Clauses:      []Clause{{Key: "a", Text: "first"}, {Key: "b", Text: "second"}},
		PDFURL:       "https://res.example.com/doc.pdf",
		PDFPublicID:  "rentfit/agreements/doc",
		Version:      1,
		CreatedBy:    &p.OwnerID,
		TenancyID:    &p.TenancyID,
		TenantID:     p.TenantID,
		Status:       StatusPendingSignature,
		Signers:      []Signer{{UserID: p.OwnerID, Method: MethodOTP, SignedAt: &signedAt, Meta: map[string]any{"ip": "10.0.0.1"}}},
		LastSignedAt: &signedAt,
		Meta:         map[string]any{"source": "integration"},
	}
	created, err := repo.Insert(ctx, tx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Clauses) != 2 || got.Clauses[1].Text != "second" {
		t.Fatalf("expected clause order kept, got %+v", got.Clauses)
	}
	if len(got.Signers) != 1 || !got.Signers[0].SignedAt.Equal(signedAt) || got.Signers[0].Meta["ip"] != "10.0.0.1" {
		t.Fatalf("unexpected signers %+v", got.Signers)
	}
	if got.TenancyID == nil || *got.TenancyID != p.TenancyID || got.Meta["source"] != "integration" {
		t.Fatalf("unexpected agreement %+v", got)
	}

	page, total, err := repo.List(ctx, ListFilter{TenantID: p.TenantID, Status: StatusPendingSignature, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(page) != 1 || page[0].ID != created.ID {
		t.Fatalf("expected one listed agreement, got %d %+v", total, page)
	}

	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.InsertIdempotencyKey(ctx, tx, "k1"); err != nil {
		t.Fatalf("first key: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	tx, err = pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	if err := repo.InsertIdempotencyKey(ctx, tx, "k1"); err != ErrDuplicateIdempotencyKey {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

// Two parties signing at the same moment must both land; the row lock makes
// the second signer see the first signature.
func TestConcurrentSigning_Integration(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	p, err := infra.SeedParties(ctx, pool)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc, tenancies := integrationService(pool)

	a, err := svc.Create(ctx, CreateInput{TemplateName: "Lease", TenancyID: p.TenancyID, CreatedBy: p.OwnerID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []string{p.OwnerID, p.TenantID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Sign(ctx, a.ID, id, SignInput{Method: MethodESign})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
	}

	d, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != StatusSigned || d.SignedCount() != 2 {
		t.Fatalf("expected signed with two signatures, got %s with %d", d.Status, d.SignedCount())
	}
	if d.Creator == nil || d.Creator.ID != p.OwnerID {
		t.Fatalf("expected creator resolved, got %+v", d.Creator)
	}

	tn, err := tenancies.GetByID(ctx, p.TenancyID)
	if err != nil {
		t.Fatalf("get tenancy: %v", err)
	}
	if tn.Status != tenancy.StatusActive {
		t.Fatalf("expected tenancy active, got %s", tn.Status)
	}

	evs, err := svc.Timeline(ctx, a.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected created plus two signed events, got %d", len(evs))
	}

	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE topic = $1 AND status = 'pending'`, outbox.TopicAgreementSigned).Scan(&pending); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected one agreement.signed message, got %d", pending)
	}
}

func TestAttachTenancyAndDelete_Integration(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()
	p, err := infra.SeedParties(ctx, pool)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc, tenancies := integrationService(pool)

	a, err := svc.Create(ctx, CreateInput{
		TemplateName: "Lease",
		TenancyData:  &TenancyData{OwnerID: p.OwnerID, TenantID: p.TenantID, UnitID: p.UnitID, Rent: tenancy.Rent{Amount: 18000}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AttachTenancy(ctx, a.ID, p.TenancyID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	tn, err := tenancies.GetByID(ctx, p.TenancyID)
	if err != nil {
		t.Fatalf("get tenancy: %v", err)
	}
	if tn.Agreement == nil || tn.Agreement.AgreementID != a.ID {
		t.Fatalf("expected agreement summary on tenancy, got %+v", tn.Agreement)
	}

	if err := svc.Delete(ctx, a.ID, p.OwnerID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, a.ID); err == nil {
		t.Fatal("expected deleted agreement to be gone")
	}
}
