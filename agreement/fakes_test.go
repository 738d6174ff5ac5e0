package agreement

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rentfit/render"
	"rentfit/storage"
	"rentfit/tenancy"
	"rentfit/unit"
	"rentfit/user"
)

type fakePool struct {
	mu       sync.Mutex
	txs      []*fakeTx
	beginErr error
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakePool) last() *fakeTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.txs) == 0 {
		return nil
	}
	return f.txs[len(f.txs)-1]
}

// fakeTx records commit and rollback; every other pgx.Tx method panics.
type fakeTx struct {
	pgx.Tx
	committed bool
	rolled    bool
	commitErr error
}

func (f *fakeTx) Commit(context.Context) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolled = true
	}
	return nil
}

type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]Agreement
	timeline  []TimelineEvent
	keys      map[string]bool
	insertErr error
	now       time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows: make(map[string]Agreement),
		keys: make(map[string]bool),
		now:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) put(a Agreement) Agreement {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		f.now = f.now.Add(time.Minute)
		a.CreatedAt = f.now
	}
	f.rows[a.ID] = a
	return a
}

func (f *fakeStore) get(id string) (Agreement, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	return a, ok
}

func (f *fakeStore) events(agreementID, typ string) []TimelineEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []TimelineEvent
	for _, ev := range f.timeline {
		if ev.AgreementID == agreementID && (typ == "" || ev.Type == typ) {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeStore) Insert(_ context.Context, _ pgx.Tx, a Agreement) (Agreement, error) {
	if f.insertErr != nil {
		return Agreement{}, f.insertErr
	}
	return f.put(a), nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (Agreement, error) {
	a, ok := f.get(id)
	if !ok {
		return Agreement{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, _ pgx.Tx, id string) (Agreement, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) List(_ context.Context, lf ListFilter) ([]Agreement, int, error) {
	f.mu.Lock()
	var all []Agreement
	for _, a := range f.rows {
		if lf.TenancyID != "" && a.tenancyID() != lf.TenancyID {
			continue
		}
		if lf.TenantID != "" && a.TenantID != lf.TenantID {
			continue
		}
		if lf.Status != "" && a.Status != lf.Status {
			continue
		}
		all = append(all, a)
	}
	f.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (lf.Page - 1) * lf.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + lf.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (f *fakeStore) SaveSigning(_ context.Context, _ pgx.Tx, a Agreement) error {
	if _, ok := f.get(a.ID); !ok {
		return ErrNotFound
	}
	f.put(a)
	return nil
}

func (f *fakeStore) Update(_ context.Context, _ pgx.Tx, a Agreement) (Agreement, error) {
	if _, ok := f.get(a.ID); !ok {
		return Agreement{}, ErrNotFound
	}
	return f.put(a), nil
}

func (f *fakeStore) Delete(_ context.Context, _ pgx.Tx, id string) (Agreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return Agreement{}, ErrNotFound
	}
	delete(f.rows, id)
	return a, nil
}

func (f *fakeStore) SetTenancyID(_ context.Context, _ pgx.Tx, id, tenancyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if ok && a.TenancyID == nil {
		a.TenancyID = &tenancyID
		f.rows[id] = a
	}
	return nil
}

func (f *fakeStore) InsertIdempotencyKey(_ context.Context, _ pgx.Tx, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return ErrDuplicateIdempotencyKey
	}
	f.keys[key] = true
	return nil
}

func (f *fakeStore) AppendTimeline(_ context.Context, _ pgx.Tx, ev TimelineEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = int64(len(f.timeline) + 1)
	f.timeline = append(f.timeline, ev)
	return nil
}

func (f *fakeStore) ListTimeline(_ context.Context, agreementID string) ([]TimelineEvent, error) {
	return f.events(agreementID, ""), nil
}

type enqueued struct {
	topic   string
	payload map[string]any
}

type fakeOutbox struct {
	mu   sync.Mutex
	msgs []enqueued
}

func (f *fakeOutbox) Enqueue(_ context.Context, _ pgx.Tx, topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := payload.(map[string]any)
	f.msgs = append(f.msgs, enqueued{topic: topic, payload: p})
	return nil
}

func (f *fakeOutbox) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.topic)
	}
	return out
}

type fakeUsers map[string]user.Summary

func (f fakeUsers) GetSummary(_ context.Context, id string) (user.Summary, error) {
	u, ok := f[id]
	if !ok {
		return user.Summary{}, user.ErrNotFound
	}
	return u, nil
}

type fakeUnits map[string]unit.Unit

func (f fakeUnits) GetByID(_ context.Context, id string) (unit.Unit, error) {
	u, ok := f[id]
	if !ok {
		return unit.Unit{}, unit.ErrNotFound
	}
	return u, nil
}

type fakeTenancies struct {
	mu        sync.Mutex
	rows      map[string]tenancy.Tenancy
	summaries map[string]tenancy.AgreementSummary
}

func (f *fakeTenancies) GetByID(_ context.Context, id string) (tenancy.Tenancy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return tenancy.Tenancy{}, tenancy.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenancies) SetAgreementSummary(_ context.Context, id string, s tenancy.AgreementSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return tenancy.ErrNotFound
	}
	if f.summaries == nil {
		f.summaries = make(map[string]tenancy.AgreementSummary)
	}
	f.summaries[id] = s
	return nil
}

type fakeRenderer struct {
	got render.TemplateData
	err error
}

func (f *fakeRenderer) Render(_ context.Context, data render.TemplateData) ([]byte, error) {
	f.got = data
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake"), nil
}

type fakeObjects struct {
	uploads   int
	deleted   []string
	uploadErr error
	deleteErr error
}

func (f *fakeObjects) Upload(_ context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error) {
	if f.uploadErr != nil {
		return storage.UploadResult{}, f.uploadErr
	}
	if len(data) == 0 {
		return storage.UploadResult{}, errors.New("empty document")
	}
	f.uploads++
	id := opts.Folder + "/doc-" + uuid.NewString()
	return storage.UploadResult{SecureURL: "https://res.example.com/raw/upload/" + id + ".pdf", PublicID: id}, nil
}

func (f *fakeObjects) Delete(_ context.Context, publicID string, _ storage.ResourceKind) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, publicID)
	return nil
}

type fakeActivator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeActivator) Activate(_ context.Context, tenancyID, agreementID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenancyID+"|"+agreementID)
	if f.err != nil {
		return "", f.err
	}
	return tenancyID, nil
}
