package agreement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rentfit/apperr"
	"rentfit/metrics"
	"rentfit/render"
	"rentfit/storage"
	"rentfit/tenancy"
	"rentfit/unit"
	"rentfit/user"
)

var tracer = otel.Tracer("rentfit/agreement")

// DefaultFolder is where agreement documents are stored.
const DefaultFolder = "rentfit/agreements"

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, a Agreement) (Agreement, error)
	GetByID(ctx context.Context, id string) (Agreement, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Agreement, error)
	List(ctx context.Context, f ListFilter) ([]Agreement, int, error)
	SaveSigning(ctx context.Context, tx pgx.Tx, a Agreement) error
	Update(ctx context.Context, tx pgx.Tx, a Agreement) (Agreement, error)
	Delete(ctx context.Context, tx pgx.Tx, id string) (Agreement, error)
	SetTenancyID(ctx context.Context, tx pgx.Tx, id, tenancyID string) error
	InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error
	AppendTimeline(ctx context.Context, tx pgx.Tx, ev TimelineEvent) error
	ListTimeline(ctx context.Context, agreementID string) ([]TimelineEvent, error)
}

// Enqueuer writes outbox messages inside a transaction.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload any) error
}

type UnitReader interface {
	GetByID(ctx context.Context, id string) (unit.Unit, error)
}

type TenancyStore interface {
	GetByID(ctx context.Context, id string) (tenancy.Tenancy, error)
	SetAgreementSummary(ctx context.Context, id string, summary tenancy.AgreementSummary) error
}

// Renderer turns template data into a document.
type Renderer interface {
	Render(ctx context.Context, data render.TemplateData) ([]byte, error)
}

// ObjectStore persists rendered documents.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error)
	Delete(ctx context.Context, publicID string, kind storage.ResourceKind) error
}

// TenancyActivator marks the tenancy behind a fully signed agreement active.
type TenancyActivator interface {
	Activate(ctx context.Context, tenancyID, agreementID string) (string, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Pool      TxBeginner
	Store     Store
	Outbox    Enqueuer
	Users     user.Reader
	Units     UnitReader
	Tenancies TenancyStore
	Renderer  Renderer
	Objects   ObjectStore
	Activator TenancyActivator
	Quorum    QuorumPolicy
	Metrics   *metrics.Agreements
	Logger    *slog.Logger
	Folder    string
}

// Service runs the agreement lifecycle: creation through render, upload and
// persist, and the signing state machine.
type Service struct {
	pool      TxBeginner
	store     Store
	outbox    Enqueuer
	users     user.Reader
	units     UnitReader
	tenancies TenancyStore
	renderer  Renderer
	objects   ObjectStore
	activator TenancyActivator
	quorum    QuorumPolicy
	metrics   *metrics.Agreements
	logger    *slog.Logger
	folder    string
	now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		pool:      d.Pool,
		store:     d.Store,
		outbox:    d.Outbox,
		users:     d.Users,
		units:     d.Units,
		tenancies: d.Tenancies,
		renderer:  d.Renderer,
		objects:   d.Objects,
		activator: d.Activator,
		quorum:    d.Quorum,
		metrics:   d.Metrics,
		logger:    d.Logger,
		folder:    d.Folder,
		now:       time.Now,
	}
	if s.quorum == nil {
		s.quorum = DefaultQuorum
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.folder == "" {
		s.folder = DefaultFolder
	}
	return s
}

// WithClock overrides the service clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create assembles template data from a tenancy or ad-hoc tenancy data,
// renders the document, uploads it and persists the agreement. When
// persistence fails the uploaded document is deleted again.
func (s *Service) Create(ctx context.Context, in CreateInput) (out Agreement, err error) {
	ctx, span := tracer.Start(ctx, "agreement.Create")
	defer func() { endSpan(span, err) }()

	if err := validateCreate(in); err != nil {
		return Agreement{}, err
	}

	src, err := s.resolveSource(ctx, in)
	if err != nil {
		return Agreement{}, err
	}
	data := s.templateData(in, src)

	start := time.Now()
	doc, err := s.renderer.Render(ctx, data)
	s.metrics.ObserveRender(start)
	if err != nil {
		s.metrics.IncCreateFailure("render")
		s.logger.ErrorContext(ctx, "agreement render failed", "tenant_id", src.tenant.ID, "error", err)
		return Agreement{}, apperr.Wrap(err, apperr.CodeDependencyFailed, "Failed to generate PDF: "+err.Error())
	}

	start = time.Now()
	up, err := s.objects.Upload(ctx, doc, storage.UploadOptions{
		Folder: s.folder,
		Kind:   storage.KindRaw,
		Tags:   []string{"agreement", "pdf"},
	})
	s.metrics.ObserveUpload(start)
	if err != nil {
		s.metrics.IncCreateFailure("upload")
		s.logger.ErrorContext(ctx, "agreement upload failed", "tenant_id", src.tenant.ID, "error", err)
		return Agreement{}, apperr.Wrap(err, apperr.CodeDependencyFailed, "Failed to upload PDF: "+err.Error())
	}
	span.SetAttributes(attribute.String("agreement.pdf_public_id", up.PublicID))

	rec := Agreement{
		TemplateName: in.TemplateName,
		StateCode:    in.StateCode,
		Clauses:      in.Clauses,
		PDFURL:       up.SecureURL,
		PDFPublicID:  up.PublicID,
		Version:      in.Version,
		CreatedBy:    optional(in.CreatedBy),
		TenancyID:    src.tenancyID,
		TenantID:     src.tenant.ID,
		Status:       in.Status,
		Signers:      in.Signers,
		Meta:         in.Meta,
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.Status == "" {
		rec.Status = StatusDraft
	}
	for _, sg := range rec.Signers {
		if sg.SignedAt != nil && (rec.LastSignedAt == nil || sg.SignedAt.After(*rec.LastSignedAt)) {
			t := *sg.SignedAt
			rec.LastSignedAt = &t
		}
	}

	created, err := s.persistNew(ctx, rec)
	if err != nil {
		s.metrics.IncCreateFailure("persist")
		s.discardUpload(ctx, up, err)
		return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "Failed to save agreement")
	}

	s.metrics.Created.Inc()
	s.logger.InfoContext(ctx, "agreement created",
		"agreement_id", created.ID,
		"tenant_id", created.TenantID,
		"tenancy_id", created.tenancyID(),
	)
	return created, nil
}

func (s *Service) persistNew(ctx context.Context, rec Agreement) (Agreement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.store.Insert(ctx, tx, rec)
	if err != nil {
		return Agreement{}, err
	}

	if err := s.store.AppendTimeline(ctx, tx, TimelineEvent{
		AgreementID: created.ID,
		Type:        EventCreated,
		ActorID:     created.CreatedBy,
		Payload: map[string]any{
			"tenant_id":     created.TenantID,
			"tenancy_id":    created.tenancyID(),
			"version":       created.Version,
			"pdf_public_id": created.PDFPublicID,
		},
	}); err != nil {
		return Agreement{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, topicCreated, map[string]any{
		"agreement_id": created.ID,
		"tenant_id":    created.TenantID,
		"tenancy_id":   created.tenancyID(),
		"pdf_url":      created.PDFURL,
	}); err != nil {
		return Agreement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, fmt.Errorf("agreement: commit create: %w", err)
	}
	return created, nil
}

// discardUpload deletes a document whose agreement could not be saved. If
// that fails too the document is orphaned and reported for reconciliation.
func (s *Service) discardUpload(ctx context.Context, up storage.UploadResult, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := s.objects.Delete(cctx, up.PublicID, storage.KindRaw); err != nil {
		s.metrics.OrphanedUploads.Inc()
		s.logger.ErrorContext(ctx, "orphaned agreement document",
			"public_id", up.PublicID,
			"url", up.SecureURL,
			"cause", cause,
			"error", err,
		)
		return
	}
	s.logger.WarnContext(ctx, "discarded agreement document after persist failure",
		"public_id", up.PublicID,
		"cause", cause,
	)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.CodeOf(err)))
	}
	span.End()
}

// notFoundOr maps a repository miss onto a 404 with msg and anything else
// onto an internal error.
func notFoundOr(err, sentinel error, msg string) error {
	if errors.Is(err, sentinel) {
		return apperr.Wrap(err, apperr.CodeNotFound, msg)
	}
	return apperr.Wrap(err, apperr.CodeInternal, "internal server error")
}
