package agreement

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rentfit/apperr"
	"rentfit/validation"
)

// Sign records userID's signature. The agreement row is locked for the whole
// read-modify-write, so concurrent signers serialise instead of overwriting
// each other. Reaching quorum enqueues agreement.signed in the same
// transaction; the linked tenancy is then activated best effort and the
// outbox relay retries it if that fails.
func (s *Service) Sign(ctx context.Context, id, userID string, in SignInput) (out Detail, err error) {
	ctx, span := tracer.Start(ctx, "agreement.Sign", trace.WithAttributes(
		attribute.String("agreement.id", id),
		attribute.String("agreement.signer_id", userID),
	))
	defer func() { endSpan(span, err) }()

	if !validation.IsID(id) {
		return Detail{}, apperr.BadRequest(msgInvalidAgreementID)
	}
	if !validation.IsID(userID) {
		return Detail{}, apperr.BadRequest(msgInvalidUserID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Detail{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	defer tx.Rollback(ctx)

	if in.IdempotencyKey != "" {
		if err := s.store.InsertIdempotencyKey(ctx, tx, "sign:"+id+":"+in.IdempotencyKey); err != nil {
			if errors.Is(err, ErrDuplicateIdempotencyKey) {
				_ = tx.Rollback(ctx)
				return s.replaySign(ctx, id)
			}
			return Detail{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
		}
	}

	a, err := s.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Detail{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}
	if a.Status == StatusSigned && s.quorum.Met(a.Signers) {
		return Detail{}, apperr.BadRequest(msgFullySigned)
	}
	if a.Status == StatusCancelled {
		return Detail{}, apperr.BadRequest(msgSignCancelled)
	}

	method := in.Method
	if method == "" {
		method = MethodManual
	}
	if !method.Valid() {
		return Detail{}, apperr.BadRequest(fmt.Sprintf("Invalid signature method %q", method))
	}

	now := s.now().UTC()
	previous := a.Status
	a.Signers = upsertSigner(a.Signers, Signer{
		UserID:   userID,
		Name:     in.Name,
		Method:   method,
		SignedAt: &now,
		Meta:     in.Meta,
	})
	a.LastSignedAt = &now

	complete := s.quorum.Met(a.Signers)
	if complete {
		a.Status = StatusSigned
	} else {
		a.Status = StatusPendingSignature
	}

	if err := s.store.SaveSigning(ctx, tx, a); err != nil {
		return Detail{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}

	actor := userID
	if err := s.store.AppendTimeline(ctx, tx, TimelineEvent{
		AgreementID: a.ID,
		Type:        EventSigned,
		ActorID:     &actor,
		Payload: map[string]any{
			"user_id":         userID,
			"method":          string(method),
			"signed_count":    a.SignedCount(),
			"previous_status": string(previous),
			"status":          string(a.Status),
		},
	}); err != nil {
		return Detail{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}

	if complete {
		payload := map[string]any{"agreement_id": a.ID}
		if tid := a.tenancyID(); tid != "" {
			payload["tenancy_id"] = tid
		}
		if err := s.outbox.Enqueue(ctx, tx, topicSigned, payload); err != nil {
			return Detail{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Detail{}, apperr.Wrap(fmt.Errorf("agreement: commit sign: %w", err), apperr.CodeInternal, "internal server error")
	}

	s.metrics.Signatures.Inc()
	s.logger.InfoContext(ctx, "agreement signed",
		"agreement_id", a.ID,
		"user_id", userID,
		"status", a.Status,
		"signed_count", a.SignedCount(),
	)
	if complete {
		s.metrics.FullySigned.Inc()
		s.activateTenancy(ctx, a)
	}

	return s.detail(ctx, a), nil
}

// replaySign answers a retried sign request with the agreement as it stands.
func (s *Service) replaySign(ctx context.Context, id string) (Detail, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Detail{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}
	return s.detail(ctx, a), nil
}

// activateTenancy never fails the caller: the signature is already committed
// and the agreement.signed outbox message replays activation.
func (s *Service) activateTenancy(ctx context.Context, a Agreement) {
	if s.activator == nil {
		return
	}
	if _, err := s.activator.Activate(ctx, a.tenancyID(), a.ID); err != nil {
		s.metrics.TenancyActivationErr.Inc()
		s.logger.WarnContext(ctx, "tenancy activation failed, deferring to outbox",
			"agreement_id", a.ID,
			"tenancy_id", a.tenancyID(),
			"error", err,
		)
	}
}

// upsertSigner replaces the entry for next.UserID in place or appends it.
func upsertSigner(signers []Signer, next Signer) []Signer {
	out := make([]Signer, len(signers), len(signers)+1)
	copy(out, signers)
	for i := range out {
		if out[i].UserID == next.UserID {
			out[i] = next
			return out
		}
	}
	return append(out, next)
}
