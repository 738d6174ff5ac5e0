package agreement

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rentfit/apperr"
	"rentfit/tenancy"
	"rentfit/validation"
)

// Update applies a whitelisted partial update. Status changes must follow
// CanTransition.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput, actorID string) (out Agreement, err error) {
	ctx, span := tracer.Start(ctx, "agreement.Update", trace.WithAttributes(attribute.String("agreement.id", id)))
	defer func() { endSpan(span, err) }()

	if !validation.IsID(id) {
		return Agreement{}, apperr.BadRequest(msgInvalidAgreementID)
	}
	if err := validateUpdate(in); err != nil {
		return Agreement{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	defer tx.Rollback(ctx)

	cur, err := s.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Agreement{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}

	next, changed := applyUpdate(cur, in)
	if next.Status != cur.Status && !CanTransition(cur.Status, next.Status) {
		return Agreement{}, apperr.BadRequest(fmt.Sprintf("Cannot change status from %s to %s", cur.Status, next.Status))
	}
	if len(changed) == 0 {
		return cur, nil
	}

	saved, err := s.store.Update(ctx, tx, next)
	if err != nil {
		return Agreement{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}

	actor := optional(actorID)
	if err := s.store.AppendTimeline(ctx, tx, TimelineEvent{
		AgreementID: id,
		Type:        EventUpdated,
		ActorID:     actor,
		Payload:     map[string]any{"fields": changed},
	}); err != nil {
		return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	if saved.Status != cur.Status {
		if err := s.store.AppendTimeline(ctx, tx, TimelineEvent{
			AgreementID: id,
			Type:        EventStatusChanged,
			ActorID:     actor,
			Payload:     map[string]any{"from": cur.Status, "to": saved.Status},
		}); err != nil {
			return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	s.logger.InfoContext(ctx, "agreement updated", "agreement_id", id, "fields", changed)
	return saved, nil
}

func validateUpdate(in UpdateInput) error {
	if in.Version != nil && *in.Version < 1 {
		return apperr.BadRequest("version must be at least 1")
	}
	if in.PDFURL != nil && strings.TrimSpace(*in.PDFURL) == "" {
		return apperr.BadRequest("pdfUrl must not be empty")
	}
	if in.Status != nil && !in.Status.Valid() {
		return apperr.BadRequest(fmt.Sprintf("Invalid agreement status %q", *in.Status))
	}
	if in.Signers != nil {
		return validateSigners(*in.Signers)
	}
	return nil
}

// applyUpdate returns a copy of a with in applied and the names of the
// fields that were set.
func applyUpdate(a Agreement, in UpdateInput) (Agreement, []string) {
	var changed []string
	if in.TemplateName != nil {
		a.TemplateName = *in.TemplateName
		changed = append(changed, "templateName")
	}
	if in.StateCode != nil {
		a.StateCode = *in.StateCode
		changed = append(changed, "stateCode")
	}
	if in.Clauses != nil {
		a.Clauses = *in.Clauses
		changed = append(changed, "clauses")
	}
	if in.PDFURL != nil {
		a.PDFURL = *in.PDFURL
		changed = append(changed, "pdfUrl")
	}
	if in.Version != nil {
		a.Version = *in.Version
		changed = append(changed, "version")
	}
	if in.Status != nil {
		a.Status = *in.Status
		changed = append(changed, "status")
	}
	if in.Signers != nil {
		a.Signers = *in.Signers
		changed = append(changed, "signers")
	}
	if in.Meta != nil {
		a.Meta = in.Meta
		changed = append(changed, "meta")
	}
	return a, changed
}

// Delete removes an agreement. Its stored document is released by the
// agreement.deleted consumer; a tenancy pointing at it keeps its summary.
func (s *Service) Delete(ctx context.Context, id, actorID string) (err error) {
	ctx, span := tracer.Start(ctx, "agreement.Delete", trace.WithAttributes(attribute.String("agreement.id", id)))
	defer func() { endSpan(span, err) }()

	if !validation.IsID(id) {
		return apperr.BadRequest(msgInvalidAgreementID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	defer tx.Rollback(ctx)

	a, err := s.store.Delete(ctx, tx, id)
	if err != nil {
		return notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}
	if err := s.outbox.Enqueue(ctx, tx, topicDeleted, map[string]any{
		"agreement_id":  a.ID,
		"tenancy_id":    a.tenancyID(),
		"pdf_public_id": a.PDFPublicID,
		"actor_id":      actorID,
	}); err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	s.logger.InfoContext(ctx, "agreement deleted", "agreement_id", id, "tenancy_id", a.tenancyID())
	return nil
}

// AttachTenancy links a draft created from ad-hoc tenancy data to the
// tenancy created for it afterwards, and records the agreement summary on
// the tenancy. Re-attaching the same tenancy is a no-op on the agreement.
func (s *Service) AttachTenancy(ctx context.Context, agreementID, tenancyID string) (out Agreement, err error) {
	ctx, span := tracer.Start(ctx, "agreement.AttachTenancy", trace.WithAttributes(
		attribute.String("agreement.id", agreementID),
		attribute.String("tenancy.id", tenancyID),
	))
	defer func() { endSpan(span, err) }()

	if !validation.IsID(agreementID) {
		return Agreement{}, apperr.BadRequest(msgInvalidAgreementID)
	}
	if !validation.IsID(tenancyID) {
		return Agreement{}, apperr.BadRequest(msgInvalidTenancyID)
	}

	t, err := s.tenancies.GetByID(ctx, tenancyID)
	if err != nil {
		return Agreement{}, notFoundOr(err, tenancy.ErrNotFound, msgTenancyNotFound)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	defer tx.Rollback(ctx)

	a, err := s.store.GetForUpdate(ctx, tx, agreementID)
	if err != nil {
		return Agreement{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}
	if a.TenancyID != nil && *a.TenancyID != t.ID {
		return Agreement{}, apperr.New(apperr.CodeConflict, "Agreement is already linked to another tenancy")
	}
	if t.TenantID != a.TenantID {
		return Agreement{}, apperr.BadRequest("Tenancy tenant does not match the agreement tenant")
	}

	if a.TenancyID == nil {
		if err := s.store.SetTenancyID(ctx, tx, a.ID, t.ID); err != nil {
			return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
		}
		if err := s.store.AppendTimeline(ctx, tx, TimelineEvent{
			AgreementID: a.ID,
			Type:        EventTenancyLinked,
			Payload:     map[string]any{"tenancy_id": t.ID},
		}); err != nil {
			return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
		}
		tid := t.ID
		a.TenancyID = &tid
	}
	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}

	if err := s.tenancies.SetAgreementSummary(ctx, t.ID, tenancy.AgreementSummary{
		AgreementID: a.ID,
		PDFURL:      a.PDFURL,
		Version:     a.Version,
		SignedAt:    a.LastSignedAt,
	}); err != nil {
		return Agreement{}, notFoundOr(err, tenancy.ErrNotFound, msgTenancyNotFound)
	}
	s.logger.InfoContext(ctx, "agreement linked to tenancy", "agreement_id", a.ID, "tenancy_id", t.ID)
	return a, nil
}
