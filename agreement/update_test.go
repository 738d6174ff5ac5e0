package agreement

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"rentfit/apperr"
	"rentfit/outbox"
	"rentfit/tenancy"
)

func TestUpdateAppliesWhitelistedFields(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)

	name := "Leave and Licence"
	version := 2
	status := StatusPendingSignature
	got, err := f.svc.Update(context.Background(), a.ID, UpdateInput{
		TemplateName: &name,
		Version:      &version,
		Status:       &status,
	}, f.ownerID)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.TemplateName != name || got.Version != 2 || got.Status != StatusPendingSignature {
		t.Fatalf("unexpected agreement %+v", got)
	}
	if got.PDFURL != a.PDFURL || got.TenantID != a.TenantID {
		t.Fatal("expected untouched fields preserved")
	}
	if evs := f.store.events(a.ID, EventStatusChanged); len(evs) != 1 {
		t.Fatalf("expected status change event, got %d", len(evs))
	}
	if evs := f.store.events(a.ID, EventUpdated); len(evs) != 1 {
		t.Fatalf("expected update event, got %d", len(evs))
	}
}

func TestUpdateRejectsBackwardTransition(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)
	a.Status = StatusSigned
	f.store.put(a)

	draft := StatusDraft
	_, err := f.svc.Update(context.Background(), a.ID, UpdateInput{Status: &draft}, f.ownerID)
	expectCode(t, err, apperr.CodeBadRequest, "Cannot change status from signed to draft")
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)
	ctx := context.Background()

	zero := 0
	_, err := f.svc.Update(ctx, a.ID, UpdateInput{Version: &zero}, "")
	expectCode(t, err, apperr.CodeBadRequest, "")

	blank := "  "
	_, err = f.svc.Update(ctx, a.ID, UpdateInput{PDFURL: &blank}, "")
	expectCode(t, err, apperr.CodeBadRequest, "")

	dup := []Signer{{UserID: f.ownerID}, {UserID: f.ownerID}}
	_, err = f.svc.Update(ctx, a.ID, UpdateInput{Signers: &dup}, "")
	expectCode(t, err, apperr.CodeBadRequest, msgDuplicateSigner)

	_, err = f.svc.Update(ctx, uuid.NewString(), UpdateInput{}, "")
	expectCode(t, err, apperr.CodeNotFound, msgAgreementNotFound)
}

func TestUpdateWithoutChangesSkipsWrite(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)

	got, err := f.svc.Update(context.Background(), a.ID, UpdateInput{}, "")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != a.ID {
		t.Fatalf("expected current agreement, got %+v", got)
	}
	if evs := f.store.events(a.ID, EventUpdated); len(evs) != 0 {
		t.Fatalf("expected no update event, got %d", len(evs))
	}
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, true)
	ctx := context.Background()

	if err := f.svc.Delete(ctx, a.ID, f.ownerID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := f.svc.Get(ctx, a.ID)
	expectCode(t, err, apperr.CodeNotFound, msgAgreementNotFound)

	last := f.outbox.msgs[len(f.outbox.msgs)-1]
	if last.topic != topicDeleted || last.payload["pdf_public_id"] != a.PDFPublicID {
		t.Fatalf("expected agreement.deleted with document id, got %+v", last)
	}

	err = f.svc.Delete(ctx, a.ID, f.ownerID)
	expectCode(t, err, apperr.CodeNotFound, msgAgreementNotFound)
}

func TestAttachTenancyLinksDraft(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)
	ctx := context.Background()

	got, err := f.svc.AttachTenancy(ctx, a.ID, f.tenancyID)
	if err != nil {
		t.Fatalf("AttachTenancy: %v", err)
	}
	if got.TenancyID == nil || *got.TenancyID != f.tenancyID {
		t.Fatalf("expected tenancy linked, got %v", got.TenancyID)
	}
	sum, ok := f.tenancies.summaries[f.tenancyID]
	if !ok || sum.AgreementID != a.ID || sum.PDFURL != a.PDFURL || sum.Version != 1 {
		t.Fatalf("expected agreement summary on tenancy, got %+v", sum)
	}
	if evs := f.store.events(a.ID, EventTenancyLinked); len(evs) != 1 {
		t.Fatalf("expected one link event, got %d", len(evs))
	}

	if _, err := f.svc.AttachTenancy(ctx, a.ID, f.tenancyID); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	if evs := f.store.events(a.ID, EventTenancyLinked); len(evs) != 1 {
		t.Fatalf("expected re-attach to skip event, got %d", len(evs))
	}
}

func TestAttachTenancyConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, true)
	ctx := context.Background()

	other := uuid.NewString()
	f.tenancies.rows[other] = tenancy.Tenancy{ID: other, OwnerID: f.ownerID, TenantID: f.tenantID, UnitID: f.unitID}

	_, err := f.svc.AttachTenancy(ctx, a.ID, other)
	expectCode(t, err, apperr.CodeConflict, "")

	_, err = f.svc.AttachTenancy(ctx, a.ID, uuid.NewString())
	expectCode(t, err, apperr.CodeNotFound, msgTenancyNotFound)

	foreign := uuid.NewString()
	f.tenancies.rows[foreign] = tenancy.Tenancy{ID: foreign, OwnerID: f.ownerID, TenantID: uuid.NewString(), UnitID: f.unitID}
	b := f.draft(t, false)
	_, err = f.svc.AttachTenancy(ctx, b.ID, foreign)
	expectCode(t, err, apperr.CodeBadRequest, "")
}

// A draft built from ad-hoc data is linked, signed by both parties and ends
// with its tenancy activated.
func TestAgreementLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.draft(t, false)
	if _, err := f.svc.AttachTenancy(ctx, a.ID, f.tenancyID); err != nil {
		t.Fatalf("AttachTenancy: %v", err)
	}
	pending := StatusPendingSignature
	if _, err := f.svc.Update(ctx, a.ID, UpdateInput{Status: &pending}, f.ownerID); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := f.svc.Sign(ctx, a.ID, f.ownerID, SignInput{Method: MethodESign}); err != nil {
		t.Fatalf("owner Sign: %v", err)
	}
	d, err := f.svc.Sign(ctx, a.ID, f.tenantID, SignInput{Method: MethodESign})
	if err != nil {
		t.Fatalf("tenant Sign: %v", err)
	}
	if d.Status != StatusSigned {
		t.Fatalf("expected signed, got %s", d.Status)
	}
	if len(f.activator.calls) != 1 || f.activator.calls[0] != f.tenancyID+"|"+a.ID {
		t.Fatalf("expected activation of linked tenancy, got %v", f.activator.calls)
	}

	_, err = f.svc.Sign(ctx, a.ID, f.tenantID, SignInput{})
	expectCode(t, err, apperr.CodeBadRequest, msgFullySigned)

	cancelled := StatusCancelled
	_, err = f.svc.Update(ctx, a.ID, UpdateInput{Status: &cancelled}, f.ownerID)
	expectCode(t, err, apperr.CodeBadRequest, "Cannot change status from signed to cancelled")
}

func TestHandleAgreementDeletedReleasesDocument(t *testing.T) {
	f := newFixture(t)

	msg := outbox.Message{
		ID:      "m1",
		Topic:   outbox.TopicAgreementDeleted,
		Payload: []byte(`{"agreement_id":"a1","pdf_public_id":"rentfit/agreements/doc-1"}`),
	}
	if err := f.svc.HandleAgreementDeleted(context.Background(), msg); err != nil {
		t.Fatalf("HandleAgreementDeleted: %v", err)
	}
	if len(f.objects.deleted) != 1 || f.objects.deleted[0] != "rentfit/agreements/doc-1" {
		t.Fatalf("expected document deleted, got %v", f.objects.deleted)
	}

	msg.Payload = []byte(`{`)
	if err := f.svc.HandleAgreementDeleted(context.Background(), msg); err == nil {
		t.Fatal("expected decode error")
	}
}
