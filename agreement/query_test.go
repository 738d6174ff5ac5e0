package agreement

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"rentfit/apperr"
)

func TestGetResolvesCreatorAndToleratesMissingUsers(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)
	stranger := uuid.NewString()
	if _, err := f.svc.Sign(context.Background(), a.ID, stranger, SignInput{}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	d, err := f.svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Creator == nil || d.Creator.ID != f.ownerID {
		t.Fatalf("expected creator resolved, got %+v", d.Creator)
	}
	if d.Tenancy != nil {
		t.Fatalf("expected no tenancy, got %+v", d.Tenancy)
	}
	if len(d.SignerDetail) != 1 || d.SignerDetail[0].User != nil || d.SignerDetail[0].UserID != stranger {
		t.Fatalf("expected unresolved signer kept, got %+v", d.SignerDetail)
	}
}

func TestGetErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), "abc")
	expectCode(t, err, apperr.CodeBadRequest, msgInvalidAgreementID)

	_, err = f.svc.Get(context.Background(), uuid.NewString())
	expectCode(t, err, apperr.CodeNotFound, msgAgreementNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var linked []Agreement
	for i := 0; i < 3; i++ {
		linked = append(linked, f.draft(t, true))
	}
	f.draft(t, false)

	page, err := f.svc.List(ctx, ListFilter{TenancyID: f.tenancyID, Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Total != 3 || page.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected pagination %+v", page.Pagination)
	}
	if len(page.Agreements) != 2 || page.Agreements[0].ID != linked[2].ID {
		t.Fatalf("expected newest first, got %+v", page.Agreements)
	}

	page, err = f.svc.List(ctx, ListFilter{TenantID: f.tenantID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Page != 1 || page.Pagination.Limit != 10 || page.Pagination.Total != 4 {
		t.Fatalf("expected defaults and 4 results, got %+v", page.Pagination)
	}

	page, err = f.svc.List(ctx, ListFilter{Status: StatusSigned})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Agreements) != 0 || page.Pagination.TotalPages != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
}

func TestListValidatesFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, ListFilter{TenancyID: "x"})
	expectCode(t, err, apperr.CodeBadRequest, msgInvalidTenancyID)

	_, err = f.svc.List(ctx, ListFilter{TenantID: "x"})
	expectCode(t, err, apperr.CodeBadRequest, msgInvalidTenantID)

	_, err = f.svc.List(ctx, ListFilter{Status: "archived"})
	expectCode(t, err, apperr.CodeBadRequest, "")

	page, err := f.svc.List(ctx, ListFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Pagination.Limit != maxLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxLimit, page.Pagination.Limit)
	}
}

func TestTimelineRecordsLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.draft(t, false)
	ctx := context.Background()

	for _, id := range []string{f.tenantID, f.ownerID} {
		if _, err := f.svc.Sign(ctx, a.ID, id, SignInput{}); err != nil {
			t.Fatalf("Sign: %v", err)
		}
	}

	evs, err := f.svc.Timeline(ctx, a.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	want := []string{EventCreated, EventSigned, EventSigned}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(evs))
	}
	for i, ev := range evs {
		if ev.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], ev.Type)
		}
	}
	if evs[2].Payload["status"] != string(StatusSigned) {
		t.Fatalf("expected final status in payload, got %v", evs[2].Payload)
	}

	_, err = f.svc.Timeline(ctx, uuid.NewString())
	expectCode(t, err, apperr.CodeNotFound, msgAgreementNotFound)
}
