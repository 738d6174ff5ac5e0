package agreement

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"rentfit/apperr"
	"rentfit/user"
	"rentfit/validation"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	if !validation.IsID(id) {
		return Detail{}, apperr.BadRequest(msgInvalidAgreementID)
	}
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Detail{}, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}
	return s.detail(ctx, a), nil
}

// List returns agreements matching every set filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	if f.TenancyID != "" && !validation.IsID(f.TenancyID) {
		return Page{}, apperr.BadRequest(msgInvalidTenancyID)
	}
	if f.TenantID != "" && !validation.IsID(f.TenantID) {
		return Page{}, apperr.BadRequest(msgInvalidTenantID)
	}
	if f.Status != "" && !f.Status.Valid() {
		return Page{}, apperr.BadRequest(fmt.Sprintf("Invalid agreement status %q", f.Status))
	}
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	return Page{
		Agreements: items,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

// Timeline lists the recorded lifecycle events of an agreement.
func (s *Service) Timeline(ctx context.Context, id string) ([]TimelineEvent, error) {
	if !validation.IsID(id) {
		return nil, apperr.BadRequest(msgInvalidAgreementID)
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, notFoundOr(err, ErrNotFound, msgAgreementNotFound)
	}
	events, err := s.store.ListTimeline(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "internal server error")
	}
	return events, nil
}

// detail resolves the creator, tenancy and signer identities of a. Lookups
// that fail leave the field empty; the agreement itself is always returned.
func (s *Service) detail(ctx context.Context, a Agreement) Detail {
	d := Detail{Agreement: a, SignerDetail: make([]SignerDetail, len(a.Signers))}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(4)

	if a.CreatedBy != nil {
		id := *a.CreatedBy
		g.Go(func() error {
			if u, ok := s.lookupUser(ctx, id); ok {
				mu.Lock()
				d.Creator = &u
				mu.Unlock()
			}
			return nil
		})
	}
	if a.TenancyID != nil && s.tenancies != nil {
		id := *a.TenancyID
		g.Go(func() error {
			t, err := s.tenancies.GetByID(ctx, id)
			if err != nil {
				s.logger.DebugContext(ctx, "agreement tenancy unresolved", "tenancy_id", id, "error", err)
				return nil
			}
			mu.Lock()
			d.Tenancy = &t
			mu.Unlock()
			return nil
		})
	}
	for i, sg := range a.Signers {
		d.SignerDetail[i] = SignerDetail{Signer: sg}
		g.Go(func() error {
			if u, ok := s.lookupUser(ctx, sg.UserID); ok {
				mu.Lock()
				d.SignerDetail[i].User = &u
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return d
}

func (s *Service) lookupUser(ctx context.Context, id string) (user.Summary, bool) {
	u, err := s.users.GetSummary(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "agreement user unresolved", "user_id", id, "error", err)
		return user.Summary{}, false
	}
	return u, true
}
