package agreement

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rentfit/apperr"
	"rentfit/render"
	"rentfit/tenancy"
	"rentfit/unit"
	"rentfit/user"
	"rentfit/validation"
)

// source is the resolved origin of an agreement's parties and terms.
type source struct {
	tenancyID *string
	owner     user.Summary
	tenant    user.Summary
	unit      unit.Unit
	rent      tenancy.Rent
	deposit   *tenancy.Deposit
}

func validateCreate(in CreateInput) error {
	switch {
	case in.TenancyID == "" && in.TenancyData == nil:
		return apperr.BadRequest(msgSourceMissing)
	case in.TenancyID != "" && in.TenancyData != nil:
		return apperr.BadRequest(msgSourceAmbiguous)
	}
	if in.TenancyID != "" && !validation.IsID(in.TenancyID) {
		return apperr.BadRequest(msgInvalidTenancyID)
	}
	if in.CreatedBy != "" && !validation.IsID(in.CreatedBy) {
		return apperr.BadRequest(msgInvalidCreatedBy)
	}
	if in.Version < 0 {
		return apperr.BadRequest("Version must be at least 1")
	}
	if in.Status != "" && !in.Status.Valid() {
		return apperr.BadRequest(fmt.Sprintf("Invalid agreement status %q", in.Status))
	}
	if err := validateSigners(in.Signers); err != nil {
		return err
	}
	if td := in.TenancyData; td != nil {
		if !validation.IsID(td.OwnerID) {
			return apperr.BadRequest(msgInvalidOwnerData)
		}
		if !validation.IsID(td.TenantID) {
			return apperr.BadRequest(msgInvalidTenantData)
		}
		if !validation.IsID(td.UnitID) {
			return apperr.BadRequest(msgInvalidUnitData)
		}
		if td.Rent.Amount < 0 {
			return apperr.BadRequest("Rent amount must not be negative")
		}
		if td.Rent.DueDateDay < 0 || td.Rent.DueDateDay > 31 {
			return apperr.BadRequest("Rent due date day must be between 1 and 31")
		}
		if td.Deposit != nil && td.Deposit.Amount < 0 {
			return apperr.BadRequest("Deposit amount must not be negative")
		}
	}
	return nil
}

// validateSigners checks a caller-supplied signer list: well-formed ids, a
// known method, and at most one entry per user.
func validateSigners(signers []Signer) error {
	seen := make(map[string]struct{}, len(signers))
	for _, sg := range signers {
		if !validation.IsID(sg.UserID) {
			return apperr.BadRequest(msgInvalidSignerID)
		}
		if sg.Method != "" && !sg.Method.Valid() {
			return apperr.BadRequest(fmt.Sprintf("Invalid signature method %q", sg.Method))
		}
		if _, dup := seen[sg.UserID]; dup {
			return apperr.BadRequest(msgDuplicateSigner)
		}
		seen[sg.UserID] = struct{}{}
	}
	return nil
}

func (s *Service) resolveSource(ctx context.Context, in CreateInput) (source, error) {
	var (
		src                       source
		ownerID, tenantID, unitID string
	)
	if in.TenancyID != "" {
		t, err := s.tenancies.GetByID(ctx, in.TenancyID)
		if err != nil {
			return source{}, notFoundOr(err, tenancy.ErrNotFound, msgTenancyNotFound)
		}
		if t.OwnerID == "" || t.TenantID == "" {
			return source{}, apperr.BadRequest("Tenancy is missing owner or tenant information")
		}
		id := t.ID
		src.tenancyID = &id
		src.rent = t.Rent
		src.deposit = t.Deposit
		ownerID, tenantID, unitID = t.OwnerID, t.TenantID, t.UnitID
	} else {
		td := in.TenancyData
		src.rent = td.Rent
		src.deposit = td.Deposit
		ownerID, tenantID, unitID = td.OwnerID, td.TenantID, td.UnitID
	}

	var err error
	src.owner, src.tenant, src.unit, err = s.loadParties(ctx, ownerID, tenantID, unitID)
	if err != nil {
		return source{}, err
	}
	return src, nil
}

// loadParties fetches owner, tenant and unit concurrently. Failures are
// reported in that order so the caller sees a stable error.
func (s *Service) loadParties(ctx context.Context, ownerID, tenantID, unitID string) (user.Summary, user.Summary, unit.Unit, error) {
	var (
		g                   errgroup.Group
		owner, tenant       user.Summary
		u                   unit.Unit
		ownerErr, tenantErr error
		unitErr             error
	)
	g.Go(func() error {
		owner, ownerErr = s.users.GetSummary(ctx, ownerID)
		return nil
	})
	g.Go(func() error {
		tenant, tenantErr = s.users.GetSummary(ctx, tenantID)
		return nil
	})
	g.Go(func() error {
		u, unitErr = s.units.GetByID(ctx, unitID)
		return nil
	})
	_ = g.Wait()

	if ownerErr != nil {
		return user.Summary{}, user.Summary{}, unit.Unit{}, notFoundOr(ownerErr, user.ErrNotFound, msgOwnerNotFound)
	}
	if tenantErr != nil {
		return user.Summary{}, user.Summary{}, unit.Unit{}, notFoundOr(tenantErr, user.ErrNotFound, msgTenantNotFound)
	}
	if unitErr != nil {
		return user.Summary{}, user.Summary{}, unit.Unit{}, notFoundOr(unitErr, unit.ErrNotFound, msgUnitNotFound)
	}
	return owner, tenant, u, nil
}

func (s *Service) templateData(in CreateInput, src source) render.TemplateData {
	rent := src.rent.WithDefaults()
	data := render.TemplateData{
		TemplateName: in.TemplateName,
		StateCode:    in.StateCode,
		Version:      in.Version,
		CreatedAt:    render.FormatDate(s.now()),
		Rent: render.Rent{
			Amount:            rent.Amount,
			Cycle:             string(rent.Cycle),
			DueDateDay:        rent.DueDateDay,
			UtilitiesIncluded: rent.UtilitiesIncluded,
		},
		Unit: render.Unit{
			ID:    src.unit.ID,
			Title: src.unit.Title,
			Address: render.Address{
				Line1:   src.unit.Address.Line1,
				Line2:   src.unit.Address.Line2,
				City:    src.unit.Address.City,
				State:   src.unit.Address.State,
				Pincode: src.unit.Address.Pincode,
			},
		},
		Owner:  party(src.owner),
		Tenant: party(src.tenant),
		Meta:   in.Meta,
	}
	if src.deposit != nil {
		data.Deposit = &render.Deposit{Amount: src.deposit.Amount, Status: string(src.deposit.Status)}
	}
	for _, c := range in.Clauses {
		data.Clauses = append(data.Clauses, render.Clause{Key: c.Key, Text: c.Text})
	}
	for _, sg := range in.Signers {
		rs := render.Signer{UserID: sg.UserID, Name: sg.Name, Method: string(sg.Method)}
		if sg.SignedAt != nil {
			rs.SignedAt = render.FormatShortDate(*sg.SignedAt)
		}
		data.Signers = append(data.Signers, rs)
	}
	return render.Prepare(data)
}

func party(u user.Summary) render.Party {
	return render.Party{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
