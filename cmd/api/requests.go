package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"rentfit/agreement"
	"rentfit/apperr"
	"rentfit/tenancy"
	"rentfit/validation"
)

const maxBodyBytes = 1 << 20

type clauseRequest struct {
	Key  string `json:"key" validate:"max=100"`
	Text string `json:"text" validate:"notblank"`
}

type signerRequest struct {
	UserID   string         `json:"userId" validate:"required"`
	Name     string         `json:"name" validate:"max=200"`
	Method   string         `json:"method" validate:"omitempty,oneof=esign otp manual"`
	SignedAt *time.Time     `json:"signedAt"`
	Meta     map[string]any `json:"meta"`
}

type tenancyDataRequest struct {
	OwnerID  string           `json:"ownerId" validate:"required"`
	TenantID string           `json:"tenantId" validate:"required"`
	UnitID   string           `json:"unitId" validate:"required"`
	Rent     *tenancy.Rent    `json:"rent" validate:"required"`
	Deposit  *tenancy.Deposit `json:"deposit"`
}

type createAgreementRequest struct {
	TemplateName string              `json:"templateName" validate:"max=200"`
	StateCode    string              `json:"stateCode" validate:"max=10"`
	Clauses      []clauseRequest     `json:"clauses" validate:"dive"`
	Version      int                 `json:"version" validate:"omitempty,min=1"`
	CreatedBy    string              `json:"createdBy"`
	TenancyID    string              `json:"tenancyId"`
	TenancyData  *tenancyDataRequest `json:"tenancyData"`
	Status       string              `json:"status" validate:"omitempty,oneof=draft pending_signature signed cancelled"`
	Signers      []signerRequest     `json:"signers" validate:"dive"`
	Meta         map[string]any      `json:"meta"`
}

func (r createAgreementRequest) input() agreement.CreateInput {
	in := agreement.CreateInput{
		TemplateName: r.TemplateName,
		StateCode:    r.StateCode,
		Clauses:      clauses(r.Clauses),
		Version:      r.Version,
		CreatedBy:    r.CreatedBy,
		TenancyID:    r.TenancyID,
		Status:       agreement.Status(r.Status),
		Signers:      signers(r.Signers),
		Meta:         r.Meta,
	}
	if td := r.TenancyData; td != nil {
		in.TenancyData = &agreement.TenancyData{
			OwnerID:  td.OwnerID,
			TenantID: td.TenantID,
			UnitID:   td.UnitID,
			Rent:     *td.Rent,
			Deposit:  td.Deposit,
		}
	}
	return in
}

type updateAgreementRequest struct {
	TemplateName *string          `json:"templateName" validate:"omitempty,max=200"`
	StateCode    *string          `json:"stateCode" validate:"omitempty,max=10"`
	Clauses      *[]clauseRequest `json:"clauses" validate:"omitempty,dive"`
	PDFURL       *string          `json:"pdfUrl" validate:"omitempty,url"`
	Version      *int             `json:"version" validate:"omitempty,min=1"`
	Status       *string          `json:"status" validate:"omitempty,oneof=draft pending_signature signed cancelled"`
	Signers      *[]signerRequest `json:"signers" validate:"omitempty,dive"`
	Meta         map[string]any   `json:"meta"`
}

func (r updateAgreementRequest) input() agreement.UpdateInput {
	in := agreement.UpdateInput{
		TemplateName: r.TemplateName,
		StateCode:    r.StateCode,
		PDFURL:       r.PDFURL,
		Version:      r.Version,
		Meta:         r.Meta,
	}
	if r.Clauses != nil {
		c := clauses(*r.Clauses)
		in.Clauses = &c
	}
	if r.Status != nil {
		st := agreement.Status(*r.Status)
		in.Status = &st
	}
	if r.Signers != nil {
		sg := signers(*r.Signers)
		in.Signers = &sg
	}
	return in
}

type signAgreementRequest struct {
	UserID string         `json:"userId"`
	Name   string         `json:"name" validate:"max=200"`
	Method string         `json:"method" validate:"omitempty,oneof=esign otp manual"`
	Meta   map[string]any `json:"meta"`
}

type attachTenancyRequest struct {
	TenancyID string `json:"tenancyId" validate:"required"`
}

type listAgreementsQuery struct {
	Page      int    `json:"page" validate:"min=1"`
	Limit     int    `json:"limit" validate:"min=1,max=100"`
	TenancyID string `json:"tenancyId"`
	TenantID  string `json:"tenantId"`
	Status    string `json:"status" validate:"omitempty,oneof=draft pending_signature signed cancelled"`
}

func parseListQuery(q url.Values) (listAgreementsQuery, error) {
	out := listAgreementsQuery{
		Page:      1,
		Limit:     10,
		TenancyID: q.Get("tenancyId"),
		TenantID:  q.Get("tenantId"),
		Status:    q.Get("status"),
	}
	for _, p := range []struct {
		key string
		dst *int
	}{{"page", &out.Page}, {"limit", &out.Limit}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return out, apperr.New(apperr.CodeValidation, p.key+" must be an integer")
		}
		*p.dst = n
	}
	return out, validation.Validate(out)
}

func clauses(in []clauseRequest) []agreement.Clause {
	if in == nil {
		return nil
	}
	out := make([]agreement.Clause, len(in))
	for i, c := range in {
		out[i] = agreement.Clause{Key: c.Key, Text: c.Text}
	}
	return out
}

func signers(in []signerRequest) []agreement.Signer {
	if in == nil {
		return nil
	}
	out := make([]agreement.Signer, len(in))
	for i, s := range in {
		out[i] = agreement.Signer{
			UserID:   s.UserID,
			Name:     s.Name,
			Method:   agreement.SignMethod(s.Method),
			SignedAt: s.SignedAt,
			Meta:     s.Meta,
		}
	}
	return out
}

// decode reads a JSON body into dst and validates it. An empty body decodes
// as the zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(err, apperr.CodeBadRequest, "Invalid JSON body: "+err.Error())
	}
	return validation.Validate(dst)
}
