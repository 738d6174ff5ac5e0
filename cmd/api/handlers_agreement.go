package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rentfit/agreement"
	"rentfit/apperr"
	"rentfit/tenancy"
	"rentfit/user"
)

type agreementResponse struct {
	ID           string             `json:"id"`
	TemplateName string             `json:"templateName"`
	StateCode    string             `json:"stateCode"`
	Clauses      []agreement.Clause `json:"clauses"`
	PDFURL       string             `json:"pdfUrl"`
	PDFPublicID  string             `json:"pdfPublicId,omitempty"`
	Version      int                `json:"version"`
	CreatedBy    *string            `json:"createdBy,omitempty"`
	TenancyID    *string            `json:"tenancyId,omitempty"`
	TenantID     string             `json:"tenantId"`
	Status       agreement.Status   `json:"status"`
	Signers      []signerResponse   `json:"signers"`
	LastSignedAt *time.Time         `json:"lastSignedAt,omitempty"`
	Meta         map[string]any     `json:"meta,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`

	Creator *user.Summary    `json:"creator,omitempty"`
	Tenancy *tenancyResponse `json:"tenancy,omitempty"`
}

type signerResponse struct {
	agreement.Signer
	User *user.Summary `json:"user,omitempty"`
}

type tenancyResponse struct {
	ID        string                    `json:"id"`
	UnitID    string                    `json:"unitId"`
	OwnerID   string                    `json:"ownerId"`
	TenantID  string                    `json:"tenantId"`
	Status    tenancy.Status            `json:"status"`
	Rent      tenancy.Rent              `json:"rent"`
	Deposit   *tenancy.Deposit          `json:"deposit,omitempty"`
	Agreement *tenancy.AgreementSummary `json:"agreement,omitempty"`
}

func toAgreementResponse(a agreement.Agreement) agreementResponse {
	out := agreementResponse{
		ID:           a.ID,
		TemplateName: a.TemplateName,
		StateCode:    a.StateCode,
		Clauses:      a.Clauses,
		PDFURL:       a.PDFURL,
		PDFPublicID:  a.PDFPublicID,
		Version:      a.Version,
		CreatedBy:    a.CreatedBy,
		TenancyID:    a.TenancyID,
		TenantID:     a.TenantID,
		Status:       a.Status,
		Signers:      make([]signerResponse, len(a.Signers)),
		LastSignedAt: a.LastSignedAt,
		Meta:         a.Meta,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if out.Clauses == nil {
		out.Clauses = []agreement.Clause{}
	}
	for i, s := range a.Signers {
		out.Signers[i] = signerResponse{Signer: s}
	}
	return out
}

func toDetailResponse(d agreement.Detail) agreementResponse {
	out := toAgreementResponse(d.Agreement)
	out.Creator = d.Creator
	for i, sd := range d.SignerDetail {
		if i < len(out.Signers) {
			out.Signers[i].User = sd.User
		}
	}
	if t := d.Tenancy; t != nil {
		out.Tenancy = &tenancyResponse{
			ID:        t.ID,
			UnitID:    t.UnitID,
			OwnerID:   t.OwnerID,
			TenantID:  t.TenantID,
			Status:    t.Status,
			Rent:      t.Rent,
			Deposit:   t.Deposit,
			Agreement: t.Agreement,
		}
	}
	return out
}

type timelineEventResponse struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	ActorID   *string        `json:"actorId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func actorID(r *http.Request) string {
	if id, ok := caller(r.Context()); ok {
		return id.UserID
	}
	return ""
}

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := req.input()
	if in.CreatedBy == "" {
		in.CreatedBy = actorID(r)
	}

	a, err := s.agreements.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"agreement": toAgreementResponse(a)}, "Agreement created successfully")
}

func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.agreements.List(r.Context(), agreement.ListFilter{
		TenancyID: q.TenancyID,
		TenantID:  q.TenantID,
		Status:    agreement.Status(q.Status),
		Page:      q.Page,
		Limit:     q.Limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]agreementResponse, len(page.Agreements))
	for i, a := range page.Agreements {
		items[i] = toAgreementResponse(a)
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta:    &metaBody{Pagination: page.Pagination},
	})
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	d, err := s.agreements.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"agreement": toDetailResponse(d)}, "")
}

func (s *Server) handleUpdateAgreement(w http.ResponseWriter, r *http.Request) {
	var req updateAgreementRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.agreements.Update(r.Context(), chi.URLParam(r, "id"), req.input(), actorID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"agreement": toAgreementResponse(a)}, "Agreement updated successfully")
}

func (s *Server) handleDeleteAgreement(w http.ResponseWriter, r *http.Request) {
	if err := s.agreements.Delete(r.Context(), chi.URLParam(r, "id"), actorID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil, "Agreement deleted successfully")
}

// handleSignAgreement signs as body.userId, or as the caller when omitted.
// An Idempotency-Key header makes retries replay the first outcome.
func (s *Server) handleSignAgreement(w http.ResponseWriter, r *http.Request) {
	var req signAgreementRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = actorID(r)
	}
	if userID == "" {
		s.writeError(w, r, apperr.New(apperr.CodeValidation, "userId is required"))
		return
	}

	d, err := s.agreements.Sign(r.Context(), chi.URLParam(r, "id"), userID, agreement.SignInput{
		Name:           req.Name,
		Method:         agreement.SignMethod(req.Method),
		Meta:           req.Meta,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"agreement": toDetailResponse(d)}, "Agreement signed successfully")
}

func (s *Server) handleAttachTenancy(w http.ResponseWriter, r *http.Request) {
	var req attachTenancyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.agreements.AttachTenancy(r.Context(), chi.URLParam(r, "id"), req.TenancyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"agreement": toAgreementResponse(a)}, "Agreement linked to tenancy")
}

func (s *Server) handleAgreementTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.agreements.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]timelineEventResponse, len(events))
	for i, ev := range events {
		out[i] = timelineEventResponse{ID: ev.ID, Type: ev.Type, ActorID: ev.ActorID, Payload: ev.Payload, CreatedAt: ev.CreatedAt}
	}
	writeSuccess(w, http.StatusOK, map[string]any{"events": out}, "")
}
