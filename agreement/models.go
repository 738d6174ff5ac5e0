package agreement

import (
	"time"

	"rentfit/tenancy"
	"rentfit/user"
)

type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingSignature Status = "pending_signature"
	StatusSigned           Status = "signed"
	StatusCancelled        Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingSignature, StatusSigned, StatusCancelled:
		return true
	default:
		return false
	}
}

type SignMethod string

const (
	MethodESign  SignMethod = "esign"
	MethodOTP    SignMethod = "otp"
	MethodManual SignMethod = "manual"
)

func (m SignMethod) Valid() bool {
	switch m {
	case MethodESign, MethodOTP, MethodManual:
		return true
	default:
		return false
	}
}

// Clause is one ordered section of the agreement text.
type Clause struct {
	Key  string `json:"key,omitempty"`
	Text string `json:"text"`
}

// Signer is a signature entry. An agreement holds at most one per UserID.
type Signer struct {
	UserID   string         `json:"userId"`
	Name     string         `json:"name,omitempty"`
	Method   SignMethod     `json:"method,omitempty"`
	SignedAt *time.Time     `json:"signedAt,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Agreement mirrors the agreements table.
type Agreement struct {
	ID           string
	TemplateName string
	StateCode    string
	Clauses      []Clause
	PDFURL       string
	PDFPublicID  string
	Version      int
	CreatedBy    *string
	TenancyID    *string
	TenantID     string
	Status       Status
	Signers      []Signer
	LastSignedAt *time.Time
	Meta         map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SignedCount is the number of signer entries carrying a signature time.
func (a Agreement) SignedCount() int {
	n := 0
	for _, s := range a.Signers {
		if s.SignedAt != nil {
			n++
		}
	}
	return n
}

func (a Agreement) tenancyID() string {
	if a.TenancyID == nil {
		return ""
	}
	return *a.TenancyID
}

// TenancyData is the ad-hoc bundle used when the agreement is drafted before
// its tenancy exists.
type TenancyData struct {
	OwnerID  string
	TenantID string
	UnitID   string
	Rent     tenancy.Rent
	Deposit  *tenancy.Deposit
}

// CreateInput is the request to create an agreement. Exactly one of
// TenancyID and TenancyData must be set.
type CreateInput struct {
	TemplateName string
	StateCode    string
	Clauses      []Clause
	Version      int
	CreatedBy    string
	TenancyID    string
	TenancyData  *TenancyData
	Status       Status
	Signers      []Signer
	Meta         map[string]any
}

// UpdateInput is a whitelist partial update. Nil fields are left unchanged.
type UpdateInput struct {
	TemplateName *string
	StateCode    *string
	Clauses      *[]Clause
	PDFURL       *string
	Version      *int
	Status       *Status
	Signers      *[]Signer
	Meta         map[string]any
}

// SignInput carries the optional signature details.
type SignInput struct {
	Name           string
	Method         SignMethod
	Meta           map[string]any
	IdempotencyKey string
}

type ListFilter struct {
	TenancyID string
	TenantID  string
	Status    Status
	Page      int
	Limit     int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Agreements []Agreement
	Pagination Pagination
}

// SignerDetail pairs a signature with the signer's identity when resolvable.
type SignerDetail struct {
	Signer
	User *user.Summary
}

// Detail is an agreement with its creator, tenancy and signer identities
// resolved for display.
type Detail struct {
	Agreement
	Creator      *user.Summary
	Tenancy      *tenancy.Tenancy
	SignerDetail []SignerDetail
}

// TimelineEvent captures an immutable business event for an agreement.
type TimelineEvent struct {
	ID          int64
	AgreementID string
	Type        string
	ActorID     *string
	Payload     map[string]any
	CreatedAt   time.Time
}

const (
	EventCreated       = "AGREEMENT_CREATED"
	EventSigned        = "AGREEMENT_SIGNED"
	EventUpdated       = "AGREEMENT_UPDATED"
	EventStatusChanged = "AGREEMENT_STATUS_CHANGED"
	EventTenancyLinked = "AGREEMENT_TENANCY_LINKED"
)
