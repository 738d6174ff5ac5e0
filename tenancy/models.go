package tenancy

import "time"

type Status string

const (
	StatusUpcoming       Status = "upcoming"
	StatusActive         Status = "active"
	StatusTerminated     Status = "terminated"
	StatusPendingRenewal Status = "pendingRenewal"
)

type RentCycle string

const (
	CycleMonthly   RentCycle = "monthly"
	CycleQuarterly RentCycle = "quarterly"
	CycleYearly    RentCycle = "yearly"
)

// Rent holds the recurring payment terms.
type Rent struct {
	Amount            float64   `json:"amount" validate:"gte=0"`
	Cycle             RentCycle `json:"cycle,omitempty" validate:"omitempty,oneof=monthly quarterly yearly"`
	DueDateDay        int       `json:"dueDateDay,omitempty" validate:"omitempty,min=1,max=31"`
	UtilitiesIncluded bool      `json:"utilitiesIncluded"`
}

// WithDefaults fills the cycle when the caller left it out.
func (r Rent) WithDefaults() Rent {
	if r.Cycle == "" {
		r.Cycle = CycleMonthly
	}
	return r
}

type DepositStatus string

const (
	DepositUpcoming DepositStatus = "upcoming"
	DepositHeld     DepositStatus = "held"
	DepositReturned DepositStatus = "returned"
	DepositDisputed DepositStatus = "disputed"
)

// Deposit holds the security deposit terms.
type Deposit struct {
	Amount float64       `json:"amount" validate:"gte=0"`
	Status DepositStatus `json:"status,omitempty" validate:"omitempty,oneof=upcoming held returned disputed"`
}

// AgreementSummary is the copy of the linked agreement kept on the tenancy
// row. It is written when the agreement is attached and is not refreshed by
// later agreement updates or deletes.
type AgreementSummary struct {
	AgreementID string     `json:"agreementId"`
	PDFURL      string     `json:"pdfUrl"`
	Version     int        `json:"version"`
	SignedAt    *time.Time `json:"signedAt,omitempty"`
}

// Tenancy is the rental relationship between an owner and a tenant for a unit.
type Tenancy struct {
	ID        string
	UnitID    string
	OwnerID   string
	TenantID  string
	Status    Status
	Rent      Rent
	Deposit   *Deposit
	Agreement *AgreementSummary
	CreatedAt time.Time
	UpdatedAt time.Time
}
