package agreement

import "errors"

var (
	// ErrNotFound is returned when no agreement row exists for the provided identifier.
	ErrNotFound = errors.New("agreement: not found")
	// ErrDuplicateIdempotencyKey signals a sign request whose key was already used.
	ErrDuplicateIdempotencyKey = errors.New("agreement: duplicate idempotency key")
)

// Caller-facing messages.
const (
	msgInvalidAgreementID = "Invalid agreement ID"
	msgInvalidUserID      = "Invalid user ID"
	msgInvalidTenancyID   = "Invalid tenancy ID"
	msgInvalidTenantID    = "Invalid tenant ID"
	msgInvalidCreatedBy   = "Invalid createdBy user ID"
	msgInvalidSignerID    = "Invalid signer user ID"
	msgDuplicateSigner    = "Signers must not contain the same user twice"
	msgInvalidOwnerData   = "Invalid owner ID in tenancyData"
	msgInvalidTenantData  = "Invalid tenant ID in tenancyData"
	msgInvalidUnitData    = "Invalid unit ID in tenancyData"
	msgSourceMissing      = "Either tenancyId or tenancyData must be provided"
	msgSourceAmbiguous    = "Cannot provide both tenancyId and tenancyData. Provide only one."
	msgAgreementNotFound  = "Agreement not found"
	msgTenancyNotFound    = "Tenancy not found"
	msgOwnerNotFound      = "Owner not found"
	msgTenantNotFound     = "Tenant not found"
	msgUnitNotFound       = "Unit not found"
	msgFullySigned        = "Agreement is already fully signed"
	msgSignCancelled      = "Cannot sign a cancelled agreement"
)
