package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"rentfit/outbox"
)

// Store is the tenancy persistence the activator depends on.
type Store interface {
	GetByID(ctx context.Context, id string) (Tenancy, error)
	FindByAgreementID(ctx context.Context, agreementID string) (Tenancy, error)
	SetStatus(ctx context.Context, id string, status Status) error
}

// Activator moves the tenancy linked to a fully signed agreement to active.
type Activator struct {
	store  Store
	logger *slog.Logger
}

func NewActivator(store Store, logger *slog.Logger) *Activator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activator{store: store, logger: logger}
}

// Activate resolves the tenancy by tenancyID when given, otherwise by the
// agreement pointer embedded in the tenancy, and sets it active. It returns
// the activated tenancy id, or "" when no tenancy is linked. Reactivating an
// already active tenancy is a no-op.
func (a *Activator) Activate(ctx context.Context, tenancyID, agreementID string) (string, error) {
	var (
		t   Tenancy
		err error
	)
	if tenancyID != "" {
		t, err = a.store.GetByID(ctx, tenancyID)
	} else {
		t, err = a.store.FindByAgreementID(ctx, agreementID)
	}
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenancy: resolve for agreement %s: %w", agreementID, err)
	}

	if t.Status == StatusActive {
		return t.ID, nil
	}
	if err := a.store.SetStatus(ctx, t.ID, StatusActive); err != nil {
		return "", fmt.Errorf("tenancy: activate %s: %w", t.ID, err)
	}
	a.logger.InfoContext(ctx, "tenancy activated", "tenancy_id", t.ID, "agreement_id", agreementID)
	return t.ID, nil
}

// signedEvent is the payload of the agreement.signed outbox topic.
type signedEvent struct {
	AgreementID string `json:"agreement_id"`
	TenancyID   string `json:"tenancy_id,omitempty"`
}

// HandleAgreementSigned is the outbox handler for agreement.signed. It replays
// the activation that the signing request attempted inline.
func (a *Activator) HandleAgreementSigned(ctx context.Context, msg outbox.Message) error {
	var ev signedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("tenancy: decode %s payload: %w", msg.Topic, err)
	}
	if ev.AgreementID == "" {
		return fmt.Errorf("tenancy: %s payload missing agreement_id", msg.Topic)
	}
	_, err := a.Activate(ctx, ev.TenancyID, ev.AgreementID)
	return err
}
