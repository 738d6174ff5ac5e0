package agreement

import (
	"context"
	"encoding/json"
	"fmt"

	"rentfit/outbox"
	"rentfit/storage"
)

const (
	topicCreated = outbox.TopicAgreementCreated
	topicSigned  = outbox.TopicAgreementSigned
	topicDeleted = outbox.TopicAgreementDeleted
)

type deletedEvent struct {
	AgreementID string `json:"agreement_id"`
	PDFPublicID string `json:"pdf_public_id"`
}

// HandleAgreementDeleted is the outbox handler for agreement.deleted. It
// releases the stored document of the removed agreement.
func (s *Service) HandleAgreementDeleted(ctx context.Context, msg outbox.Message) error {
	var ev deletedEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("agreement: decode %s payload: %w", msg.Topic, err)
	}
	if ev.PDFPublicID == "" {
		return nil
	}
	if err := s.objects.Delete(ctx, ev.PDFPublicID, storage.KindRaw); err != nil {
		return fmt.Errorf("agreement: release document %s: %w", ev.PDFPublicID, err)
	}
	s.logger.InfoContext(ctx, "agreement document released", "agreement_id", ev.AgreementID, "public_id", ev.PDFPublicID)
	return nil
}
