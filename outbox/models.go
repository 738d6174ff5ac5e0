package outbox

import "time"

const (
	TopicAgreementCreated = "agreement.created"
	TopicAgreementSigned  = "agreement.signed"
	TopicAgreementDeleted = "agreement.deleted"
)

const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusDead      = "dead"
)

// MaxAttempts is the number of failed dispatches after which a message is
// parked as dead.
const MaxAttempts = 10

// Message represents a transactional outbox entry.
type Message struct {
	ID        string
	Topic     string
	Payload   []byte
	Status    string
	Attempts  int
	LastError *string
	CreatedAt time.Time
}
