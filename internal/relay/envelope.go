package relay

import (
	"time"

	"conclave/internal/domain"
)

// Provider identifies relay-backed contacts.
const Provider domain.ProviderID = "relay"

// Envelope is one queued direct message.
type Envelope struct {
	ID          domain.MessageID `json:"id"`
	From        domain.Address   `json:"from"`
	FromName    string           `json:"from_name,omitempty"`
	To          domain.Address   `json:"to"`
	Body        string           `json:"body"`
	ContentType string           `json:"content_type,omitempty"`
	Timestamp   int64            `json:"timestamp"`
}

// Event converts a received envelope into a DirectReceived event.
func (e Envelope) Event() domain.DirectEvent {
	return domain.DirectEvent{
		Kind:     domain.DirectReceived,
		Provider: Provider,
		Contact:  domain.Contact{Address: e.From, DisplayName: e.FromName, Provider: Provider},
		Message: domain.Message{
			ID:          e.ID,
			Body:        e.Body,
			ContentType: e.ContentType,
		},
		Timestamp: time.Unix(e.Timestamp, 0),
	}
}
