package transform

import "conclave/internal/domain"

// PlaintextCodec classifies every body as content. It stands in for an
// engine codec when no session engine is configured.
type PlaintextCodec struct{}

func (PlaintextCodec) Classify(string) domain.Envelope {
	return domain.Envelope{Kind: domain.EnvelopeContent}
}

var _ domain.Codec = PlaintextCodec{}
