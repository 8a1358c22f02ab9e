package enginetest

import (
	"encoding/base64"
	"strings"

	"conclave/internal/domain"
)

const wirePrefix = "?CONCLAVE|"

// Encode wraps payload as control traffic for session.
func Encode(session domain.SessionID, payload string) string {
	return wirePrefix + string(session) + "|" + base64.StdEncoding.EncodeToString([]byte(payload))
}

// Decode reverses Encode.
func Decode(body string) (domain.SessionID, string, bool) {
	rest, ok := strings.CutPrefix(body, wirePrefix)
	if !ok {
		return "", "", false
	}
	session, enc, ok := strings.Cut(rest, "|")
	if !ok {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", "", false
	}
	return domain.SessionID(session), string(b), true
}

// Codec classifies bodies produced by Encode as session control traffic.
type Codec struct{}

// Classify implements domain.Codec.
func (Codec) Classify(body string) domain.Envelope {
	session, _, ok := Decode(body)
	if !ok {
		return domain.Envelope{Kind: domain.EnvelopeContent}
	}
	return domain.Envelope{Kind: domain.EnvelopeControl, Session: session, Encoded: true}
}

var _ domain.Codec = Codec{}
