package signaling

import "encoding/json"

// Envelope types.
const (
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeOfferStored  = "offer-stored"
	TypeAnswerStored = "answer-stored"
	TypeError        = "error"
)

// Error texts sent in error envelopes.
const (
	ErrTextOfferUnavailable = "Session not found or offer not yet available"
	ErrTextSessionNotFound  = "Session not found"
	ErrTextUnknownType      = "Unknown message type"
	ErrTextInvalidFormat    = "Invalid message format"
)

// Message is the envelope used in both directions. Offer and Answer are
// opaque and relayed exactly as received.
type Message struct {
	Type    string          `json:"type"`
	Offer   json.RawMessage `json:"offer,omitempty"`
	Answer  json.RawMessage `json:"answer,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

func errorMessage(text string) Message { return Message{Type: TypeError, Message: text} }
