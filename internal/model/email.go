package model

import (
	"time"
)

// RawMessage is one message as fetched from a mailbox provider, before any
// MIME parsing. ProviderID is the provider-assigned identifier used for
// dedup.
type RawMessage struct {
	ProviderID string    `json:"provider_id"`
	Raw        []byte    `json:"raw"`
	ReceivedAt time.Time `json:"received_at"`
}

// InboundEmail is the parsed form of a raw inbound message.
type InboundEmail struct {
	ProviderID string            `json:"provider_id"`
	From       string            `json:"from"`
	ReplyTo    string            `json:"reply_to"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	HTMLBody   string            `json:"html_body"`
	Date       time.Time         `json:"date"`
	Headers    map[string]string `json:"headers"`
}
