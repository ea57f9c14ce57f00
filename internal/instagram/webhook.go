package instagram

// WebhookPayload is the envelope Meta posts to the webhook endpoint.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one page-scoped batch of events.
type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one direct-message event. Events without a Message
// (delivery receipts, read events) are ignored by the webhook handler.
type MessagingEvent struct {
	Sender    Participant   `json:"sender"`
	Recipient Participant   `json:"recipient"`
	Timestamp int64         `json:"timestamp"`
	Message   *MessageEvent `json:"message,omitempty"`
}

// Participant identifies one side of a messaging event.
type Participant struct {
	ID string `json:"id"`
}

// MessageEvent carries the message id and text of a direct message.
type MessageEvent struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
	// Echo marks messages sent by the business account itself.
	Echo bool `json:"is_echo,omitempty"`
}
