package models

import "encoding/json"

// Envelope is one decoded webhook "change" unit: business metadata, sender
// contacts, decoded messages and delivery statuses.
//
// The two cursors select the message/status being processed now. They are
// mutated exclusively by the dispatcher while iterating; the accessors are
// read-only views.
type Envelope struct {
	MessagingProduct string        `json:"messaging_product"`
	Metadata         Metadata      `json:"metadata"`
	Contacts         []Contact     `json:"contacts,omitempty"`
	Errors           []ErrorDetail `json:"errors,omitempty"`
	Messages         []Message     `json:"messages,omitempty"`
	Statuses         []StatusEvent `json:"statuses,omitempty"`

	activeMessage int
	activeStatus  int
}

// Message returns the message selected by the active message cursor, or nil
// when the envelope carries no messages.
func (e *Envelope) Message() *Message {
	if len(e.Messages) == 0 {
		return nil
	}
	return &e.Messages[e.activeMessage]
}

// Status returns the status selected by the active status cursor, or nil
// when the envelope carries no statuses.
func (e *Envelope) Status() *StatusEvent {
	if len(e.Statuses) == 0 {
		return nil
	}
	return &e.Statuses[e.activeStatus]
}

// SetActiveMessage moves the message cursor. Out-of-range indexes are
// rejected to prevent accidental corruption by handler code.
func (e *Envelope) SetActiveMessage(idx int) error {
	if idx < 0 || idx >= len(e.Messages) {
		return ErrCursorOutOfRange
	}
	e.activeMessage = idx
	return nil
}

// SetActiveStatus moves the status cursor.
func (e *Envelope) SetActiveStatus(idx int) error {
	if idx < 0 || idx >= len(e.Statuses) {
		return ErrCursorOutOfRange
	}
	e.activeStatus = idx
	return nil
}

// WebhookPayload is the top-level body of a webhook POST.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups the changes reported for one business account.
type WebhookEntry struct {
	// ID is the WhatsApp business account id.
	ID   string `json:"id"`
	Time int64  `json:"time,omitempty"`
	// Changes is the changed objects array.
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange wraps one change value. The value is kept raw so message
// decoding stays under the decoder's control.
type WebhookChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}
