package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/tidwall/gjson"
)

// Decode failure sentinels.
var (
	ErrUnknownKind = errors.New("unsupported message kind")
	ErrMissingType = errors.New("message record has no type field")
)

// DecodeError is a per-message decode failure. The offending message is
// dropped; sibling messages in the batch still decode.
type DecodeError struct {
	Kind models.MessageKind
	ID   string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message %q (kind %q): %v", e.ID, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns raw inbound records into typed messages using a registry of
// kind strategies.
type Decoder struct {
	registry *Registry
}

// NewDecoder creates a decoder over the given registry.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry}
}

// DecodeOne decodes and validates a single raw message record. It returns
// either a fully-valid typed message or a DecodeError; no partial objects
// are surfaced.
func (d *Decoder) DecodeOne(raw []byte) (*models.Message, error) {
	rec := gjson.ParseBytes(raw)

	kindField := rec.Get("type")
	if !kindField.Exists() || kindField.String() == "" {
		return nil, &DecodeError{ID: rec.Get("id").String(), Err: ErrMissingType}
	}
	kind := models.MessageKind(kindField.String())

	validate, ok := d.registry.Resolve(kind)
	if !ok {
		return nil, &DecodeError{Kind: kind, ID: rec.Get("id").String(), Err: ErrUnknownKind}
	}

	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &DecodeError{Kind: kind, ID: rec.Get("id").String(), Err: err}
	}
	if err := validate(rec, &msg); err != nil {
		return nil, &DecodeError{Kind: kind, ID: msg.ID, Err: err}
	}
	return &msg, nil
}

// DecodeMany maps DecodeOne over the records, preserving order and skipping
// failures. Message-level failures are logged, never raised to the caller.
func (d *Decoder) DecodeMany(raws []json.RawMessage) []models.Message {
	messages := make([]models.Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := d.DecodeOne(raw)
		if err != nil {
			slog.Warn("Decoder dropping message", "error", err)
			continue
		}
		messages = append(messages, *msg)
	}
	return messages
}

// envelopeWire mirrors the webhook value object with messages kept raw for
// per-record decoding. Metadata, contacts, errors and statuses are simple
// and always well-formed per vendor guarantee, so they decode eagerly.
type envelopeWire struct {
	MessagingProduct string               `json:"messaging_product"`
	Metadata         models.Metadata      `json:"metadata"`
	Contacts         []models.Contact     `json:"contacts"`
	Errors           []models.ErrorDetail `json:"errors"`
	Messages         []json.RawMessage    `json:"messages"`
	Statuses         []models.StatusEvent `json:"statuses"`
}

// ParseEnvelope builds one envelope from a webhook change value. Only a
// malformed value object itself is an error; individual message failures
// are absorbed by DecodeMany.
func (d *Decoder) ParseEnvelope(value []byte) (*models.Envelope, error) {
	var ew envelopeWire
	if err := json.Unmarshal(value, &ew); err != nil {
		return nil, fmt.Errorf("failed to parse webhook value: %w", err)
	}

	env := &models.Envelope{
		MessagingProduct: ew.MessagingProduct,
		Metadata:         ew.Metadata,
		Contacts:         ew.Contacts,
		Errors:           ew.Errors,
		Messages:         d.DecodeMany(ew.Messages),
		Statuses:         ew.Statuses,
	}
	slog.Debug("Decoder parsed envelope",
		"phone_number_id", env.Metadata.PhoneNumberID,
		"messages", len(env.Messages),
		"dropped", len(ew.Messages)-len(env.Messages),
		"statuses", len(env.Statuses))
	return env, nil
}
