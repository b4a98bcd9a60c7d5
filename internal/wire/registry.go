// Package wire decodes Cloud API webhook payloads into typed messages.
//
// It provides a per-instance registry of message kinds, a decoder that
// turns raw inbound records into models.Message values, and envelope
// construction for one webhook "change" unit.
package wire

import (
	"log/slog"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/tidwall/gjson"
)

// ValidateFunc checks the variant fields of one decoded message against the
// requirements of its kind. The raw record is available for shape checks
// that the typed form cannot express.
type ValidateFunc func(raw gjson.Result, msg *models.Message) error

// Registry maps message kinds to their validation strategy. It is scoped to
// one bot instance so multiple bots can coexist in a process; registration
// happens at construction, before the registry is first read.
type Registry struct {
	validators map[models.MessageKind]ValidateFunc
}

// NewRegistry creates a registry populated with all built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{validators: make(map[models.MessageKind]ValidateFunc)}
	r.registerBuiltins()
	return r
}

// Register associates a kind with a validation strategy. Registering an
// already-known kind replaces its strategy; adding a new kind is a single
// call here.
func (r *Registry) Register(kind models.MessageKind, fn ValidateFunc) {
	r.validators[kind] = fn
	slog.Debug("Registry registered message kind", "kind", kind)
}

// Resolve returns the validation strategy for a kind. Unknown kinds resolve
// absent and are never fatal to sibling messages.
func (r *Registry) Resolve(kind models.MessageKind) (ValidateFunc, bool) {
	fn, ok := r.validators[kind]
	return fn, ok
}

// Kinds returns all registered kinds.
func (r *Registry) Kinds() []models.MessageKind {
	kinds := make([]models.MessageKind, 0, len(r.validators))
	for kind := range r.validators {
		kinds = append(kinds, kind)
	}
	return kinds
}

func (r *Registry) registerBuiltins() {
	r.Register(models.KindText, validateText)
	r.Register(models.KindReaction, requirePayload(func(m *models.Message) bool { return m.Reaction != nil }))
	r.Register(models.KindImage, validateStrictMedia)
	r.Register(models.KindAudio, requirePayload(func(m *models.Message) bool { return m.Audio != nil }))
	r.Register(models.KindVideo, validateStrictMedia)
	r.Register(models.KindDocument, validateDocument)
	r.Register(models.KindSticker, requirePayload(func(m *models.Message) bool { return m.Sticker != nil }))
	r.Register(models.KindLocation, requirePayload(func(m *models.Message) bool { return m.Location != nil }))
	r.Register(models.KindContacts, requirePayload(func(m *models.Message) bool { return len(m.Contacts) > 0 }))
	r.Register(models.KindAddress, validateNone)
	r.Register(models.KindInteractive, requirePayload(func(m *models.Message) bool { return m.Interactive != nil }))
	r.Register(models.KindFlow, validateNone)
	r.Register(models.KindTemplate, validateNone)
}

// validateNone accepts any record of its kind.
func validateNone(gjson.Result, *models.Message) error {
	return nil
}

// requirePayload builds a validator that only checks the kind's payload
// section is present.
func requirePayload(present func(*models.Message) bool) ValidateFunc {
	return func(_ gjson.Result, msg *models.Message) error {
		if !present(msg) {
			return models.ErrMissingPayload
		}
		return nil
	}
}

func validateText(_ gjson.Result, msg *models.Message) error {
	if msg.Text == nil || msg.Text.Body == "" {
		return models.ErrMissingTextBody
	}
	return nil
}

// validateDocument requires either an uploaded-media id or a public link.
func validateDocument(_ gjson.Result, msg *models.Message) error {
	if msg.Document == nil || (msg.Document.ID == "" && msg.Document.Link == "") {
		return models.ErrMissingMedia
	}
	return nil
}

// validateStrictMedia covers image and video: media id or link required,
// filename rejected (vendor constraint).
func validateStrictMedia(raw gjson.Result, msg *models.Message) error {
	meta := msg.Media()
	if meta == nil || (meta.ID == "" && meta.Link == "") {
		return models.ErrMissingMedia
	}
	if raw.Get(string(msg.Type) + ".filename").Exists() {
		return models.ErrUnexpectedFilename
	}
	return nil
}
