// Package models defines the core data structures for the WhatsApp Cloud API
// bot framework.
//
// It includes message kinds, decoded webhook entities (messages, statuses,
// contacts), and outbound payload types shared across modules.
package models

import "errors"

// MessageKind is the discriminant tag of an inbound message variant.
type MessageKind string

// Message kinds supported by the Cloud API webhook.
const (
	KindText        MessageKind = "text"
	KindReaction    MessageKind = "reaction"
	KindImage       MessageKind = "image"
	KindAudio       MessageKind = "audio"
	KindVideo       MessageKind = "video"
	KindDocument    MessageKind = "document"
	KindSticker     MessageKind = "sticker"
	KindLocation    MessageKind = "location"
	KindContacts    MessageKind = "contacts"
	KindAddress     MessageKind = "address"
	KindInteractive MessageKind = "interactive"
	KindFlow        MessageKind = "flow"
	KindTemplate    MessageKind = "template"
)

// MessagingProduct is the constant product tag carried by every webhook
// value and outbound payload.
const MessagingProduct = "whatsapp"

// Delivery status values reported through StatusEvent.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Error variables for decode validation and envelope usage errors.
var (
	ErrMissingTextBody    = errors.New("text message requires a text body")
	ErrMissingMedia       = errors.New("media message requires either a media id or a link")
	ErrUnexpectedFilename = errors.New("filename is not supported for this media kind")
	ErrMissingPayload     = errors.New("message payload is missing for its kind")
	ErrNotMediaKind       = errors.New("kind does not carry media")
	ErrCursorOutOfRange   = errors.New("cursor index out of range")
)

// Metadata identifies the business phone number that received the webhook.
type Metadata struct {
	// DisplayPhoneNumber is the number the customer sees in chat.
	DisplayPhoneNumber string `json:"display_phone_number"`
	// PhoneNumberID must be used to respond to the message.
	PhoneNumberID string `json:"phone_number_id"`
}

// Profile holds the customer profile object (currently only the name).
type Profile struct {
	Name string `json:"name"`
}

// Contact describes the sender of the messages in an envelope.
type Contact struct {
	// WaID is the customer WhatsApp ID. It may or may not match the phone number.
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

// CustomerName returns the customer's profile name.
func (c Contact) CustomerName() string {
	return c.Profile.Name
}

// ErrorDetail describes one vendor-reported error, e.g. code 130429
// "Rate limit hit".
type ErrorDetail struct {
	Code      int            `json:"code"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ErrorData map[string]any `json:"error_data,omitempty"`
}

// Details returns the free-form detail blob of the error, if any.
func (e ErrorDetail) Details() any {
	if e.ErrorData == nil {
		return nil
	}
	return e.ErrorData["details"]
}

// ReplyContext references the message a customer replied to.
type ReplyContext struct {
	// From is the sender of the referenced message.
	From string `json:"from"`
	// ID is the referenced message id.
	ID                  string `json:"id"`
	Forwarded           bool   `json:"forwarded,omitempty"`
	FrequentlyForwarded bool   `json:"frequently_forwarded,omitempty"`
}

// MediaMeta carries the media attributes shared by image, audio, video,
// document and sticker messages.
type MediaMeta struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	// Filename is exclusive to document media.
	Filename string `json:"filename,omitempty"`
	// Voice is exclusive to audio media.
	Voice bool `json:"voice,omitempty"`
	// Animated is exclusive to sticker media.
	Animated bool `json:"animated,omitempty"`
}

// TextBody wraps the body of a text message.
type TextBody struct {
	Body string `json:"body"`
	// PreviewURL enables a website preview when the body carries an http(s) link.
	PreviewURL bool `json:"preview_url,omitempty"`
}

// Reaction is an emoji reaction to a specific message.
type Reaction struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Location is a shared location in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	URL       string  `json:"url,omitempty"`
}

// ReplyItem identifies one selectable row or button of an interactive message.
type ReplyItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NfmReply is the reply produced when a customer completes a WhatsApp Flow.
type NfmReply struct {
	// ResponseJSON is the form data encoded as a JSON string.
	ResponseJSON string `json:"response_json"`
	Body         string `json:"body"`
	Name         string `json:"name"`
}

// Interactive is the payload of an inbound interactive reply.
type Interactive struct {
	Type        string     `json:"type"`
	ButtonReply *ReplyItem `json:"button_reply,omitempty"`
	ListReply   *ReplyItem `json:"list_reply,omitempty"`
	NfmReply    *NfmReply  `json:"nfm_reply,omitempty"`
}

// ContactName holds the name parts of a shared contact card.
type ContactName struct {
	FormattedName string `json:"formatted_name"`
	FirstName     string `json:"first_name,omitempty"`
	MiddleName    string `json:"middle_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Prefix        string `json:"prefix,omitempty"`
	Suffix        string `json:"suffix,omitempty"`
}

// ContactPhone holds one phone entry of a shared contact card.
type ContactPhone struct {
	Phone string `json:"phone"`
	Type  string `json:"type,omitempty"`
	WaID  string `json:"wa_id,omitempty"`
}

// ContactCard is one entry of a contacts message.
type ContactCard struct {
	Name   ContactName    `json:"name"`
	Phones []ContactPhone `json:"phones,omitempty"`
}

// ConversationOrigin describes the conversation category (or entry point).
type ConversationOrigin struct {
	Type string `json:"type"`
}

// Conversation holds information about the billing conversation a status
// event belongs to.
type Conversation struct {
	ID                  string             `json:"id"`
	Origin              ConversationOrigin `json:"origin"`
	ExpirationTimestamp string             `json:"expiration_timestamp,omitempty"`
}

// Pricing holds pricing information for a status event.
type Pricing struct {
	Category     string `json:"category"`
	PricingModel string `json:"pricing_model"`
	Billable     bool   `json:"billable,omitempty"`
}

// StatusEvent is a sent/delivered/read notification for a previously sent
// message. Pricing and Conversation presence is vendor-determined and not
// enforced locally.
type StatusEvent struct {
	ID                    string        `json:"id"`
	Status                string        `json:"status"`
	Timestamp             string        `json:"timestamp"`
	RecipientID           string        `json:"recipient_id"`
	BizOpaqueCallbackData string        `json:"biz_opaque_callback_data,omitempty"`
	Conversation          *Conversation `json:"conversation,omitempty"`
	Pricing               *Pricing      `json:"pricing,omitempty"`
	Errors                []ErrorDetail `json:"errors,omitempty"`
}

// Message is one decoded inbound message. The Type field selects which of
// the per-kind payload fields is populated; all others are nil.
type Message struct {
	// ID is the vendor message identifier, unique per message.
	ID string `json:"id"`
	// Timestamp is the unix timestamp, string-encoded by the vendor.
	Timestamp string      `json:"timestamp"`
	Type      MessageKind `json:"type"`
	// Sender is the customer's phone-number identifier. The wire field is
	// named "from"; it is normalized here to keep the model consistent.
	Sender string `json:"from"`
	// ReplyTo is set when the customer replied to a specific message.
	ReplyTo *ReplyContext `json:"context,omitempty"`

	Text        *TextBody     `json:"text,omitempty"`
	Reaction    *Reaction     `json:"reaction,omitempty"`
	Image       *MediaMeta    `json:"image,omitempty"`
	Audio       *MediaMeta    `json:"audio,omitempty"`
	Video       *MediaMeta    `json:"video,omitempty"`
	Document    *MediaMeta    `json:"document,omitempty"`
	Sticker     *MediaMeta    `json:"sticker,omitempty"`
	Location    *Location     `json:"location,omitempty"`
	Contacts    []ContactCard `json:"contacts,omitempty"`
	Interactive *Interactive  `json:"interactive,omitempty"`
	Errors      []ErrorDetail `json:"errors,omitempty"`
}

// Media returns the media metadata for media-bearing kinds.
func (m *Message) Media() *MediaMeta {
	switch m.Type {
	case KindImage:
		return m.Image
	case KindAudio:
		return m.Audio
	case KindVideo:
		return m.Video
	case KindDocument:
		return m.Document
	case KindSticker:
		return m.Sticker
	default:
		return nil
	}
}

// TextValue returns the textual value of the message, used for pattern
// trigger matching. Text messages yield the body; interactive replies yield
// the selected item's title and description. Kinds without a textual value
// return false.
func (m *Message) TextValue() (string, bool) {
	switch m.Type {
	case KindText:
		if m.Text == nil {
			return "", false
		}
		return m.Text.Body, true
	case KindInteractive:
		if m.Interactive == nil {
			return "", false
		}
		switch {
		case m.Interactive.ListReply != nil:
			return m.Interactive.ListReply.Title + "\n" + m.Interactive.ListReply.Description, true
		case m.Interactive.ButtonReply != nil:
			return m.Interactive.ButtonReply.Title + "\n" + m.Interactive.ButtonReply.Description, true
		case m.Interactive.NfmReply != nil:
			return m.Interactive.NfmReply.Body, true
		}
		return "", false
	default:
		return "", false
	}
}
