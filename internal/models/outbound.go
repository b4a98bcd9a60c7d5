// Package models: outbound payload construction for the Cloud API
// /messages endpoint. Every builder produces the mandatory envelope fields
// (messaging_product, recipient_type, to, type) plus the kind-specific
// payload section.
package models

// RecipientTypeIndividual is the only recipient type the framework sends.
const RecipientTypeIndividual = "individual"

// OutboundContext references a prior message when sending a reply.
type OutboundContext struct {
	MessageID string `json:"message_id"`
}

// InteractiveText is a header/body/footer text block of an interactive
// payload. The Type field is only set on headers.
type InteractiveText struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// InteractiveButton is one reply button of a button-type interactive payload.
type InteractiveButton struct {
	Type  string    `json:"type"`
	Reply ReplyItem `json:"reply"`
}

// ListSection groups rows of a list-type interactive payload. Minimum 1 and
// maximum 10 sections per message.
type ListSection struct {
	Title string      `json:"title"`
	Rows  []ReplyItem `json:"rows"`
}

// InteractiveAction is the action block of an interactive payload. Which
// fields are set depends on the interactive type.
type InteractiveAction struct {
	Name       string              `json:"name,omitempty"`
	Parameters map[string]string   `json:"parameters,omitempty"`
	Button     string              `json:"button,omitempty"`
	Buttons    []InteractiveButton `json:"buttons,omitempty"`
	Sections   []ListSection       `json:"sections,omitempty"`
}

// OutboundInteractive is the interactive section of an outbound payload.
type OutboundInteractive struct {
	Type   string             `json:"type"`
	Header *InteractiveText   `json:"header,omitempty"`
	Body   *InteractiveText   `json:"body,omitempty"`
	Footer *InteractiveText   `json:"footer,omitempty"`
	Action *InteractiveAction `json:"action,omitempty"`
}

// Outbound is one message payload for the Cloud API /messages endpoint.
type Outbound struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             MessageKind      `json:"type"`
	Context          *OutboundContext `json:"context,omitempty"`

	Text        *TextBody            `json:"text,omitempty"`
	Reaction    *Reaction            `json:"reaction,omitempty"`
	Location    *Location            `json:"location,omitempty"`
	Image       *MediaMeta           `json:"image,omitempty"`
	Audio       *MediaMeta           `json:"audio,omitempty"`
	Video       *MediaMeta           `json:"video,omitempty"`
	Document    *MediaMeta           `json:"document,omitempty"`
	Sticker     *MediaMeta           `json:"sticker,omitempty"`
	Contacts    []ContactCard        `json:"contacts,omitempty"`
	Interactive *OutboundInteractive `json:"interactive,omitempty"`
	Template    map[string]any       `json:"template,omitempty"`
}

// InReplyTo marks the payload as a reply to the given message id.
func (o *Outbound) InReplyTo(messageID string) *Outbound {
	o.Context = &OutboundContext{MessageID: messageID}
	return o
}

func newOutbound(to string, kind MessageKind) *Outbound {
	return &Outbound{
		MessagingProduct: MessagingProduct,
		RecipientType:    RecipientTypeIndividual,
		To:               to,
		Type:             kind,
	}
}

// NewText builds a text message. Max body size is 4096 characters; when
// previewURL is true and the body carries an http(s) link, a website
// preview is shown.
func NewText(to, body string, previewURL bool) *Outbound {
	out := newOutbound(to, KindText)
	out.Text = &TextBody{Body: body, PreviewURL: previewURL}
	return out
}

// NewReaction builds an emoji reaction to the given message.
func NewReaction(to, messageID, emoji string) *Outbound {
	out := newOutbound(to, KindReaction)
	out.Reaction = &Reaction{MessageID: messageID, Emoji: emoji}
	return out
}

// NewLocation builds a shared-location message.
func NewLocation(to string, latitude, longitude float64, name, address string) *Outbound {
	out := newOutbound(to, KindLocation)
	out.Location = &Location{Latitude: latitude, Longitude: longitude, Name: name, Address: address}
	return out
}

// NewMediaByID builds a media message referencing previously uploaded media.
// Caption is honored for image, video and document; filename only for
// document.
func NewMediaByID(to string, kind MessageKind, mediaID, caption string) (*Outbound, error) {
	if mediaID == "" {
		return nil, ErrMissingMedia
	}
	return newMedia(to, kind, &MediaMeta{ID: mediaID, Caption: caption})
}

// NewMediaByLink builds a media message referencing a public URL. Uploaded
// media ids are recommended over links.
func NewMediaByLink(to string, kind MessageKind, link, caption string) (*Outbound, error) {
	if link == "" {
		return nil, ErrMissingMedia
	}
	return newMedia(to, kind, &MediaMeta{Link: link, Caption: caption})
}

func newMedia(to string, kind MessageKind, meta *MediaMeta) (*Outbound, error) {
	out := newOutbound(to, kind)
	switch kind {
	case KindImage:
		out.Image = meta
	case KindAudio:
		meta.Caption = ""
		out.Audio = meta
	case KindVideo:
		out.Video = meta
	case KindDocument:
		out.Document = meta
	case KindSticker:
		meta.Caption = ""
		out.Sticker = meta
	default:
		return nil, ErrNotMediaKind
	}
	return out, nil
}

// NewDocument builds a document message with an optional display filename,
// which selects the icon shown to the customer.
func NewDocument(to, mediaID, link, caption, filename string) (*Outbound, error) {
	if mediaID == "" && link == "" {
		return nil, ErrMissingMedia
	}
	out := newOutbound(to, KindDocument)
	out.Document = &MediaMeta{ID: mediaID, Link: link, Caption: caption, Filename: filename}
	return out, nil
}

// NewInteractiveList builds a list message: a button that opens up to 10
// sections of selectable rows.
func NewInteractiveList(to, header, body, footer, buttonTitle string, sections []ListSection) *Outbound {
	out := newOutbound(to, KindInteractive)
	out.Interactive = &OutboundInteractive{
		Type:   "list",
		Header: &InteractiveText{Type: "text", Text: header},
		Body:   &InteractiveText{Text: body},
		Footer: &InteractiveText{Text: footer},
		Action: &InteractiveAction{Button: buttonTitle, Sections: sections},
	}
	return out
}

// NewReplyButtons builds a button message with up to three reply buttons.
// Button descriptions are stripped; the vendor rejects them on buttons.
func NewReplyButtons(to, header, body, footer string, buttons []ReplyItem) *Outbound {
	wrapped := make([]InteractiveButton, 0, len(buttons))
	for _, b := range buttons {
		b.Description = ""
		wrapped = append(wrapped, InteractiveButton{Type: "reply", Reply: b})
	}
	out := newOutbound(to, KindInteractive)
	out.Interactive = &OutboundInteractive{
		Type:   "button",
		Header: &InteractiveText{Type: "text", Text: header},
		Body:   &InteractiveText{Text: body},
		Footer: &InteractiveText{Text: footer},
		Action: &InteractiveAction{Buttons: wrapped},
	}
	return out
}

// NewCTAURL builds a call-to-action message whose button opens a URL in the
// customer's browser.
func NewCTAURL(to, header, body, footer, displayText, url string) *Outbound {
	out := newOutbound(to, KindInteractive)
	out.Interactive = &OutboundInteractive{
		Type:   "cta_url",
		Header: &InteractiveText{Type: "text", Text: header},
		Body:   &InteractiveText{Text: body},
		Footer: &InteractiveText{Text: footer},
		Action: &InteractiveAction{
			Name:       "cta_url",
			Parameters: map[string]string{"display_text": displayText, "url": url},
		},
	}
	return out
}

// NewLocationRequest builds an interactive message asking the customer to
// share their location. Max body size is 4096 characters.
func NewLocationRequest(to, body string) *Outbound {
	out := newOutbound(to, KindInteractive)
	out.Interactive = &OutboundInteractive{
		Type:   "location_request_message",
		Body:   &InteractiveText{Text: body},
		Action: &InteractiveAction{Name: "send_location"},
	}
	return out
}

// NewTemplate builds a template message from a raw template section, used
// to open business-initiated conversations.
func NewTemplate(to string, template map[string]any) *Outbound {
	out := newOutbound(to, KindTemplate)
	out.Template = template
	return out
}

// ReadReceipt is the distinguished mark-as-read payload.
type ReadReceipt struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// NewReadReceipt builds a mark-as-read payload for the given message.
func NewReadReceipt(messageID string) ReadReceipt {
	return ReadReceipt{
		MessagingProduct: MessagingProduct,
		Status:           StatusRead,
		MessageID:        messageID,
	}
}
