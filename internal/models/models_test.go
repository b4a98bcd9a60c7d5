package models

import (
	"errors"
	"testing"
)

func TestTextValue(t *testing.T) {
	cases := []struct {
		name   string
		msg    Message
		want   string
		wantOK bool
	}{
		{
			name:   "text body",
			msg:    Message{Type: KindText, Text: &TextBody{Body: "hello"}},
			want:   "hello",
			wantOK: true,
		},
		{
			name: "list reply joins title and description",
			msg: Message{Type: KindInteractive, Interactive: &Interactive{
				Type:      "list_reply",
				ListReply: &ReplyItem{ID: "row-1", Title: "First", Description: "First row"},
			}},
			want:   "First\nFirst row",
			wantOK: true,
		},
		{
			name: "button reply",
			msg: Message{Type: KindInteractive, Interactive: &Interactive{
				Type:        "button_reply",
				ButtonReply: &ReplyItem{ID: "btn-1", Title: "Yes"},
			}},
			want:   "Yes\n",
			wantOK: true,
		},
		{
			name: "flow reply yields body",
			msg: Message{Type: KindInteractive, Interactive: &Interactive{
				Type:     "nfm_reply",
				NfmReply: &NfmReply{ResponseJSON: `{"answer":"42"}`, Body: "Sent", Name: "flow"},
			}},
			want:   "Sent",
			wantOK: true,
		},
		{
			name:   "location has no textual value",
			msg:    Message{Type: KindLocation, Location: &Location{Latitude: 1, Longitude: 2}},
			wantOK: false,
		},
		{
			name:   "image has no textual value",
			msg:    Message{Type: KindImage, Image: &MediaMeta{ID: "media-1", Caption: "a caption"}},
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.msg.TextValue()
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got != tc.want {
				t.Errorf("value = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMediaSelector(t *testing.T) {
	meta := &MediaMeta{ID: "media-1", MimeType: "image/jpeg"}
	msg := Message{Type: KindImage, Image: meta}
	if msg.Media() != meta {
		t.Error("Media() did not return the image metadata")
	}

	msg = Message{Type: KindText, Text: &TextBody{Body: "hi"}}
	if msg.Media() != nil {
		t.Error("Media() returned metadata for a non-media kind")
	}
}

func TestContactCustomerName(t *testing.T) {
	contact := Contact{WaID: "5519900000000", Profile: Profile{Name: "Customer"}}
	if contact.CustomerName() != "Customer" {
		t.Errorf("CustomerName() = %q", contact.CustomerName())
	}
}

func TestErrorDetailDetails(t *testing.T) {
	detail := ErrorDetail{
		Code:      130429,
		Title:     "Rate limit hit",
		ErrorData: map[string]any{"details": "Message failed to send because there were too many messages sent from this phone number in a short period of time"},
	}
	if detail.Details() == nil {
		t.Error("Details() lost the error_data blob")
	}
	if (ErrorDetail{Code: 1}).Details() != nil {
		t.Error("Details() invented a blob for an empty error")
	}
}

func TestEnvelopeCursors(t *testing.T) {
	env := &Envelope{
		Messages: []Message{
			{ID: "wamid.a==", Type: KindText, Text: &TextBody{Body: "first"}},
			{ID: "wamid.b==", Type: KindText, Text: &TextBody{Body: "second"}},
		},
		Statuses: []StatusEvent{{ID: "wamid.s==", Status: StatusSent}},
	}

	if env.Message().ID != "wamid.a==" {
		t.Errorf("default cursor selects %q", env.Message().ID)
	}
	if err := env.SetActiveMessage(1); err != nil {
		t.Fatalf("SetActiveMessage: %v", err)
	}
	if env.Message().ID != "wamid.b==" {
		t.Errorf("cursor moved to %q", env.Message().ID)
	}

	if err := env.SetActiveMessage(2); !errors.Is(err, ErrCursorOutOfRange) {
		t.Errorf("out-of-range index: expected ErrCursorOutOfRange, got %v", err)
	}
	if err := env.SetActiveMessage(-1); !errors.Is(err, ErrCursorOutOfRange) {
		t.Errorf("negative index: expected ErrCursorOutOfRange, got %v", err)
	}
	if env.Message().ID != "wamid.b==" {
		t.Error("rejected move still changed the cursor")
	}

	if env.Status().ID != "wamid.s==" {
		t.Errorf("status cursor selects %q", env.Status().ID)
	}
	if err := env.SetActiveStatus(1); !errors.Is(err, ErrCursorOutOfRange) {
		t.Errorf("expected ErrCursorOutOfRange, got %v", err)
	}
}

func TestEnvelopeEmptyAccessors(t *testing.T) {
	env := &Envelope{}
	if env.Message() != nil {
		t.Error("Message() should be nil without messages")
	}
	if env.Status() != nil {
		t.Error("Status() should be nil without statuses")
	}
}
