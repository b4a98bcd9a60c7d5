package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/wire"
)

const testVerifyToken = "shared-secret"

type mockQueue struct {
	envelopes []*models.Envelope
	err       error
}

func (q *mockQueue) Enqueue(env *models.Envelope) error {
	if q.err != nil {
		return q.err
	}
	q.envelopes = append(q.envelopes, env)
	return nil
}

func newTestServer(queue *mockQueue) *Server {
	return NewServer(wire.NewDecoder(wire.NewRegistry()), queue, testVerifyToken)
}

func eventBody(messages string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "100000000000000",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "5519911111111", "phone_number_id": "1"},
					"contacts": [{"wa_id": "5519900000000", "profile": {"name": "Customer"}}],
					"messages": [%s]
				}
			}]
		}]
	}`, messages)
}

const textMessageJSON = `{"id":"wamid.test==","timestamp":"1700000000","from":"5519900000000","type":"text","text":{"body":"hello"}}`

func TestVerifyHandshake(t *testing.T) {
	handler := newTestServer(&mockQueue{}).Handler()

	query := url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {testVerifyToken},
		"hub.challenge":    {"1158201444"},
	}
	req := httptest.NewRequest(http.MethodGet, "/?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "1158201444" {
		t.Errorf("body = %q, want the challenge echoed back", rec.Body.String())
	}
}

func TestVerifyMissingParameters(t *testing.T) {
	handler := newTestServer(&mockQueue{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/?hub.mode=subscribe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	handler := newTestServer(&mockQueue{}).Handler()

	cases := []struct {
		name  string
		mode  string
		token string
	}{
		{"wrong token", "subscribe", "guessed-secret"},
		{"wrong mode", "unsubscribe", testVerifyToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query := url.Values{
				"hub.mode":         {tc.mode},
				"hub.verify_token": {tc.token},
				"hub.challenge":    {"1158201444"},
			}
			req := httptest.NewRequest(http.MethodGet, "/?"+query.Encode(), nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != "error" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestEventEnqueuesEnvelope(t *testing.T) {
	queue := &mockQueue{}
	handler := newTestServer(queue).Handler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(eventBody(textMessageJSON)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(queue.envelopes) != 1 {
		t.Fatalf("enqueued %d envelopes, want 1", len(queue.envelopes))
	}
	env := queue.envelopes[0]
	if env.Metadata.PhoneNumberID != "1" {
		t.Errorf("phone number id = %q", env.Metadata.PhoneNumberID)
	}
	if len(env.Messages) != 1 || env.Messages[0].Sender != "5519900000000" {
		t.Errorf("messages = %+v", env.Messages)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestEventRejectsNonMetaPayload(t *testing.T) {
	queue := &mockQueue{}
	handler := newTestServer(queue).Handler()

	for _, body := range []string{`{`, `{}`, `{"entry":[]}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
	if len(queue.envelopes) != 0 {
		t.Errorf("rejected payloads still enqueued %d envelopes", len(queue.envelopes))
	}
}

func TestEventUndecodableMessagesStillEnqueue(t *testing.T) {
	queue := &mockQueue{}
	handler := newTestServer(queue).Handler()

	// One good message, one unknown kind: the envelope still arrives with
	// the good message only.
	messages := textMessageJSON + `,{"id":"wamid.bad==","timestamp":"1700000000","from":"5519900000000","type":"carousel"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(eventBody(messages)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(queue.envelopes) != 1 || len(queue.envelopes[0].Messages) != 1 {
		t.Errorf("envelopes = %+v", queue.envelopes)
	}
}

func TestEventEnqueueFailure(t *testing.T) {
	queue := &mockQueue{err: errors.New("queue is closed")}
	handler := newTestServer(queue).Handler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(eventBody(textMessageJSON)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealthcheck(t *testing.T) {
	handler := newTestServer(&mockQueue{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "Everything all right!" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRequestIDPropagation(t *testing.T) {
	handler := newTestServer(&mockQueue{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("no request id assigned")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set(RequestIDHeader, "inbound-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "inbound-id" {
		t.Errorf("inbound request id not honored: %q", got)
	}
}
