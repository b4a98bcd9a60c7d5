// Package webhook implements the Cloud API callback receiver: the GET
// verification handshake and the POST event endpoint that decodes each
// change value and enqueues it for dispatch.
//
// The receiver only decodes and enqueues; it never blocks on handler
// execution. The HTTP 200 is returned before the queue drains, so delivery
// is at-most-once by design.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/wire"
	"github.com/go-chi/chi/v5"
)

// DefaultAddr is the default listen address for the webhook server.
const DefaultAddr = ":8000"

// Enqueuer accepts decoded envelopes for dispatch; implemented by bot.Bot.
type Enqueuer interface {
	Enqueue(env *models.Envelope) error
}

// Opts holds configuration options for the webhook server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the webhook server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server receives webhook callbacks and feeds the update queue.
type Server struct {
	decoder     *wire.Decoder
	queue       Enqueuer
	verifyToken string
	httpServer  *http.Server
}

// NewServer creates the webhook server. The verify token is the shared
// secret used by the vendor's challenge/response handshake when a callback
// URL is registered.
func NewServer(decoder *wire.Decoder, queue Enqueuer, verifyToken string, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if verifyToken == "" {
		slog.Warn("Webhook verify token was not set")
	}

	s := &Server{decoder: decoder, queue: queue, verifyToken: verifyToken}

	router := chi.NewRouter()
	router.Use(RequestID, Recovery, Logger)
	router.Get("/", s.handleVerify)
	router.Post("/", s.handleEvent)
	router.Get("/healthcheck", s.handleHealthcheck)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler exposes the router, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the HTTP listener and blocks until shutdown.
func (s *Server) Run() error {
	slog.Info("Webhook server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server failed: %w", err)
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleVerify implements the verification handshake: missing parameters
// yield 403, a mode or token mismatch yields 400, success echoes the
// challenge.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode == "" || token == "" || challenge == "" {
		writeError(w, http.StatusForbidden, "hub.mode, hub.verify_token and hub.challenge are required parameters")
		return
	}
	if mode != "subscribe" || token != s.verifyToken {
		writeError(w, http.StatusBadRequest, "invalid mode or different verify token")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// handleEvent decodes a webhook POST and enqueues one envelope per change.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}
	if payload.Object == "" {
		writeError(w, http.StatusBadRequest, "not a Meta API event")
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			env, err := s.decoder.ParseEnvelope(change.Value)
			if err != nil {
				slog.Error("Webhook failed to parse change value", "error", err, "entry_id", entry.ID, "field", change.Field)
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if err := s.queue.Enqueue(env); err != nil {
				slog.Error("Webhook failed to enqueue envelope", "error", err, "entry_id", entry.ID)
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Everything all right!"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Webhook failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}
