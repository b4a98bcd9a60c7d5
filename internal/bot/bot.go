// Package bot implements the per-user state-machine dispatcher: a state
// table of (handler, trigger) pairs, an update queue, and the run loop that
// routes each decoded inbound message to the first matching handler of the
// sender's current state.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/store"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/wire"
)

// StateKey identifies one registered state of the machine.
type StateKey string

// StateUnchanged is the handler return value meaning "stay in the current
// state". This is intentional, not an omission.
const StateUnchanged StateKey = ""

// Handler processes one matched message. The dispatcher passes the active
// message directly rather than relying on the envelope cursor. A returned
// StateKey other than StateUnchanged becomes the sender's next state.
type Handler func(ctx context.Context, b *Bot, env *models.Envelope, msg *models.Message) (StateKey, error)

// StatusHandler processes one delivery/read/sent notification.
type StatusHandler func(ctx context.Context, b *Bot, env *models.Envelope, status *models.StatusEvent) error

// Sender delivers outbound payloads; implemented by cloudapi.Client. The
// dispatcher never calls it, handlers do.
type Sender interface {
	SendMessage(ctx context.Context, phoneNumberID string, payload any) error
	MarkAsRead(ctx context.Context, phoneNumberID, messageID string) error
}

type stateEntry struct {
	handler Handler
	trigger Trigger
}

// stateDefinition is one named state: an ordered entry list plus an
// optional fallback handler. Entries are evaluated in registration order;
// first match wins.
type stateDefinition struct {
	entries  []stateEntry
	fallback Handler
}

// Opts holds configuration options for a Bot.
type Opts struct {
	Sender        Sender
	States        store.StateStore
	Registry      *wire.Registry
	StatusHandler StatusHandler
}

// Option defines a configuration option for a Bot.
type Option func(*Opts)

// WithSender sets the outbound transport used by Send and Reply.
func WithSender(s Sender) Option {
	return func(o *Opts) {
		o.Sender = s
	}
}

// WithStateStore sets the user-state backend. Defaults to an in-memory map.
func WithStateStore(s store.StateStore) Option {
	return func(o *Opts) {
		o.States = s
	}
}

// WithRegistry sets a custom message-kind registry.
func WithRegistry(r *wire.Registry) Option {
	return func(o *Opts) {
		o.Registry = r
	}
}

// WithStatusHandler registers a handler invoked for each status event in
// delivery order.
func WithStatusHandler(h StatusHandler) Option {
	return func(o *Opts) {
		o.StatusHandler = h
	}
}

// Bot owns one state machine instance: registry, decoder, queue, state
// table and user states. Multiple bots can coexist in a process; nothing
// here is process-global.
type Bot struct {
	registry      *wire.Registry
	decoder       *wire.Decoder
	queue         *UpdateQueue
	states        map[StateKey]*stateDefinition
	initialState  StateKey
	hasInitial    bool
	userStates    store.StateStore
	sender        Sender
	statusHandler StatusHandler
}

// New creates a bot, applying any provided options.
func New(opts ...Option) *Bot {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = wire.NewRegistry()
	}
	if cfg.States == nil {
		cfg.States = store.NewInMemoryStore()
	}
	return &Bot{
		registry:      cfg.Registry,
		decoder:       wire.NewDecoder(cfg.Registry),
		queue:         NewUpdateQueue(),
		states:        make(map[StateKey]*stateDefinition),
		userStates:    cfg.States,
		sender:        cfg.Sender,
		statusHandler: cfg.StatusHandler,
	}
}

// Decoder returns the bot's message decoder, used by the webhook receiver.
func (b *Bot) Decoder() *wire.Decoder {
	return b.decoder
}

// Registry returns the bot's message-kind registry.
func (b *Bot) Registry() *wire.Registry {
	return b.registry
}

// Enqueue appends a decoded envelope for dispatch. Safe for concurrent use
// from webhook handlers; never blocks on handler execution.
func (b *Bot) Enqueue(env *models.Envelope) error {
	return b.queue.Enqueue(env)
}

// AddState inserts a (handler, trigger) entry at the end of the state's
// list, creating the state if new. The first state ever defined becomes
// the initial state for new senders. Malformed triggers fail here, not at
// dispatch time.
func (b *Bot) AddState(state StateKey, handler Handler, trigger Trigger) error {
	if state == StateUnchanged {
		return fmt.Errorf("%w: state key must not be empty", ErrInvalidStateKey)
	}
	if handler == nil {
		return fmt.Errorf("%w: handler must not be nil", ErrInvalidTrigger)
	}
	normalized, err := trigger.normalize()
	if err != nil {
		return err
	}

	def, ok := b.states[state]
	if !ok {
		def = &stateDefinition{}
		b.states[state] = def
	}
	if !b.hasInitial {
		b.initialState = state
		b.hasInitial = true
		slog.Debug("Bot initial state set", "state", state)
	}
	def.entries = append(def.entries, stateEntry{handler: handler, trigger: normalized})
	slog.Debug("Bot state entry registered", "state", state, "entries", len(def.entries))
	return nil
}

// AddFallback registers the handler invoked when no trigger of the state
// matches. The state must already exist.
func (b *Bot) AddFallback(state StateKey, handler Handler) error {
	def, ok := b.states[state]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, state)
	}
	def.fallback = handler
	return nil
}

// InitialState returns the state assigned to senders seen for the first
// time.
func (b *Bot) InitialState() StateKey {
	return b.initialState
}

// UserState returns the tracked state for a sender, defaulting to the
// initial state.
func (b *Bot) UserState(sender string) (StateKey, error) {
	current, err := b.userStates.GetUserState(sender)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user state: %w", err)
	}
	if current == "" {
		return b.initialState, nil
	}
	return StateKey(current), nil
}

// Send delivers an outbound payload through the configured transport.
func (b *Bot) Send(ctx context.Context, phoneNumberID string, payload any) error {
	if b.sender == nil {
		return fmt.Errorf("no sender configured")
	}
	return b.sender.SendMessage(ctx, phoneNumberID, payload)
}

// Reply sends a payload through the business number that received the
// envelope.
func (b *Bot) Reply(ctx context.Context, env *models.Envelope, payload any) error {
	return b.Send(ctx, env.Metadata.PhoneNumberID, payload)
}

// MarkAsRead marks an inbound message as read.
func (b *Bot) MarkAsRead(ctx context.Context, env *models.Envelope, messageID string) error {
	if b.sender == nil {
		return fmt.Errorf("no sender configured")
	}
	return b.sender.MarkAsRead(ctx, env.Metadata.PhoneNumberID, messageID)
}
