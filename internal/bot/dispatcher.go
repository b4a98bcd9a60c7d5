package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
)

// Run executes the dispatch loop until ctx is cancelled. Envelopes are
// processed serially in enqueue order, one envelope fully drained before
// the next is dequeued; messages within an envelope are processed in
// vendor-delivery order. This single-consumer design makes the user-state
// store effectively single-writer.
//
// On cancellation the queue is closed and its remaining contents are
// dropped: the webhook source already received its 200 and will not
// redeliver.
func (b *Bot) Run(ctx context.Context) error {
	if !b.hasInitial {
		return ErrEmptyState
	}
	slog.Info("Dispatcher starting", "states", len(b.states), "initial_state", b.initialState)

	go func() {
		<-ctx.Done()
		b.queue.Close()
	}()

	for {
		env, err := b.queue.Dequeue()
		if err != nil {
			slog.Info("Dispatcher stopped", "dropped", b.queue.Len())
			return nil
		}
		b.processEnvelope(ctx, env)
	}
}

// processEnvelope drains one envelope: statuses first, then messages, both
// in delivery order. Per-message failures are logged and isolated so one
// bad message cannot halt the loop.
func (b *Bot) processEnvelope(ctx context.Context, env *models.Envelope) {
	for i := range env.Statuses {
		if b.statusHandler == nil {
			break
		}
		if err := env.SetActiveStatus(i); err != nil {
			break
		}
		status := &env.Statuses[i]
		if err := b.statusHandler(ctx, b, env, status); err != nil {
			slog.Error("Dispatcher status handler failed", "error", err, "message_id", status.ID, "status", status.Status)
		}
	}

	for i := range env.Messages {
		if err := env.SetActiveMessage(i); err != nil {
			break
		}
		msg := &env.Messages[i]
		if err := b.dispatchMessage(ctx, env, msg); err != nil {
			slog.Error("Dispatcher message failed", "error", err, "message_id", msg.ID, "sender", msg.Sender, "kind", msg.Type)
		}
	}
}

// dispatchMessage resolves the sender's current state, walks the state's
// entries in registration order and invokes the first matching handler,
// falling back to the state's fallback handler when nothing matches. A
// non-empty returned state is persisted for the sender.
func (b *Bot) dispatchMessage(ctx context.Context, env *models.Envelope, msg *models.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher handler panicked", "panic", r, "message_id", msg.ID, "sender", msg.Sender, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	current, err := b.UserState(msg.Sender)
	if err != nil {
		return err
	}
	def, ok := b.states[current]
	if !ok {
		// A sender was previously assigned a state that is no longer in the
		// table. Non-recoverable for this message.
		return fmt.Errorf("%w: %q", ErrUnknownState, current)
	}

	next := StateUnchanged
	matched := false
	for _, entry := range def.entries {
		if !entry.trigger.matches(msg) {
			continue
		}
		matched = true
		next, err = entry.handler(ctx, b, env, msg)
		break
	}

	if !matched {
		if def.fallback == nil {
			value, _ := msg.TextValue()
			slog.Warn("Dispatcher message not matched", "sender", msg.Sender, "state", current, "kind", msg.Type, "value", value)
			return nil
		}
		next, err = def.fallback(ctx, b, env, msg)
	}
	if err != nil {
		return fmt.Errorf("handler failed in state %q: %w", current, err)
	}

	if next != StateUnchanged {
		if err := b.userStates.SetUserState(msg.Sender, string(next)); err != nil {
			return fmt.Errorf("failed to persist state %q for sender %q: %w", next, msg.Sender, err)
		}
		slog.Debug("Dispatcher state transition", "sender", msg.Sender, "from", current, "to", next)
	}
	return nil
}
