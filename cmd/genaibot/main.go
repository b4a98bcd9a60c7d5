// Command genaibot runs a two-state conversation bot: customers opt in
// with /chat, then every text message is answered by a GenAI-generated
// reply until they send /stop.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/bot"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/cloudapi"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/genai"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/util"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/webhook"
	"github.com/joho/godotenv"
)

// Bot states.
const (
	stateIdle bot.StateKey = "idle"
	stateChat bot.StateKey = "chat"
)

// systemPrompt steers the generated replies.
const systemPrompt = "You are a friendly WhatsApp assistant. Keep replies short and conversational."

func main() {
	initializeLogger()

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	token := flag.String("token", os.Getenv("WHATSAPP_TOKEN"), "WhatsApp Meta API token")
	verifyToken := flag.String("verify-token", os.Getenv("VERIFY_TOKEN"), "verify token used to set a new callback URL")
	addr := flag.String("addr", util.GetenvDefault("LISTEN_ADDR", webhook.DefaultAddr), "webhook listen address")
	flag.Parse()

	if *token == "" {
		slog.Error("WhatsApp Meta API token is required (WHATSAPP_TOKEN or -token)")
		os.Exit(1)
	}

	sender, err := cloudapi.NewClient(*token)
	if err != nil {
		slog.Error("Failed to build Graph API client", "error", err)
		os.Exit(1)
	}
	gen, err := genai.NewClient()
	if err != nil {
		slog.Error("Failed to build GenAI client", "error", err)
		os.Exit(1)
	}

	b := bot.New(bot.WithSender(sender))
	mustAddState(b, stateIdle, startChatHandler, bot.TriggerText("/chat"))
	mustAddState(b, stateChat, stopChatHandler, bot.TriggerText("/stop"))
	mustAddState(b, stateChat, chatHandler(gen), bot.TriggerKinds(models.KindText, models.KindInteractive))
	if err := b.AddFallback(stateIdle, idleFallback); err != nil {
		slog.Error("Failed to register fallback", "error", err)
		os.Exit(1)
	}

	server := webhook.NewServer(b.Decoder(), b, *verifyToken, webhook.WithAddr(*addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Run(); err != nil {
			slog.Error("Webhook server failed", "error", err)
			stop()
		}
	}()

	if err := b.Run(ctx); err != nil {
		slog.Error("Dispatcher failed to run", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Webhook shutdown failed", "error", err)
	}
	slog.Info("genaibot exited successfully")
}

func mustAddState(b *bot.Bot, state bot.StateKey, handler bot.Handler, trigger bot.Trigger) {
	if err := b.AddState(state, handler, trigger); err != nil {
		slog.Error("Failed to register state", "error", err, "state", state)
		os.Exit(1)
	}
}

func startChatHandler(ctx context.Context, b *bot.Bot, env *models.Envelope, msg *models.Message) (bot.StateKey, error) {
	reply := models.NewText(msg.Sender, "Chat started. Send /stop when you are done.", false)
	if err := b.Reply(ctx, env, reply); err != nil {
		return bot.StateUnchanged, err
	}
	return stateChat, nil
}

func stopChatHandler(ctx context.Context, b *bot.Bot, env *models.Envelope, msg *models.Message) (bot.StateKey, error) {
	reply := models.NewText(msg.Sender, "Chat finished. Send /chat to start again.", false)
	if err := b.Reply(ctx, env, reply); err != nil {
		return bot.StateUnchanged, err
	}
	return stateIdle, nil
}

// chatHandler generates a reply for each customer message while chatting.
func chatHandler(gen *genai.Client) bot.Handler {
	return func(ctx context.Context, b *bot.Bot, env *models.Envelope, msg *models.Message) (bot.StateKey, error) {
		value, ok := msg.TextValue()
		if !ok {
			return bot.StateUnchanged, nil
		}
		answer, err := gen.GenerateReply(ctx, systemPrompt, value)
		if err != nil {
			return bot.StateUnchanged, err
		}
		if err := b.Reply(ctx, env, models.NewText(msg.Sender, answer, false)); err != nil {
			return bot.StateUnchanged, err
		}
		return bot.StateUnchanged, nil
	}
}

func idleFallback(ctx context.Context, b *bot.Bot, env *models.Envelope, msg *models.Message) (bot.StateKey, error) {
	reply := models.NewText(msg.Sender, "Send /chat to start a conversation.", false)
	if err := b.Reply(ctx, env, reply); err != nil {
		return bot.StateUnchanged, err
	}
	return bot.StateUnchanged, nil
}

func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
