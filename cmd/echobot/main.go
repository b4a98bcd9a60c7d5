// Command echobot runs a minimal bot that reverses the text after an
// /echo command and sends it back to the customer.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/bot"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/cloudapi"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/models"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/store"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/util"
	"github.com/Sergio-Daniel-Pires/whatsapp-wrapper/internal/webhook"
	"github.com/joho/godotenv"
)

// Bot states.
const (
	stateStart bot.StateKey = "start"
)

// Config holds environment configuration.
type Config struct {
	WhatsAppToken string
	VerifyToken   string
	ListenAddr    string
	GraphEndpoint string
	APIVersion    string
	StateDBDriver string
	StateDBDSN    string
}

// Flags holds command line flag values.
type Flags struct {
	token       *string
	verifyToken *string
	addr        *string
	dbDriver    *string
	dbDSN       *string
}

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if *flags.token == "" {
		slog.Error("WhatsApp Meta API token is required (WHATSAPP_TOKEN or -token)")
		os.Exit(1)
	}

	states, err := buildStateStore(flags)
	if err != nil {
		slog.Error("Failed to build state store", "error", err)
		os.Exit(1)
	}
	defer states.Close()

	var clientOpts []cloudapi.Option
	if config.GraphEndpoint != "" {
		clientOpts = append(clientOpts, cloudapi.WithEndpoint(config.GraphEndpoint))
	}
	if config.APIVersion != "" {
		clientOpts = append(clientOpts, cloudapi.WithAPIVersion(config.APIVersion))
	}
	sender, err := cloudapi.NewClient(*flags.token, clientOpts...)
	if err != nil {
		slog.Error("Failed to build Graph API client", "error", err)
		os.Exit(1)
	}

	b := bot.New(bot.WithSender(sender), bot.WithStateStore(states))
	if err := b.AddState(stateStart, echoHandler, bot.TriggerText("/echo")); err != nil {
		slog.Error("Failed to register state", "error", err)
		os.Exit(1)
	}
	if err := b.AddFallback(stateStart, helpHandler); err != nil {
		slog.Error("Failed to register fallback", "error", err)
		os.Exit(1)
	}

	server := webhook.NewServer(b.Decoder(), b, *flags.verifyToken, webhook.WithAddr(*flags.addr))

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
	slog.Info("echobot exited successfully")
}

// echoHandler reverses the text after the /echo command and replies with it.
func echoHandler(ctx context.Context, b *bot.Bot, env *models.Envelope, msg *models.Message) (bot.StateKey, error) {
	value, ok := msg.TextValue()
	if !ok {
		return bot.StateUnchanged, nil
	}
	echoText := strings.TrimSpace(strings.TrimPrefix(value, "/echo"))
	runes := []rune(echoText)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}

	reply := models.NewText(msg.Sender, string(runes), false).InReplyTo(msg.ID)
	if err := b.Reply(ctx, env, reply); err != nil {
		return bot.StateUnchanged, err
	}
	return stateStart, nil
}

// helpHandler answers any non-command message with usage help.
func helpHandler(ctx context.Context, b *bot.Bot, env *models.Envelope, msg *models.Message) (bot.StateKey, error) {
	help := models.NewText(msg.Sender, "Send /echo followed by some text and I will echo it back reversed.", false)
	if err := b.Reply(ctx, env, help); err != nil {
		return bot.StateUnchanged, err
	}
	return bot.StateUnchanged, nil
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and
// the .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		WhatsAppToken: os.Getenv("WHATSAPP_TOKEN"),
		VerifyToken:   os.Getenv("VERIFY_TOKEN"),
		ListenAddr:    util.GetenvDefault("LISTEN_ADDR", webhook.DefaultAddr),
		GraphEndpoint: os.Getenv("GRAPH_ENDPOINT"),
		APIVersion:    os.Getenv("GRAPH_API_VERSION"),
		StateDBDriver: util.GetenvDefault("STATE_DB_DRIVER", "memory"),
		StateDBDSN:    os.Getenv("STATE_DB_DSN"),
	}

	slog.Debug("environment variables loaded",
		"WHATSAPP_TOKEN_SET", config.WhatsAppToken != "",
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"LISTEN_ADDR", config.ListenAddr,
		"STATE_DB_DRIVER", config.StateDBDriver,
		"STATE_DB_DSN_SET", config.StateDBDSN != "")
	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		token:       flag.String("token", config.WhatsAppToken, "WhatsApp Meta API token"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "verify token used to set a new callback URL"),
		addr:        flag.String("addr", config.ListenAddr, "webhook listen address"),
		dbDriver:    flag.String("state-db-driver", config.StateDBDriver, "user state backend: memory, sqlite3 or postgres"),
		dbDSN:       flag.String("state-db-dsn", config.StateDBDSN, "user state database DSN"),
	}
	flag.Parse()
	return flags
}

// buildStateStore selects the user-state backend from flags.
func buildStateStore(flags Flags) (store.StateStore, error) {
	switch *flags.dbDriver {
	case "sqlite3":
		return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		return store.NewInMemoryStore(), nil
	}
}
