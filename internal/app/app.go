package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"refbot/internal/bot"
	"refbot/internal/config"
	"refbot/internal/ledger"
	"refbot/internal/storage"
	"refbot/internal/storage/ch"
	"refbot/internal/storage/pg"
	"refbot/internal/storage/stubs"
	"refbot/internal/withdraw"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	store  storage.Store
	sink   storage.EventSink
	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting referral bot...")

	// Initialize the account store and the optional event sink
	if err := app.initStorage(); err != nil {
		return nil, err
	}

	// Initialize bot
	if err := app.initBot(); err != nil {
		return nil, err
	}

	// Initialize HTTP server
	app.initHTTPServer()

	return app, nil
}

// initStorage initializes the ledger store and the optional ClickHouse
// event sink
func (a *App) initStorage() error {
	ctx := context.Background()

	if a.config.UseMockDB {
		a.logger.Info("Using in-memory store")
		a.store = stubs.NewMockStore()
	} else {
		a.logger.Info("Connecting to Postgres",
			zap.String("host", a.config.DBHost),
			zap.String("port", a.config.DBPort),
			zap.String("database", a.config.DBName),
		)
		store, err := pg.NewPostgresStore(ctx, a.config.PostgresDSN())
		if err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		a.store = store
	}

	if err := a.store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	if a.config.ClickHouseHost != "" {
		a.logger.Info("Connecting to ClickHouse event sink",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
		)
		sink, err := ch.NewClickHouseSink(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		if err := sink.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize event sink: %w", err)
		}
		a.sink = sink
	} else {
		a.logger.Info("ClickHouse event sink disabled")
	}

	a.logger.Info("Storage initialized successfully")
	return nil
}

// initBot initializes the Telegram bot and the ledger core behind it
func (a *App) initBot() error {
	ledgerSvc := ledger.New(a.store, a.sink, a.logger)
	tracker := withdraw.NewTracker(a.config.WithdrawStateTTL)
	flow := withdraw.NewFlow(ledgerSvc, a.store, tracker, a.logger)

	telegramBot, err := bot.NewBot(a.config.TelegramToken, ledgerSvc, flow, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	a.bot = telegramBot
	return nil
}

// initHTTPServer initializes the HTTP server for health checks and webhook
func (a *App) initHTTPServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080" // Default port
	}

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	// Root endpoint
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "Referral bot is running (mode: %s)", mode)
	})

	// Webhook endpoint (only used in webhook mode)
	http.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			a.logger.Warn("Error decoding webhook update", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		// Process update in background to respond quickly to Telegram
		go a.bot.HandleWebhookUpdate(update)

		w.WriteHeader(http.StatusOK)
	})

	a.server = &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Start HTTP server in background
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		// Webhook mode: configure webhook and wait for HTTP requests
		a.logger.Info("Starting bot in WEBHOOK mode", zap.String("url", a.config.WebhookURL))
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
	} else {
		// Polling mode: actively poll Telegram servers
		go func() {
			a.logger.Info("Starting bot in POLLING mode...")
			if err := a.bot.Start(); err != nil {
				a.logger.Fatal("Failed to start bot", zap.Error(err))
			}
		}()
	}

	// Wait for interrupt signal
	<-sigChan

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Close the event sink
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Error("Error closing event sink", zap.Error(err))
		}
	}

	// Close the store
	if err := a.store.Close(); err != nil {
		a.logger.Error("Error closing store", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	return nil
}
