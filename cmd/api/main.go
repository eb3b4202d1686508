package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/citadelhq/transferd/internal/adapter/handler"
	"github.com/citadelhq/transferd/internal/adapter/middleware"
	"github.com/citadelhq/transferd/internal/adapter/storage"
	"github.com/citadelhq/transferd/internal/core/config"
	"github.com/citadelhq/transferd/internal/core/transfer"
	"github.com/citadelhq/transferd/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dbPool, err := storage.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	if err := storage.Initialize(context.Background(), dbPool); err != nil {
		slog.Error("Schema initialization failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// Idempotency caching degrades, transfers still work.
		slog.Warn("Redis unreachable, idempotency cache disabled", "error", err)
	}

	accountRepo := storage.NewAccountRepository(dbPool)
	ledgerRepo := storage.NewLedgerRepository(dbPool)
	potRepo := storage.NewPotRepository(dbPool)

	engine := transfer.NewEngine(storage.NewStore(accountRepo, ledgerRepo), transfer.Config{
		CallTimeout: cfg.StoreTimeout,
		MaxRetries:  cfg.MaxRetries,
	}, logger.With("component", "transfer"))

	accountHandler := &handler.AccountHandler{Repo: accountRepo}
	transferHandler := &handler.TransferHandler{Engine: engine, Events: ledgerRepo, WebhookURL: cfg.WebhookURL}
	transactionHandler := &handler.TransactionHandler{Ledger: ledgerRepo}
	potHandler := &handler.PotHandler{Repo: potRepo}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/v1")

	// Public
	api.Post("/users", accountHandler.CreateUser)
	api.Post("/users/:id/keys", accountHandler.GenerateKey)
	api.Post("/accounts", accountHandler.CreateAccount)

	// Protected
	private := api.Use(middleware.Protected(dbPool))
	private.Get("/accounts/:id", accountHandler.GetAccount)
	private.Get("/accounts/:id/transactions", transactionHandler.GetHistory)
	private.Post("/transfers", middleware.Idempotency(rdb), transferHandler.Transfer)
	private.Post("/transactions/manual", transactionHandler.CreateManualEntry)
	private.Post("/pots", potHandler.CreatePot)
	private.Get("/pots", potHandler.ListPots)
	private.Post("/pots/:id/fund", potHandler.FundPot)

	worker.StartWebhookWorker(dbPool, cfg.WebhookSecret)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutting down server")

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	dbPool.Close()
	if err := rdb.Close(); err != nil {
		slog.Error("Redis close failed", "error", err)
	}
	slog.Info("Server exited")
}
