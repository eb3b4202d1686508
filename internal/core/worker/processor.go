package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citadelhq/transferd/internal/core/notifications"
)

const (
	maxAttempts  = 5
	pollInterval = 5 * time.Second
)

// StartWebhookWorker polls the webhook_jobs table and delivers pending
// events, signing each with the given secret. Failed deliveries are
// rescheduled with a growing delay until maxAttempts, then marked FAILED.
func StartWebhookWorker(db *pgxpool.Pool, secret string) {
	if secret == "" {
		slog.Warn("Webhook secret not configured, using default insecure key")
		secret = "default_insecure_key"
	}
	go func() {
		slog.Info("Webhook worker started")
		for {
			deliverNext(db, secret)
			time.Sleep(pollInterval)
		}
	}()
}

// deliverNext claims one due job and attempts delivery. SKIP LOCKED lets
// several workers poll the same table without handing a job out twice.
func deliverNext(db *pgxpool.Pool, secret string) {
	ctx := context.Background()

	var (
		id           string
		url          string
		payloadBytes []byte
		attempts     int
	)
	err := db.QueryRow(ctx, `
		SELECT id, url, payload, attempts
		FROM webhook_jobs
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&id, &url, &payloadBytes, &attempts)
	if err != nil {
		return
	}

	var payload interface{}
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		slog.Error("Worker: unreadable payload, dropping job", "error", err, "job_id", id)
		markFailed(ctx, db, id)
		return
	}

	slog.Info("Worker: delivering event", "url", url, "job_id", id, "attempt", attempts+1)

	if err := notifications.SendWebhook(url, payload, secret); err != nil {
		if attempts >= maxAttempts {
			slog.Error("Worker: giving up on job", "error", err, "job_id", id, "attempts", attempts)
			markFailed(ctx, db, id)
			return
		}
		nextRun := time.Now().Add(retryDelay(attempts))
		slog.Warn("Worker: delivery failed, rescheduling", "error", err, "job_id", id, "next_run", nextRun)
		db.Exec(ctx, `
			UPDATE webhook_jobs
			SET attempts = attempts + 1, next_run_at = $2
			WHERE id = $1
		`, id, nextRun)
		return
	}

	slog.Info("Worker: event delivered", "job_id", id)
	db.Exec(ctx, "UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1", id)
}

// retryDelay spaces attempts 10s further apart each time.
func retryDelay(attempts int) time.Duration {
	return time.Duration(attempts+1) * 10 * time.Second
}

func markFailed(ctx context.Context, db *pgxpool.Pool, id string) {
	db.Exec(ctx, "UPDATE webhook_jobs SET status = 'FAILED' WHERE id = $1", id)
}
