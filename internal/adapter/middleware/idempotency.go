package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
)

const (
	// IdempotencyHeader is the standard HTTP header for idempotency keys.
	IdempotencyHeader = "Idempotency-Key"

	// IdempotencyCacheTTL defines how long responses stay cached.
	IdempotencyCacheTTL = 24 * time.Hour

	// LockTimeout prevents indefinite locks if a request crashes mid-flight.
	LockTimeout = 10 * time.Second

	cacheKeyPrefix = "idempotency:"
	lockKeyPrefix  = "lock:"
)

// storedResponse is the cached outcome of a processed request: the
// status must replay along with the body, a created transfer answers 201
// on the retry too.
type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Idempotency caches responses in Redis keyed by the Idempotency-Key
// header, so a retried transfer request replays the recorded outcome
// instead of moving money twice. Requests without the header pass through
// untouched. A SetNX lock rejects a concurrent duplicate while the first
// request is still in flight.
//
// Only 2xx responses are cached: a failed transfer left no mutation worth
// replaying, and the caller may legitimately retry it.
func Idempotency(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyHeader)
		if key == "" {
			return c.Next()
		}

		ctx := c.Context()
		cacheKey := cacheKeyPrefix + key
		lockKey := lockKeyPrefix + key

		cached, err := rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var stored storedResponse
			if err := json.Unmarshal(cached, &stored); err == nil {
				slog.Info("Idempotency hit, returning cached response", "key", key, "status", stored.Status)
				c.Set("X-Idempotency-Hit", "true")
				c.Set("Content-Type", "application/json")
				return c.Status(stored.Status).Send(stored.Body)
			}
			// A corrupt entry is treated as a miss and overwritten below.
			slog.Error("Discarding unreadable idempotency entry", "key", key)
		}

		acquired, err := rdb.SetNX(ctx, lockKey, "processing", LockTimeout).Result()
		if err != nil {
			slog.Error("Idempotency lock acquisition failed", "error", err, "key", key)
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		if !acquired {
			slog.Warn("Concurrent request with same idempotency key", "key", key)
			return c.Status(http.StatusConflict).JSON(fiber.Map{
				"error": "A request with this idempotency key is currently being processed",
			})
		}
		defer func() {
			if err := rdb.Del(ctx, lockKey).Err(); err != nil {
				slog.Error("Failed to release idempotency lock", "error", err, "key", key)
			}
		}()

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			body := make([]byte, len(c.Response().Body()))
			copy(body, c.Response().Body())

			entry, err := json.Marshal(storedResponse{Status: status, Body: body})
			if err != nil {
				slog.Error("Failed to marshal idempotent response", "error", err, "key", key)
				return nil
			}
			if err := rdb.Set(ctx, cacheKey, entry, IdempotencyCacheTTL).Err(); err != nil {
				slog.Error("Failed to cache idempotent response", "error", err, "key", key)
			}
		}
		return nil
	}
}
