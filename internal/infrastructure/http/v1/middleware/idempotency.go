package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore is implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	ReleaseKey(ctx context.Context, key string) error
}

var _ IdempotencyStore = (*postgres.IdempotencyStore)(nil)

// Idempotency middleware replays the stored response of a retried write,
// e.g. an evening dip resubmitted after a dropped connection.
// Requests without X-Idempotency-Key pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch &&
			c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// Path parameters are part of the request identity, not just the body.
		h := sha256.New()
		h.Write([]byte(c.Request.URL.Path))
		h.Write([]byte{0})
		h.Write(body)
		requestHash := hex.EncodeToString(h.Sum(nil))

		operation := c.Request.Method + " " + c.FullPath()
		userID := appctx.GetUserID(c.Request.Context())

		replay, err := store.AcquireKey(c.Request.Context(), key, userID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			if len(replay.Body) == 0 {
				c.Status(replay.StatusCode)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

func idempotencyFrom(c *gin.Context) (IdempotencyStore, string, bool) {
	key, ok := c.Get(ctxIdempotencyKey)
	if !ok {
		return nil, "", false
	}
	raw, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return nil, "", false
	}
	store, ok := raw.(IdempotencyStore)
	if !ok || store == nil {
		return nil, "", false
	}
	return store, key.(string), true
}

// CompleteIdempotency stores the response about to be written so a retry replays it.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	var body []byte
	if response != nil {
		b, err := json.Marshal(response)
		if err != nil {
			logger.Warn(c.Request.Context(), "idempotent response not stored", "key", key, "error", err)
			return
		}
		body = b
	}
	if err := store.CompleteKey(c.Request.Context(), key, statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "idempotent response not stored", "key", key, "error", err)
	}
}

func failIdempotency(c *gin.Context, statusCode int, body gin.H) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	b, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, statusCode, "application/json", b); err != nil {
		logger.Warn(c.Request.Context(), "idempotent failure not stored", "key", key, "error", err)
	}
}

func releaseIdempotency(c *gin.Context) {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.ReleaseKey(c.Request.Context(), key); err != nil {
		logger.Warn(c.Request.Context(), "idempotency key not released", "key", key, "error", err)
	}
}
