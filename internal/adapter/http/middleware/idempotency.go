package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"smartpay/internal/core/ports"
	"smartpay/pkg/apperror"
	"smartpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128

	// claimTTL bounds how long a crashed request can block its key.
	claimTTL = time.Minute
)

// idempotencyEntry is what the cache holds for a key. Token is set while the
// first request is still running; Status and Body once it has finished.
type idempotencyEntry struct {
	Fingerprint string `json:"fingerprint"`
	Token       string `json:"token,omitempty"`
	Status      int    `json:"status,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (e idempotencyEntry) inFlight() bool { return e.Status == 0 }

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency makes a route safe to retry with an Idempotency-Key header.
// The key is claimed before the handler runs, so only one request per key
// reaches the ledger:
//   - a repeat after a final outcome (2xx or a declined 402) replays it
//   - a repeat while the first is running gets 409 IDEM_001
//   - a repeat with a different body gets 422 IDEM_002
//
// Other outcomes release the key so the client can retry. When the cache is
// unreachable the request is handled without idempotency.
func Idempotency(cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || len(key) > maxIdempotencyKeyLen {
			c.Next()
			return
		}

		var raw []byte
		if c.Request.Body != nil {
			var err error
			if raw, err = io.ReadAll(c.Request.Body); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					response.Error(c, apperror.ErrBodyTooLarge())
				} else {
					response.Error(c, apperror.Validation("unreadable request body"))
				}
				c.Abort()
				return
			}
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		cacheKey := c.FullPath() + ":" + key
		fingerprint := requestFingerprint(c.Request.Method, c.FullPath(), raw)
		reserveFor := claimTTL
		if ttl > 0 && ttl < reserveFor {
			reserveFor = ttl
		}
		// Complete and Release run after the client may have gone away.
		ctx := context.WithoutCancel(c.Request.Context())
		log := log.With().Str("idempotency_key", cacheKey).Logger()

		claim, err := json.Marshal(idempotencyEntry{Fingerprint: fingerprint, Token: uuid.NewString()})
		if err != nil {
			c.Next()
			return
		}

		owned, err := cache.Reserve(ctx, cacheKey, claim, reserveFor)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency reserve failed, handling request")
			c.Next()
			return
		}
		if !owned {
			answerRepeat(c, cache, cacheKey, fingerprint, log)
			return
		}

		finished := false
		defer func() {
			// also runs when the handler panics
			if finished {
				return
			}
			if err := cache.Release(ctx, cacheKey, claim); err != nil {
				log.Warn().Err(err).Msg("idempotency release failed")
			}
		}()

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if !(status >= 200 && status < 300) && status != http.StatusPaymentRequired {
			return
		}
		final, err := json.Marshal(idempotencyEntry{Fingerprint: fingerprint, Status: status, Body: rec.body.Bytes()})
		if err != nil {
			return
		}
		if err := cache.Complete(ctx, cacheKey, claim, final, ttl); err != nil {
			log.Warn().Err(err).Int("status", status).Msg("idempotency result not stored")
			return
		}
		finished = true
	}
}

func answerRepeat(c *gin.Context, cache ports.IdempotencyCache, cacheKey, fingerprint string, log zerolog.Logger) {
	defer c.Abort()

	stored, err := cache.Get(c.Request.Context(), cacheKey)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency lookup failed")
		response.Error(c, apperror.ErrStorageUnavailable(err))
		return
	}
	if stored == nil {
		// the first request released or expired between Reserve and Get
		response.Error(c, apperror.ErrRequestInFlight())
		return
	}

	var prev idempotencyEntry
	if err := json.Unmarshal(stored, &prev); err != nil {
		log.Error().Err(err).Msg("corrupt idempotency entry")
		response.Error(c, apperror.InternalError(err))
		return
	}

	switch {
	case prev.Fingerprint != fingerprint:
		response.Error(c, apperror.ErrKeyReused())
	case prev.inFlight():
		response.Error(c, apperror.ErrRequestInFlight())
	default:
		c.Header(HeaderReplayed, "true")
		c.Data(prev.Status, "application/json; charset=utf-8", prev.Body)
	}
}

func requestFingerprint(method, route string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(route))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
