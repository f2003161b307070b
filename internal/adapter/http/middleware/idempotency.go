package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderIdempotencyKey is the header carrying the client-supplied
// idempotency token. Per the 256-byte limit, requests exceeding it are
// rejected rather than silently truncated.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 256

// bodyCapturingWriter mirrors everything written to the real
// gin.ResponseWriter into a buffer so the idempotency middleware can
// persist the final response after the handler chain completes.
type bodyCapturingWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyCapturingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency gates POST/PUT/PATCH requests carrying an Idempotency-Key
// header through the two-tier idempotency engine: a cached reply is
// replayed verbatim, a request already in flight is rejected as a
// conflict, and a fresh request's response is persisted once the handler
// chain completes.
func Idempotency(engine ports.IdempotencyEngine, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key exceeds 256 bytes"))
			c.Abort()
			return
		}

		merchantIDVal, ok := c.Get(CtxMerchantID)
		if !ok {
			c.Next()
			return
		}
		merchantID := merchantIDVal.(uuid.UUID)

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		fingerprint := fingerprintOf(c.Request.Method, c.Request.URL.Path, bodyBytes)

		result, err := engine.Check(c.Request.Context(), key, merchantID, fingerprint)
		if err != nil {
			if errors.Is(err, ports.ErrIdempotencyConflict) {
				response.Error(c, apperror.IdempotencyConflict("idempotency key reused with a different request"))
				c.Abort()
				return
			}
			log.Warn().Err(err).Msg("idempotency check failed, proceeding without guard")
		} else if result.Exists {
			if result.Processing {
				response.Error(c, apperror.IdempotencyConflict("request with this idempotency key is already in progress"))
				c.Abort()
				return
			}
			c.Data(result.CachedStatusCode, "application/json", result.CachedResponse)
			c.Abort()
			return
		}

		if err := engine.StartProcessing(c.Request.Context(), key, merchantID, fingerprint, c.Request.URL.Path, c.Request.Method); err != nil {
			if errors.Is(err, ports.ErrIdempotencyConflict) {
				response.Error(c, apperror.IdempotencyConflict("idempotency key reused with a different request"))
				c.Abort()
				return
			}
			log.Warn().Err(err).Msg("failed to reserve idempotency key, proceeding without guard")
			c.Next()
			return
		}

		capture := &bodyCapturingWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = capture

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 500 {
			if err := engine.Complete(c.Request.Context(), key, merchantID, status, capture.buf.Bytes()); err != nil {
				log.Warn().Err(err).Msg("failed to persist idempotency completion")
			}
		} else {
			if err := engine.Remove(c.Request.Context(), key, merchantID); err != nil {
				log.Warn().Err(err).Msg("failed to remove reserved idempotency key after failure")
			}
		}
	}
}

// fingerprintPayload is the canonical shape hashed to fingerprint a request.
// Field order is fixed by struct declaration order, so encoding/json always
// serializes it the same way.
type fingerprintPayload struct {
	Body   json.RawMessage `json:"body"`
	Path   string          `json:"path"`
	Method string          `json:"method"`
}

func fingerprintOf(method, path string, body []byte) string {
	raw := body
	if len(raw) == 0 {
		raw = []byte("null")
	}
	payload, _ := json.Marshal(fingerprintPayload{Body: raw, Path: path, Method: method})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
