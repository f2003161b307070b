// Package crypto groups the cryptographic primitives the core needs that
// are not already ambient (Argon2 password hashing and AES secret-key
// encryption live in internal/service, close to the teacher's originals):
// webhook HMAC signing/verification and opaque credential hashing.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxSignatureAge is how old a webhook signature's timestamp may be before
// verification rejects it.
const MaxSignatureAge = 300 * time.Second

// SignWebhook computes the "t=<unix-seconds>,v1=<hex>" signature header for
// a webhook payload, the way CedrosPay-server's stripe client idiom and
// real Stripe webhooks both format their signature header.
func SignWebhook(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", ts, sig)
}

// VerifyWebhookSignature checks a "t=...,v1=..." header against payload and
// secret, rejecting headers older than MaxSignatureAge relative to now.
func VerifyWebhookSignature(secret string, payload []byte, header string, now time.Time) bool {
	ts, sig, ok := parseSignatureHeader(header)
	if !ok {
		return false
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > MaxSignatureAge {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}

func parseSignatureHeader(header string) (ts int64, sig string, ok bool) {
	parts := strings.Split(header, ",")
	if len(parts) != 2 {
		return 0, "", false
	}

	var tsStr string
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return 0, "", false
		}
		switch kv[0] {
		case "t":
			tsStr = kv[1]
		case "v1":
			sig = kv[1]
		}
	}
	if tsStr == "" || sig == "" {
		return 0, "", false
	}

	parsed, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return parsed, sig, true
}

// HashAPIKey returns the storable representation of a plaintext API key:
// "sha256:" followed by the lowercase hex digest.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// GenerateAPIKey returns a new random API key with the given prefix
// (e.g. "sk_live_"), following the teacher's generateKey idiom but
// base64url-encoding the random material the way the issued key is meant
// to look: "sk_live_" + base64url(24 random bytes).
func GenerateAPIKey(prefix string, randomBytes int) (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}
