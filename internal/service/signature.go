// Package service implements relay business logic: webhook dispatch, the
// registry, notifications, and the event-producing domain services.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 of payload keyed by secret.
// Receivers recompute the digest over the request body and compare it to the
// X-Hub-Signature header. An empty secret yields an empty signature.
func Sign(payload []byte, secret string) string {
	if secret == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
