package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// validSignature checks the platform's webhook signature: the base64
// HMAC-SHA256 of the raw body under the channel secret. Comparison is
// constant-time.
func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
