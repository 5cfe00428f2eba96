package webhook_processor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

func computeMAC(secret string, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// ComputeSignature returns the hex HMAC-SHA256 of "{timestamp}.{body}"
// keyed by the full secret.
func ComputeSignature(secret string, timestamp string, body []byte) string {
	return hex.EncodeToString(computeMAC(secret, timestamp, body))
}

// SignPayload produces the timestamp and signature header pair for an
// outbound delivery, signed the same way inbound ones are verified.
func SignPayload(secret string, body []byte, now time.Time) (string, string) {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	return timestamp, ComputeSignature(secret, timestamp, body)
}
