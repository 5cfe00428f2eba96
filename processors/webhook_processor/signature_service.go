package webhook_processor

import (
	"crypto/hmac"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/utils"
)

// SignatureWindow bounds the accepted skew between the sender asserted
// timestamp and the receiver clock. The boundary itself is accepted.
const SignatureWindow = 300 * time.Second

// KeyResolver resolves a signing key by kid, either straight from the
// store or through the read-through key cache.
type KeyResolver interface {
	FetchSigningKey(kid string) utils.Result[*models.SigningKey]
}

// LastUsedRecorder stamps a key's usage after a successful verification.
type LastUsedRecorder interface {
	TouchSigningKeyLastUsed(kid string, usedAt time.Time) utils.Result[bool]
}

// Headers are the three values a sender must supply with every delivery.
type Headers struct {
	Kid       string
	Signature string
	Timestamp string
}

type SignatureService struct {
	resolver KeyResolver
	recorder LastUsedRecorder
	logger   *slog.Logger
}

func NewSignatureService(resolver KeyResolver, recorder LastUsedRecorder, logger *slog.Logger) *SignatureService {
	return &SignatureService{
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
	}
}

// VerifySignature runs the verification chain over the raw body: header
// presence, timestamp freshness, key lookup, key and product state, then
// the constant-time signature comparison. Rejections come back as failed
// results carrying an AuthError; nothing panics past this boundary.
func (service *SignatureService) VerifySignature(headers Headers, body []byte) utils.Result[*models.SigningKey] {
	return service.verifySignatureAt(headers, body, time.Now())
}

func (service *SignatureService) verifySignatureAt(headers Headers, body []byte, now time.Time) utils.Result[*models.SigningKey] {
	if headers.Kid == "" || headers.Signature == "" || headers.Timestamp == "" {
		return failedAuthResult(AUTH_REASON_MISSING_HEADERS)
	}

	sentAtResult := utils.ToTime(headers.Timestamp)
	if sentAtResult.Failure() {
		return failedAuthResult(AUTH_REASON_INVALID_TIMESTAMP)
	}

	skew := now.Sub(sentAtResult.Value())
	if skew < 0 {
		skew = -skew
	}
	if skew > SignatureWindow {
		return failedAuthResult(AUTH_REASON_TIMESTAMP_OUT_OF_WINDOW)
	}

	keyResult := service.resolver.FetchSigningKey(headers.Kid)
	if keyResult.Failure() {
		if keyResult.IsRetryable() {
			return failedKeyResult(keyResult, "fetch_signing_key", "Error fetching signing key")
		}

		return failedAuthResult(AUTH_REASON_UNKNOWN_KEY)
	}

	key := keyResult.Value()
	if key.Revoked() {
		return failedAuthResult(AUTH_REASON_KEY_REVOKED)
	}
	if key.Expired(now) {
		return failedAuthResult(AUTH_REASON_KEY_EXPIRED)
	}
	if !key.Product.Active {
		return failedAuthResult(AUTH_REASON_PRODUCT_INACTIVE)
	}

	supplied, err := hex.DecodeString(headers.Signature)
	if err != nil {
		return failedAuthResult(AUTH_REASON_INVALID_SIGNATURE)
	}

	if !hmac.Equal(computeMAC(key.FullSecret(), headers.Timestamp, body), supplied) {
		return failedAuthResult(AUTH_REASON_INVALID_SIGNATURE)
	}

	return utils.SuccessResult(key)
}

// RecordKeyUsage stamps last_used_at, meant to run as a detached goroutine
// off the request path. Failures are logged and captured, never surfaced.
func (service *SignatureService) RecordKeyUsage(kid string, usedAt time.Time) {
	touchResult := service.recorder.TouchSigningKeyLastUsed(kid, usedAt)
	if touchResult.Failure() {
		service.logger.Error(
			"Failed to record signing key usage",
			slog.String("kid", kid),
			slog.String("error", touchResult.ErrorMsg()),
		)
		utils.CaptureErrorResult(touchResult)
	}
}

func failedAuthResult(reason string) utils.Result[*models.SigningKey] {
	return utils.FailedResult[*models.SigningKey](&AuthError{Reason: reason}).NonRetryable().NonCapturable()
}

func failedKeyResult(r utils.AnyResult, code string, message string) utils.Result[*models.SigningKey] {
	result := utils.FailedResult[*models.SigningKey](r.Error()).AddErrorDetails(code, message)
	result.Retryable = r.IsRetryable()
	result.Capture = r.IsCapturable()
	return result
}
