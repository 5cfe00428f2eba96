package webhook_processor

const (
	AUTH_REASON_MISSING_HEADERS         string = "missing_headers"
	AUTH_REASON_INVALID_TIMESTAMP       string = "invalid_timestamp"
	AUTH_REASON_TIMESTAMP_OUT_OF_WINDOW string = "timestamp_out_of_window"
	AUTH_REASON_UNKNOWN_KEY             string = "unknown_key"
	AUTH_REASON_KEY_REVOKED             string = "key_revoked"
	AUTH_REASON_KEY_EXPIRED             string = "key_expired"
	AUTH_REASON_PRODUCT_INACTIVE        string = "product_inactive"
	AUTH_REASON_INVALID_SIGNATURE       string = "invalid_signature"
)

// AuthError carries the machine-readable rejection reason handed back to
// the sender. Nothing else about the failed check leaks out.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return e.Reason
}
