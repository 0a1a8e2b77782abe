package jose

import (
	"errors"
	"fmt"
)

// Predefined errors for token encoding, verification and validation.
// Every failure mode has its own sentinel so callers can tell structural
// damage, policy violations, cryptographic rejections and semantic claim
// failures apart with errors.Is.
var (
	// Structural errors: the compact serialization itself is malformed
	ErrCompactEncoding = errors.New("compact encoding invalid: token must have exactly three dot-separated segments")
	ErrInvalidBase64   = errors.New("invalid base64url data in token segment")
	ErrSerialization   = errors.New("JSON serialization failed")

	// Policy errors: well-formed token rejected before any cryptographic work
	ErrHeaderTooLarge    = errors.New("token header exceeds the maximum encoded length")
	ErrTokenTooLarge     = errors.New("token exceeds the maximum allowed length")
	ErrAlgorithmMismatch = errors.New("token algorithm does not match the expected algorithm")
	ErrMissingKeyID      = errors.New("token header does not carry the required key identifier")
	ErrKeyIDMismatch     = errors.New("token key identifier does not match the required key identifier")

	// Cryptographic errors
	ErrVerificationFailed = errors.New("authentication tag verification failed")

	// Claims validation errors, only reachable after successful verification
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenNotYetValid   = errors.New("token is not valid yet")
	ErrIssuedInFuture     = errors.New("token issue time is in the future")
	ErrTokenTooOld        = errors.New("token was issued before the acceptance cutoff")
	ErrExcessiveValidity  = errors.New("token validity period exceeds the allowed maximum")
	ErrMissingTimeClaims  = errors.New("token is missing time claims required by the verification options")
	ErrIssuerNotAllowed   = errors.New("token issuer is not allowed")
	ErrAudienceNotAllowed = errors.New("token audience is not allowed")
	ErrSubjectMismatch    = errors.New("token subject does not match the required subject")
	ErrNonceMismatch      = errors.New("token nonce does not match the required nonce")

	// Key construction errors
	ErrInvalidKey = errors.New("invalid key material")
	ErrWeakKey    = errors.New("key material has insufficient entropy")

	// Processor errors
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrInvalidSecretKey     = errors.New("invalid secret key: must be at least 32 bytes with sufficient entropy")
	ErrInvalidSigningMethod = errors.New("invalid signing method: must be HS256, HS384, or HS512")
	ErrInvalidToken         = errors.New("invalid token: verification failed or malformed")
	ErrEmptyToken           = errors.New("empty token: token string cannot be empty")
	ErrTokenRevoked         = errors.New("token has been revoked and is no longer valid")
	ErrTokenMissingID       = errors.New("token does not contain a valid ID (jti claim)")
	ErrInvalidClaims        = errors.New("invalid claims: UserID or Username is required")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded: too many requests")
	ErrProcessorClosed      = errors.New("processor is closed: cannot perform operations")
)

// ValidationError describes a claims hygiene failure for a specific field.
// It provides detailed information about what validation failed and why.
type ValidationError struct {
	Field   string // The field that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed for field '%s': %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
