package jose

import "time"

// DefaultTimeTolerance is the clock-skew allowance applied to time-based
// claim checks when VerificationOptions.TimeTolerance is left nil.
const DefaultTimeTolerance = 15 * time.Minute

// VerificationOptions hold the policy side of verification: everything a
// deployment decides about which tokens to accept, as opposed to whether
// the tag is authentic. The zero value is a usable permissive default.
type VerificationOptions struct {
	// RejectBefore refuses tokens issued before the given instant, e.g. the
	// time of the account's last credential rotation.
	RejectBefore *time.Time

	// AcceptFuture disables the issued-in-the-future check.
	AcceptFuture bool

	// RequiredSubject must equal the token's "sub" claim when set.
	RequiredSubject string

	// RequiredKeyID must equal the header's "kid" field when set. The header
	// must carry a key ID at all in that case.
	RequiredKeyID string

	// RequiredNonce must equal the token's "nonce" claim when set.
	RequiredNonce string

	// AllowedIssuers, when non-empty, is the closed set of acceptable "iss"
	// values.
	AllowedIssuers []string

	// AllowedAudiences, when non-empty, requires at least one of the token's
	// audiences to appear in the set.
	AllowedAudiences []string

	// TimeTolerance overrides DefaultTimeTolerance. Point it at zero to
	// disable skew allowance entirely.
	TimeTolerance *time.Duration

	// MaxValidity caps the issued-at to expiry window. Tokens missing either
	// claim fail the check.
	MaxValidity *time.Duration

	// ArtificialTime substitutes for the wall clock in every time-based
	// check.
	ArtificialTime *time.Time

	// MaxTokenLength rejects serialized tokens longer than this many bytes
	// before any parsing. Zero means unbounded.
	MaxTokenLength int
}

func (o *VerificationOptions) tolerance() time.Duration {
	if o == nil || o.TimeTolerance == nil {
		return DefaultTimeTolerance
	}
	return *o.TimeTolerance
}

func (o *VerificationOptions) clock() time.Time {
	if o == nil || o.ArtificialTime == nil {
		return time.Now()
	}
	return *o.ArtificialTime
}

// Ptr returns a pointer to v, for filling the optional fields of
// VerificationOptions inline.
func Ptr[T any](v T) *T {
	return &v
}
