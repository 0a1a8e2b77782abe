package jose

// Validate checks the claim set against the given policy. A nil opts value
// applies the defaults: expiry, not-before and issued-in-the-future checks
// with DefaultTimeTolerance, and nothing else.
//
// Checks run in a fixed order, time claims first, so a token that is both
// expired and mis-issued always reports expiry.
func (c *Claims[C]) Validate(opts *VerificationOptions) error {
	now := opts.clock()
	tolerance := opts.tolerance()
	acceptFuture := opts != nil && opts.AcceptFuture

	if c.IssuedAt != nil && !acceptFuture && c.IssuedAt.After(now.Add(tolerance)) {
		return &ValidationError{Field: "iat", Message: "token issued in the future", Err: ErrIssuedInFuture}
	}
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(tolerance)) {
		return &ValidationError{Field: "exp", Message: "token has expired", Err: ErrTokenExpired}
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-tolerance)) {
		return &ValidationError{Field: "nbf", Message: "token not valid yet", Err: ErrTokenNotYetValid}
	}
	if opts == nil {
		return nil
	}

	if opts.RejectBefore != nil {
		if c.IssuedAt == nil || c.IssuedAt.Before(*opts.RejectBefore) {
			return &ValidationError{Field: "iat", Message: "token predates the acceptance cutoff", Err: ErrTokenTooOld}
		}
	}
	if opts.MaxValidity != nil {
		if c.IssuedAt == nil || c.ExpiresAt == nil {
			return &ValidationError{Field: "exp", Message: "validity cap requires iat and exp", Err: ErrMissingTimeClaims}
		}
		window := c.ExpiresAt.Sub(c.IssuedAt.Time)
		if window < 0 || window > *opts.MaxValidity {
			return &ValidationError{Field: "exp", Message: "validity window exceeds the cap", Err: ErrExcessiveValidity}
		}
	}

	if len(opts.AllowedIssuers) > 0 && !contains(opts.AllowedIssuers, c.Issuer) {
		return &ValidationError{Field: "iss", Message: "issuer not allowed", Err: ErrIssuerNotAllowed}
	}
	if len(opts.AllowedAudiences) > 0 {
		matched := false
		for _, allowed := range opts.AllowedAudiences {
			if c.Audiences.Contains(allowed) {
				matched = true
				break
			}
		}
		if !matched {
			return &ValidationError{Field: "aud", Message: "audience not allowed", Err: ErrAudienceNotAllowed}
		}
	}
	if opts.RequiredSubject != "" && c.Subject != opts.RequiredSubject {
		return &ValidationError{Field: "sub", Message: "subject mismatch", Err: ErrSubjectMismatch}
	}
	if opts.RequiredNonce != "" && c.Nonce != opts.RequiredNonce {
		return &ValidationError{Field: "nonce", Message: "nonce mismatch", Err: ErrNonceMismatch}
	}
	return nil
}

func contains(set []string, value string) bool {
	for _, candidate := range set {
		if candidate == value {
			return true
		}
	}
	return false
}
