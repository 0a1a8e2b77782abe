package jose

import (
	"errors"
	"testing"
	"time"
)

// 🧪 COMPREHENSIVE TESTS: Claim Validation Policy

// validationBase pins the clock so every case below is deterministic.
var validationBase = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func pinnedOpts() *VerificationOptions {
	return &VerificationOptions{
		ArtificialTime: Ptr(validationBase),
		TimeTolerance:  Ptr(time.Duration(0)),
	}
}

func timedClaims(issuedAt, expiresAt time.Time) *Claims[NoCustomClaims] {
	return &Claims[NoCustomClaims]{
		IssuedAt:  NewNumericDate(issuedAt),
		ExpiresAt: NewNumericDate(expiresAt),
	}
}

func TestValidateTimeClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  *Claims[NoCustomClaims]
		opts    *VerificationOptions
		wantErr error
	}{
		{
			name:   "Live token",
			claims: timedClaims(validationBase.Add(-time.Hour), validationBase.Add(time.Hour)),
			opts:   pinnedOpts(),
		},
		{
			name:    "Expired token",
			claims:  timedClaims(validationBase.Add(-2*time.Hour), validationBase.Add(-time.Minute)),
			opts:    pinnedOpts(),
			wantErr: ErrTokenExpired,
		},
		{
			name:   "Expired within tolerance",
			claims: timedClaims(validationBase.Add(-2*time.Hour), validationBase.Add(-time.Minute)),
			opts: &VerificationOptions{
				ArtificialTime: Ptr(validationBase),
				TimeTolerance:  Ptr(5 * time.Minute),
			},
		},
		{
			name: "Not yet valid",
			claims: &Claims[NoCustomClaims]{
				NotBefore: NewNumericDate(validationBase.Add(10 * time.Minute)),
			},
			opts:    pinnedOpts(),
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "Not-before within tolerance",
			claims: &Claims[NoCustomClaims]{
				NotBefore: NewNumericDate(validationBase.Add(10 * time.Minute)),
			},
			opts: &VerificationOptions{
				ArtificialTime: Ptr(validationBase),
				TimeTolerance:  Ptr(15 * time.Minute),
			},
		},
		{
			name:    "Issued in the future",
			claims:  timedClaims(validationBase.Add(time.Hour), validationBase.Add(2*time.Hour)),
			opts:    pinnedOpts(),
			wantErr: ErrIssuedInFuture,
		},
		{
			name:   "Future issuance accepted on request",
			claims: timedClaims(validationBase.Add(time.Hour), validationBase.Add(2*time.Hour)),
			opts: &VerificationOptions{
				ArtificialTime: Ptr(validationBase),
				TimeTolerance:  Ptr(time.Duration(0)),
				AcceptFuture:   true,
			},
		},
		{
			name:   "No time claims at all",
			claims: &Claims[NoCustomClaims]{},
			opts:   pinnedOpts(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.claims.Validate(tt.opts)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateExpiryBeforeIdentityChecks(t *testing.T) {
	// A token that is both expired and mis-issued reports expiry: time
	// checks always run first.
	claims := timedClaims(validationBase.Add(-2*time.Hour), validationBase.Add(-time.Hour))
	claims.Issuer = "unknown-issuer"

	opts := pinnedOpts()
	opts.AllowedIssuers = []string{"auth-core"}

	if err := claims.Validate(opts); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired to win over issuer policy, got %v", err)
	}
}

func TestValidateRejectBefore(t *testing.T) {
	cutoff := validationBase.Add(-time.Hour)

	opts := pinnedOpts()
	opts.RejectBefore = Ptr(cutoff)

	old := timedClaims(validationBase.Add(-2*time.Hour), validationBase.Add(time.Hour))
	if err := old.Validate(opts); !errors.Is(err, ErrTokenTooOld) {
		t.Errorf("Expected ErrTokenTooOld, got %v", err)
	}

	fresh := timedClaims(validationBase.Add(-30*time.Minute), validationBase.Add(time.Hour))
	if err := fresh.Validate(opts); err != nil {
		t.Errorf("Token issued after the cutoff should pass: %v", err)
	}

	// Without an issued-at claim the cutoff cannot be proven met.
	missing := &Claims[NoCustomClaims]{ExpiresAt: NewNumericDate(validationBase.Add(time.Hour))}
	if err := missing.Validate(opts); !errors.Is(err, ErrTokenTooOld) {
		t.Errorf("Expected ErrTokenTooOld for a missing iat, got %v", err)
	}
}

func TestValidateMaxValidity(t *testing.T) {
	opts := pinnedOpts()
	opts.MaxValidity = Ptr(time.Hour)

	within := timedClaims(validationBase.Add(-10*time.Minute), validationBase.Add(30*time.Minute))
	if err := within.Validate(opts); err != nil {
		t.Errorf("Window inside the cap should pass: %v", err)
	}

	excessive := timedClaims(validationBase.Add(-10*time.Minute), validationBase.Add(2*time.Hour))
	if err := excessive.Validate(opts); !errors.Is(err, ErrExcessiveValidity) {
		t.Errorf("Expected ErrExcessiveValidity, got %v", err)
	}

	// An expiry before the issue time is never a valid window.
	inverted := timedClaims(validationBase.Add(2*time.Hour), validationBase.Add(time.Hour))
	opts.AcceptFuture = true
	if err := inverted.Validate(opts); !errors.Is(err, ErrExcessiveValidity) {
		t.Errorf("Expected ErrExcessiveValidity for a negative window, got %v", err)
	}
	opts.AcceptFuture = false

	missing := &Claims[NoCustomClaims]{ExpiresAt: NewNumericDate(validationBase.Add(time.Hour))}
	if err := missing.Validate(opts); !errors.Is(err, ErrMissingTimeClaims) {
		t.Errorf("Expected ErrMissingTimeClaims, got %v", err)
	}
}

func TestValidateIssuerPolicy(t *testing.T) {
	claims := &Claims[NoCustomClaims]{Issuer: "auth-core"}

	opts := pinnedOpts()
	opts.AllowedIssuers = []string{"auth-core", "auth-edge"}
	if err := claims.Validate(opts); err != nil {
		t.Errorf("Allowed issuer should pass: %v", err)
	}

	opts.AllowedIssuers = []string{"auth-edge"}
	if err := claims.Validate(opts); !errors.Is(err, ErrIssuerNotAllowed) {
		t.Errorf("Expected ErrIssuerNotAllowed, got %v", err)
	}

	// An empty allow list accepts any issuer.
	if err := claims.Validate(pinnedOpts()); err != nil {
		t.Errorf("No issuer policy should mean no issuer check: %v", err)
	}
}

func TestValidateAudiencePolicy(t *testing.T) {
	claims := &Claims[NoCustomClaims]{Audiences: Audiences{"billing", "reporting"}}

	opts := pinnedOpts()
	opts.AllowedAudiences = []string{"reporting"}
	if err := claims.Validate(opts); err != nil {
		t.Errorf("Overlapping audience should pass: %v", err)
	}

	opts.AllowedAudiences = []string{"payments"}
	if err := claims.Validate(opts); !errors.Is(err, ErrAudienceNotAllowed) {
		t.Errorf("Expected ErrAudienceNotAllowed, got %v", err)
	}

	// A token with no audience fails any audience requirement.
	bare := &Claims[NoCustomClaims]{}
	if err := bare.Validate(opts); !errors.Is(err, ErrAudienceNotAllowed) {
		t.Errorf("Expected ErrAudienceNotAllowed for an audience-less token, got %v", err)
	}
}

func TestValidateSubjectAndNonce(t *testing.T) {
	claims := &Claims[NoCustomClaims]{Subject: "user-42", Nonce: "n-1"}

	opts := pinnedOpts()
	opts.RequiredSubject = "user-42"
	opts.RequiredNonce = "n-1"
	if err := claims.Validate(opts); err != nil {
		t.Errorf("Matching subject and nonce should pass: %v", err)
	}

	opts.RequiredSubject = "user-43"
	if err := claims.Validate(opts); !errors.Is(err, ErrSubjectMismatch) {
		t.Errorf("Expected ErrSubjectMismatch, got %v", err)
	}

	opts.RequiredSubject = "user-42"
	opts.RequiredNonce = "n-2"
	if err := claims.Validate(opts); !errors.Is(err, ErrNonceMismatch) {
		t.Errorf("Expected ErrNonceMismatch, got %v", err)
	}
}

func TestValidateNilOptionsSkipPolicies(t *testing.T) {
	// Nil options still check time claims but no identity policies.
	claims := &Claims[NoCustomClaims]{
		Issuer:    "anyone",
		ExpiresAt: NewNumericDate(time.Now().Add(time.Hour)),
	}
	if err := claims.Validate(nil); err != nil {
		t.Errorf("Nil options should skip identity policies: %v", err)
	}

	expired := &Claims[NoCustomClaims]{
		ExpiresAt: NewNumericDate(time.Now().Add(-DefaultTimeTolerance - time.Minute)),
	}
	if err := expired.Validate(nil); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Nil options must still reject expiry, got %v", err)
	}
}

func TestValidationErrorDetails(t *testing.T) {
	claims := timedClaims(validationBase.Add(-2*time.Hour), validationBase.Add(-time.Hour))
	err := claims.Validate(pinnedOpts())

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %T", err)
	}
	if verr.Field != "exp" {
		t.Errorf("Expected field exp, got %s", verr.Field)
	}
	if !errors.Is(err, ErrTokenExpired) {
		t.Error("ValidationError should unwrap to its sentinel")
	}
	if verr.Error() == "" {
		t.Error("ValidationError message should not be empty")
	}
}
