package jose

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

// 🧪 COMPREHENSIVE TESTS: Compact Serialization Structure and Check Ordering

// rawToken assembles a three-segment token from literal JSON and tag bytes,
// bypassing BuildCompact so hostile shapes can be expressed.
func rawToken(headerJSON, claimsJSON string, tag []byte) string {
	h := base64.RawURLEncoding.EncodeToString([]byte(headerJSON))
	c := base64.RawURLEncoding.EncodeToString([]byte(claimsJSON))
	s := base64.RawURLEncoding.EncodeToString(tag)
	return h + "." + c + "." + s
}

// acceptAll is a verify callback that records whether it ran and approves
// every tag.
func acceptAll(called *bool) VerifyFunc {
	return func(authenticated string, tag []byte) error {
		*called = true
		return nil
	}
}

func TestBuildCompactArguments(t *testing.T) {
	claims := NewClaims(time.Hour)
	sign := func(string) ([]byte, error) { return []byte("tag"), nil }

	if _, err := BuildCompact(&Header{Algorithm: HS256}, claims, nil); !errors.Is(err, ErrInvalidSigningMethod) {
		t.Errorf("Expected ErrInvalidSigningMethod for nil sign callback, got %v", err)
	}
	if _, err := BuildCompact[NoCustomClaims](nil, claims, sign); !errors.Is(err, ErrSerialization) {
		t.Errorf("Expected ErrSerialization for nil header, got %v", err)
	}
	if _, err := BuildCompact(&Header{}, claims, sign); !errors.Is(err, ErrSerialization) {
		t.Errorf("Expected ErrSerialization for empty algorithm, got %v", err)
	}
	if _, err := BuildCompact[NoCustomClaims](&Header{Algorithm: HS256}, nil, sign); !errors.Is(err, ErrSerialization) {
		t.Errorf("Expected ErrSerialization for nil claims, got %v", err)
	}
}

func TestBuildCompactTokenShape(t *testing.T) {
	var signRegion string
	token, err := BuildCompact(&Header{Algorithm: HS256}, NewClaims(time.Hour), func(authenticated string) ([]byte, error) {
		signRegion = authenticated
		return []byte("fixed-tag-bytes"), nil
	})
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(parts))
	}
	for i, part := range parts {
		if strings.ContainsAny(part, "=+/") {
			t.Errorf("Segment %d is not unpadded base64url: %q", i, part)
		}
	}

	// The sign callback saw exactly the first two segments of the output.
	if signRegion != parts[0]+"."+parts[1] {
		t.Errorf("Sign region %q does not match serialized prefix %q", signRegion, parts[0]+"."+parts[1])
	}

	tag, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("Tag segment does not decode: %v", err)
	}
	if !bytes.Equal(tag, []byte("fixed-tag-bytes")) {
		t.Errorf("Tag segment decoded to %q", tag)
	}
}

func TestVerifyCompactSegmentCount(t *testing.T) {
	var called bool
	verify := acceptAll(&called)

	tests := []struct {
		name  string
		token string
	}{
		{"Empty string", ""},
		{"No dots", "eyJhbGciOiJIUzI1NiJ9"},
		{"One dot", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0"},
		{"Three dots", "a.b.c.d"},
		{"Trailing extra segment", rawToken(`{"alg":"HS256"}`, `{}`, []byte("t")) + ".extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			_, err := VerifyCompact[NoCustomClaims](tt.token, HS256, verify, nil)
			if !errors.Is(err, ErrCompactEncoding) {
				t.Errorf("Expected ErrCompactEncoding, got %v", err)
			}
			if called {
				t.Error("Verify callback must not run for malformed tokens")
			}
		})
	}
}

func TestVerifyCompactBase64Strictness(t *testing.T) {
	key := newTestHMACKey(t)
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	parts := strings.Split(token, ".")

	var called bool
	verify := acceptAll(&called)

	tests := []struct {
		name  string
		token string
	}{
		{"Padded header", parts[0] + "==." + parts[1] + "." + parts[2]},
		{"Header with CRLF", parts[0][:4] + "\r\n" + parts[0][4:] + "." + parts[1] + "." + parts[2]},
		{"Padded tag", token + "="},
		{"Tag with LF", parts[0] + "." + parts[1] + "." + parts[2][:4] + "\n" + parts[2][4:]},
		{"Standard alphabet tag", parts[0] + "." + parts[1] + "." + parts[2] + "+/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			_, err := VerifyCompact[apiClaims](tt.token, HS256, verify, nil)
			if !errors.Is(err, ErrInvalidBase64) {
				t.Errorf("Expected ErrInvalidBase64, got %v", err)
			}
			if called {
				t.Error("Verify callback must not run when a segment fails base64 checks")
			}
		})
	}
}

func TestVerifyCompactHeaderCeiling(t *testing.T) {
	// A structurally plausible token whose header segment is one character
	// over the ceiling. The size check fires before any decoding.
	huge := strings.Repeat("A", MaxHeaderLength+1)
	token := huge + "." + base64.RawURLEncoding.EncodeToString([]byte(`{}`)) + ".dGFn"

	var called bool
	_, err := VerifyCompact[NoCustomClaims](token, HS256, acceptAll(&called), nil)
	if !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("Expected ErrHeaderTooLarge, got %v", err)
	}
	if called {
		t.Error("Verify callback must not run for an oversized header")
	}

	// At exactly the ceiling the size check passes and decoding proceeds.
	exact := strings.Repeat("A", MaxHeaderLength)
	_, err = VerifyCompact[NoCustomClaims](exact+"."+base64.RawURLEncoding.EncodeToString([]byte(`{}`))+".dGFn", HS256, acceptAll(&called), nil)
	if errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("Header at the ceiling should pass the size check, got %v", err)
	}
}

func TestVerifyCompactAlgorithmBinding(t *testing.T) {
	key := newTestHMACKey(t)
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	var called bool
	_, err = VerifyCompact[apiClaims](token, HS384, acceptAll(&called), nil)
	if !errors.Is(err, ErrAlgorithmMismatch) {
		t.Errorf("Expected ErrAlgorithmMismatch, got %v", err)
	}
	if called {
		t.Error("Verify callback must not run when the algorithm does not match")
	}

	// Matching is exact: no case folding.
	lower := rawToken(`{"alg":"hs256"}`, `{}`, []byte("t"))
	called = false
	_, err = VerifyCompact[NoCustomClaims](lower, HS256, acceptAll(&called), nil)
	if !errors.Is(err, ErrAlgorithmMismatch) {
		t.Errorf("Expected ErrAlgorithmMismatch for case difference, got %v", err)
	}
	if called {
		t.Error("Verify callback must not run for a case-folded algorithm")
	}
}

func TestVerifyCompactKeyIDBeforeCrypto(t *testing.T) {
	var called bool
	verify := acceptAll(&called)
	opts := &VerificationOptions{RequiredKeyID: "primary"}

	noKid := rawToken(`{"alg":"HS256"}`, `{}`, []byte("t"))
	if _, err := VerifyCompact[NoCustomClaims](noKid, HS256, verify, opts); !errors.Is(err, ErrMissingKeyID) {
		t.Errorf("Expected ErrMissingKeyID, got %v", err)
	}
	wrongKid := rawToken(`{"alg":"HS256","kid":"secondary"}`, `{}`, []byte("t"))
	if _, err := VerifyCompact[NoCustomClaims](wrongKid, HS256, verify, opts); !errors.Is(err, ErrKeyIDMismatch) {
		t.Errorf("Expected ErrKeyIDMismatch, got %v", err)
	}
	if called {
		t.Error("Verify callback must not run before key ID policy passes")
	}
}

func TestVerifyCompactAuthenticatedRegion(t *testing.T) {
	key := newTestHMACKey(t)
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	var region string
	var tag []byte
	_, err = VerifyCompact[apiClaims](token, HS256, func(authenticated string, t []byte) error {
		region = authenticated
		tag = t
		return key.VerifyTag(authenticated, t)
	}, nil)
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}

	lastDot := strings.LastIndexByte(token, '.')
	if region != token[:lastDot] {
		t.Errorf("Authenticated region %q is not the token prefix %q", region, token[:lastDot])
	}
	wireTag, err := base64.RawURLEncoding.DecodeString(token[lastDot+1:])
	if err != nil {
		t.Fatalf("Tag segment does not decode: %v", err)
	}
	if !bytes.Equal(tag, wireTag) {
		t.Error("Verify callback received a tag that differs from the wire tag")
	}
}

func TestVerifyCompactRegionNotReserialized(t *testing.T) {
	// A token whose JSON segments are deliberately non-canonical: reordered
	// keys and embedded whitespace that no marshaller here would produce.
	// The tag covers those literal bytes, so verification only succeeds if
	// the region is sliced from the input rather than rebuilt from the
	// parsed structures.
	key := newTestHMACKey(t)
	headerJSON := `{ "typ" : "JWT" , "alg" : "HS256" }`
	claimsJSON := `{ "sub" : "user-42" , "iss" : "auth-core" }`

	encHeader := base64.RawURLEncoding.EncodeToString([]byte(headerJSON))
	encClaims := base64.RawURLEncoding.EncodeToString([]byte(claimsJSON))
	region := encHeader + "." + encClaims
	tag, err := key.Authenticate(region)
	if err != nil {
		t.Fatalf("Failed to sign region: %v", err)
	}
	token := region + "." + base64.RawURLEncoding.EncodeToString(tag)

	claims, err := Verify[NoCustomClaims](key, token, nil)
	if err != nil {
		t.Fatalf("Non-canonical token should verify against its own bytes: %v", err)
	}
	if claims.Subject != "user-42" || claims.Issuer != "auth-core" {
		t.Errorf("Claims did not survive the round trip: %+v", claims)
	}

	// The same structures serialized by this package produce different
	// bytes, so a verifier that re-encoded would have seen a different
	// region.
	reencoded, err := json.Marshal(&Header{Algorithm: HS256, SignatureType: strptr("JWT")})
	if err != nil {
		t.Fatalf("Failed to marshal header: %v", err)
	}
	if string(reencoded) == headerJSON {
		t.Fatal("Test header is canonical; pick a shape the marshaller cannot emit")
	}
}

func TestVerifyCompactErrorPropagation(t *testing.T) {
	key := newTestHMACKey(t)
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	errKeyUnavailable := errors.New("key store unavailable")
	_, err = VerifyCompact[apiClaims](token, HS256, func(string, []byte) error {
		return errKeyUnavailable
	}, nil)
	if err != errKeyUnavailable {
		t.Errorf("Verify callback error must propagate unchanged, got %v", err)
	}
}

func TestVerifyCompactClaimsDecodedAfterVerification(t *testing.T) {
	// The claims segment holds bytes that are not JSON. If verification
	// fails, its error surfaces; the claims decoder never sees the garbage.
	garbage := rawToken(`{"alg":"HS256"}`, `this is not json`, []byte("t"))

	_, err := VerifyCompact[NoCustomClaims](garbage, HS256, func(string, []byte) error {
		return ErrVerificationFailed
	}, nil)
	if !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("Expected the verification error, got %v", err)
	}

	// Only once the tag is accepted does the claims decode run and fail.
	var called bool
	_, err = VerifyCompact[NoCustomClaims](garbage, HS256, acceptAll(&called), nil)
	if !errors.Is(err, ErrSerialization) {
		t.Errorf("Expected ErrSerialization, got %v", err)
	}
	if !called {
		t.Error("Verify callback should have run before the claims decode")
	}
}

func TestVerifyCompactTamperDetection(t *testing.T) {
	key := newTestHMACKey(t)
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	parts := strings.Split(token, ".")

	flip := func(s string, i int) string {
		replacement := byte('A')
		if s[i] == 'A' {
			replacement = 'B'
		}
		return s[:i] + string(replacement) + s[i+1:]
	}

	tests := []struct {
		name  string
		token string
	}{
		{"Claims bit flip", parts[0] + "." + flip(parts[1], len(parts[1])/2) + "." + parts[2]},
		{"Tag bit flip", parts[0] + "." + parts[1] + "." + flip(parts[2], len(parts[2])/2)},
		{"Tag truncated", parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-8]},
		{"Claims swapped in", parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"iss":"attacker"}`)) + "." + parts[2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify[apiClaims](key, tt.token, nil); !errors.Is(err, ErrVerificationFailed) {
				t.Errorf("Expected ErrVerificationFailed, got %v", err)
			}
		})
	}
}

func TestVerifyCompactMaxTokenLength(t *testing.T) {
	key := newTestHMACKey(t)
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	var called bool
	_, err = VerifyCompact[apiClaims](token, HS256, acceptAll(&called), &VerificationOptions{MaxTokenLength: 10})
	if !errors.Is(err, ErrTokenTooLarge) {
		t.Errorf("Expected ErrTokenTooLarge, got %v", err)
	}
	if called {
		t.Error("Verify callback must not run for an oversized token")
	}

	// A generous cap leaves the token alone.
	if _, err := Verify[apiClaims](key, token, &VerificationOptions{MaxTokenLength: len(token)}); err != nil {
		t.Errorf("Token at the cap should verify: %v", err)
	}
}

func TestVerifyCompactNilCallback(t *testing.T) {
	if _, err := VerifyCompact[NoCustomClaims]("a.b.c", HS256, nil, nil); !errors.Is(err, ErrInvalidSigningMethod) {
		t.Errorf("Expected ErrInvalidSigningMethod, got %v", err)
	}
}

func TestVerifyCompactHeaderValidation(t *testing.T) {
	var called bool
	verify := acceptAll(&called)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"Empty segments", "..", ErrSerialization},
		{"Header not JSON", rawToken(`alg=HS256`, `{}`, []byte("t")), ErrSerialization},
		{"Header missing alg", rawToken(`{"typ":"JWT"}`, `{}`, []byte("t")), ErrSerialization},
		{"Header undecodable", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{}`)) + ".dGFn", ErrInvalidBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			_, err := VerifyCompact[NoCustomClaims](tt.token, HS256, verify, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if called {
				t.Error("Verify callback must not run for a rejected header")
			}
		})
	}
}

func TestDecodeMetadataWithoutVerification(t *testing.T) {
	key := newTestHMACKey(t).WithKeyID("unverified")
	token, err := Sign(key, newTestClaims())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	// Replace the tag with garbage; metadata decoding must not care.
	lastDot := strings.LastIndexByte(token, '.')
	forged := token[:lastDot+1] + "AAAA"

	meta, err := DecodeMetadata(forged)
	if err != nil {
		t.Fatalf("Failed to decode metadata from unverified token: %v", err)
	}
	if kid, ok := meta.KeyID(); !ok || kid != "unverified" {
		t.Errorf("Expected kid to decode, got %q (present=%v)", kid, ok)
	}

	// Only the header segment has to exist: the claims and tag segments can
	// be missing entirely.
	headerOnly := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"ES256","kid":"p256-key"}`))
	meta, err = DecodeMetadata(headerOnly)
	if err != nil {
		t.Fatalf("Failed to decode metadata from a lone header segment: %v", err)
	}
	if meta.Algorithm() != ES256 {
		t.Errorf("Expected ES256, got %q", meta.Algorithm())
	}
	if kid, ok := meta.KeyID(); !ok || kid != "p256-key" {
		t.Errorf("Expected kid to decode, got %q (present=%v)", kid, ok)
	}

	// A malformed header segment still fails.
	if _, err := DecodeMetadata("!!!.e30.dGFn"); !errors.Is(err, ErrInvalidBase64) {
		t.Errorf("Expected ErrInvalidBase64, got %v", err)
	}
	huge := strings.Repeat("A", MaxHeaderLength+1) + ".e30.dGFn"
	if _, err := DecodeMetadata(huge); !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("Expected ErrHeaderTooLarge, got %v", err)
	}
}

func TestDecodeMetadataAbsentVersusEmpty(t *testing.T) {
	withEmpty := rawToken(`{"alg":"HS256","kid":""}`, `{}`, []byte("t"))
	meta, err := DecodeMetadata(withEmpty)
	if err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}
	if kid, ok := meta.KeyID(); !ok || kid != "" {
		t.Errorf("Empty kid should be present and empty, got %q (present=%v)", kid, ok)
	}

	without := rawToken(`{"alg":"HS256"}`, `{}`, []byte("t"))
	meta, err = DecodeMetadata(without)
	if err != nil {
		t.Fatalf("Failed to decode metadata: %v", err)
	}
	if _, ok := meta.KeyID(); ok {
		t.Error("Absent kid should not read as present")
	}
}
