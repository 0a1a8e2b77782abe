package jose

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MaxHeaderLength caps the encoded header segment, measured in characters
// before any decoding. Real headers are tiny; anything near this limit is
// hostile input and is rejected before the decoder touches it.
const MaxHeaderLength = 4096

// SignFunc produces the authentication tag over the exact byte region it is
// handed. BuildCompact calls it once per token.
type SignFunc func(authenticated string) ([]byte, error)

// VerifyFunc checks tag against the exact byte region it is handed and
// returns nil only for an authentic pair. Its error is propagated to the
// caller unchanged.
type VerifyFunc func(authenticated string, tag []byte) error

// BuildCompact serializes header and claims into the three-segment compact
// form, calling sign over the first two segments exactly as they appear in
// the output. The tag therefore covers the serialized bytes, not a
// re-encoding of them.
func BuildCompact[C any](header *Header, claims *Claims[C], sign SignFunc) (string, error) {
	if sign == nil {
		return "", fmt.Errorf("%w: nil sign callback", ErrInvalidSigningMethod)
	}
	if header == nil || header.Algorithm == "" {
		return "", fmt.Errorf("%w: header must name an algorithm", ErrSerialization)
	}
	if claims == nil {
		return "", fmt.Errorf("%w: nil claims", ErrSerialization)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("%w: encoding header: %v", ErrSerialization, err)
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("%w: encoding claims: %v", ErrSerialization, err)
	}

	encHeader := base64.RawURLEncoding.EncodeToString(headerJSON)
	encClaims := base64.RawURLEncoding.EncodeToString(claimsJSON)

	var region strings.Builder
	region.Grow(len(encHeader) + 1 + len(encClaims))
	region.WriteString(encHeader)
	region.WriteByte('.')
	region.WriteString(encClaims)
	authenticated := region.String()

	tag, err := sign(authenticated)
	if err != nil {
		return "", err
	}
	encTag := base64.RawURLEncoding.EncodeToString(tag)

	var token strings.Builder
	token.Grow(len(authenticated) + 1 + len(encTag))
	token.WriteString(authenticated)
	token.WriteByte('.')
	token.WriteString(encTag)
	return token.String(), nil
}

// VerifyCompact parses and authenticates a compact token, then decodes and
// validates its claims. Checks run in a strict order so that cheap
// structural rejections happen before any cryptography and claims are only
// decoded from authenticated bytes:
//
//	segment count, header size, header decode, algorithm binding, key ID
//	policy, tag decode, tag verification, claims decode, claims validation.
//
// The verify callback receives the token's first two segments exactly as
// they appear in the input. Its error is returned unchanged.
func VerifyCompact[C any](token string, alg string, verify VerifyFunc, opts *VerificationOptions) (*Claims[C], error) {
	if verify == nil {
		return nil, fmt.Errorf("%w: nil verify callback", ErrInvalidSigningMethod)
	}
	if opts != nil && opts.MaxTokenLength > 0 && len(token) > opts.MaxTokenLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrTokenTooLarge, len(token), opts.MaxTokenLength)
	}

	encHeader, encClaims, encTag, err := split3(token)
	if err != nil {
		return nil, err
	}
	if len(encHeader) > MaxHeaderLength {
		return nil, fmt.Errorf("%w: %d characters", ErrHeaderTooLarge, len(encHeader))
	}

	header, err := decodeHeader(encHeader)
	if err != nil {
		return nil, err
	}
	if header.Algorithm != alg {
		return nil, fmt.Errorf("%w: token says %q, verifier expects %q", ErrAlgorithmMismatch, header.Algorithm, alg)
	}
	if opts != nil && opts.RequiredKeyID != "" {
		kid, ok := deref(header.KeyID)
		if !ok {
			return nil, fmt.Errorf("%w: policy requires key ID %q", ErrMissingKeyID, opts.RequiredKeyID)
		}
		if kid != opts.RequiredKeyID {
			return nil, fmt.Errorf("%w: token signed with key %q", ErrKeyIDMismatch, kid)
		}
	}

	tag, err := decodeSegment(encTag)
	if err != nil {
		return nil, err
	}
	authenticated := token[:len(encHeader)+1+len(encClaims)]
	if err := verify(authenticated, tag); err != nil {
		return nil, err
	}

	claimsJSON, err := decodeSegment(encClaims)
	if err != nil {
		return nil, err
	}
	claims := new(Claims[C])
	if err := json.Unmarshal(claimsJSON, claims); err != nil {
		return nil, fmt.Errorf("%w: decoding claims: %v", ErrSerialization, err)
	}
	if err := claims.Validate(opts); err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenMetadata exposes the parsed header of a token whose tag has NOT been
// checked. Nothing read through it is trustworthy; it exists so a verifier
// can pick the right key before calling VerifyCompact.
type TokenMetadata struct {
	header Header
}

// DecodeMetadata parses a token's header without verifying anything about
// the token. Only the header segment has to exist: the tag and claims
// segments are never read, so a token that would fail verification
// structurally can still yield its metadata. The header-size ceiling still
// applies.
func DecodeMetadata(token string) (*TokenMetadata, error) {
	encHeader := token
	if dot := strings.IndexByte(token, '.'); dot >= 0 {
		encHeader = token[:dot]
	}
	if len(encHeader) > MaxHeaderLength {
		return nil, fmt.Errorf("%w: %d characters", ErrHeaderTooLarge, len(encHeader))
	}
	header, err := decodeHeader(encHeader)
	if err != nil {
		return nil, err
	}
	return &TokenMetadata{header: *header}, nil
}

// Algorithm returns the header's "alg" field. It is always present in a
// successfully decoded header.
func (m *TokenMetadata) Algorithm() string { return m.header.Algorithm }

// SignatureType returns the "typ" field and whether it was present.
func (m *TokenMetadata) SignatureType() (string, bool) { return deref(m.header.SignatureType) }

// ContentType returns the "cty" field and whether it was present.
func (m *TokenMetadata) ContentType() (string, bool) { return deref(m.header.ContentType) }

// KeySetURL returns the "jku" field and whether it was present.
func (m *TokenMetadata) KeySetURL() (string, bool) { return deref(m.header.KeySetURL) }

// PublicKey returns the "jwk" field and whether it was present.
func (m *TokenMetadata) PublicKey() (string, bool) { return deref(m.header.PublicKey) }

// KeyID returns the "kid" field and whether it was present.
func (m *TokenMetadata) KeyID() (string, bool) { return deref(m.header.KeyID) }

// CertificateURL returns the "x5u" field and whether it was present.
func (m *TokenMetadata) CertificateURL() (string, bool) { return deref(m.header.CertificateURL) }

// CertificateChain returns the "x5c" field and whether it was present.
func (m *TokenMetadata) CertificateChain() (string, bool) { return deref(m.header.CertificateChain) }

// CertificateSHA1Thumbprint returns the "x5t" field and whether it was
// present.
func (m *TokenMetadata) CertificateSHA1Thumbprint() (string, bool) {
	return deref(m.header.CertificateSHA1Thumbprint)
}

// CertificateSHA256Thumbprint returns the "x5t#S256" field and whether it
// was present.
func (m *TokenMetadata) CertificateSHA256Thumbprint() (string, bool) {
	return deref(m.header.CertificateSHA256Thumbprint)
}

// Critical returns the "crit" field and whether it was present.
func (m *TokenMetadata) Critical() (string, bool) { return deref(m.header.Critical) }

var errSegmentCount = fmt.Errorf("%w: expected 3 dot-separated segments", ErrCompactEncoding)

func split3(token string) (encHeader, encClaims, encTag string, err error) {
	dot1 := strings.IndexByte(token, '.')
	if dot1 < 0 {
		return "", "", "", errSegmentCount
	}
	rest := token[dot1+1:]
	dot2 := strings.IndexByte(rest, '.')
	if dot2 < 0 {
		return "", "", "", errSegmentCount
	}
	encTag = rest[dot2+1:]
	if strings.IndexByte(encTag, '.') >= 0 {
		return "", "", "", errSegmentCount
	}
	return token[:dot1], rest[:dot2], encTag, nil
}

func decodeHeader(encHeader string) (*Header, error) {
	raw, err := decodeSegment(encHeader)
	if err != nil {
		return nil, err
	}
	var header Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("%w: decoding header: %v", ErrSerialization, err)
	}
	if header.Algorithm == "" {
		return nil, fmt.Errorf("%w: header missing algorithm", ErrSerialization)
	}
	return &header, nil
}

// decodeSegment enforces the strict unpadded base64url alphabet before
// decoding. The stdlib decoder silently skips CR and LF, which would let
// two visually different tokens decode identically, so the charset check
// comes first.
func decodeSegment(segment string) ([]byte, error) {
	if !validBase64URL(segment) {
		return nil, fmt.Errorf("%w: segment contains bytes outside the unpadded base64url alphabet", ErrInvalidBase64)
	}
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return raw, nil
}

func validBase64URL(segment string) bool {
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
