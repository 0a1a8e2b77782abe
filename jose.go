// Package jose implements signed tokens in the JOSE compact serialization:
// an unpadded base64url header, claims object and authentication tag joined
// by dots. The tag always covers the first two segments exactly as they
// appear on the wire, so verification never re-encodes anything.
//
// The package is layered. BuildCompact, VerifyCompact and DecodeMetadata
// form a callback-driven core with no opinion about key handling. The key
// types (HMACKey, Ed25519KeyPair, ES256KeyPair, RS256KeyPair and their
// public halves) plug into that core through Sign and Verify. Processor
// adds a managed session-token layer with revocation and rate limiting on
// top.
//
// Verification is deliberately strict: exactly three segments, a bounded
// header, exact algorithm binding before any cryptography, and claims that
// are only decoded after the tag checks out.
package jose

// Sign builds a token for the claim set using the key's algorithm, key ID
// and header metadata.
func Sign[C any](key TokenSigner, claims *Claims[C]) (string, error) {
	header := newHeader(key.Alg(), key.KeyID(), key.Metadata())
	return BuildCompact(header, claims, key.Authenticate)
}

// Verify authenticates a token with the key and returns its validated
// claims. The token's algorithm must match the key's exactly; opts may be
// nil for default validation.
func Verify[C any](key TokenVerifier, token string, opts *VerificationOptions) (*Claims[C], error) {
	return VerifyCompact[C](token, key.Alg(), key.VerifyTag, opts)
}
