package jose

// Algorithm names as they appear in the "alg" header field. Matching is
// exact: verifiers never fold case or accept aliases.
const (
	HS256 = "HS256"
	HS384 = "HS384"
	HS512 = "HS512"
	EdDSA = "EdDSA"
	ES256 = "ES256"
	RS256 = "RS256"
)

// TokenSigner is the key side of token building. Sign derives the header
// from it, then hands the serialized authenticated region to Authenticate.
type TokenSigner interface {
	// Alg is the name stamped into the header and bound at verification.
	Alg() string

	// KeyID is the "kid" hint for the header, empty for none.
	KeyID() string

	// Metadata returns extra header fields to stamp, nil for none.
	Metadata() *KeyMetadata

	// Authenticate produces the tag over the authenticated region.
	Authenticate(authenticated string) ([]byte, error)
}

// TokenVerifier is the key side of token verification.
type TokenVerifier interface {
	// Alg is the exact algorithm name this key accepts.
	Alg() string

	// VerifyTag reports whether tag authenticates the region. It returns
	// ErrVerificationFailed for a mismatch.
	VerifyTag(authenticated string, tag []byte) error
}
