package jose

// Header is the token's algorithm-and-key descriptor, the first segment of
// the compact serialization. Algorithm is the only mandatory field; every
// other field is an explicit optional so that an absent field and a field
// present with an empty value survive a JSON round trip unchanged.
//
// A Header is constructed once, either by the signing key at build time or
// by the parser at verification time, and is never mutated afterwards.
type Header struct {
	// Algorithm identifies the authentication scheme ("alg"). It must match
	// the verifier's expected scheme exactly: no case folding, no aliasing.
	Algorithm string `json:"alg"`

	// SignatureType is the "typ" field, conventionally "JWT" for signed tokens.
	SignatureType *string `json:"typ,omitempty"`

	// ContentType is the "cty" field describing the payload media type.
	ContentType *string `json:"cty,omitempty"`

	// KeySetURL is the "jku" field, a URL for a JWK set.
	KeySetURL *string `json:"jku,omitempty"`

	// PublicKey is the "jwk" field, an embedded public key.
	PublicKey *string `json:"jwk,omitempty"`

	// KeyID is the "kid" field naming the key that produced the tag.
	KeyID *string `json:"kid,omitempty"`

	// CertificateURL is the "x5u" field.
	CertificateURL *string `json:"x5u,omitempty"`

	// CertificateChain is the "x5c" field.
	CertificateChain *string `json:"x5c,omitempty"`

	// CertificateSHA1Thumbprint is the "x5t" field.
	CertificateSHA1Thumbprint *string `json:"x5t,omitempty"`

	// CertificateSHA256Thumbprint is the "x5t#S256" field.
	CertificateSHA256Thumbprint *string `json:"x5t#S256,omitempty"`

	// Critical is the "crit" field listing extensions that must be understood.
	Critical *string `json:"crit,omitempty"`
}

// KeyMetadata carries the optional key-selection hints a key can attach to
// every header it signs. Empty fields are left out of the header entirely.
type KeyMetadata struct {
	KeySetURL                   string
	PublicKey                   string
	CertificateURL              string
	CertificateChain            string
	CertificateSHA1Thumbprint   string
	CertificateSHA256Thumbprint string
	ContentType                 string
	Critical                    string
}

// newHeader assembles the header a signing key stamps onto tokens it builds.
// The signature type is always "JWT"; keyID and metadata contribute only
// their non-empty fields.
func newHeader(alg, keyID string, metadata *KeyMetadata) *Header {
	h := &Header{
		Algorithm:     alg,
		SignatureType: strptr("JWT"),
	}
	if keyID != "" {
		h.KeyID = strptr(keyID)
	}
	if metadata == nil {
		return h
	}
	if metadata.KeySetURL != "" {
		h.KeySetURL = strptr(metadata.KeySetURL)
	}
	if metadata.PublicKey != "" {
		h.PublicKey = strptr(metadata.PublicKey)
	}
	if metadata.CertificateURL != "" {
		h.CertificateURL = strptr(metadata.CertificateURL)
	}
	if metadata.CertificateChain != "" {
		h.CertificateChain = strptr(metadata.CertificateChain)
	}
	if metadata.CertificateSHA1Thumbprint != "" {
		h.CertificateSHA1Thumbprint = strptr(metadata.CertificateSHA1Thumbprint)
	}
	if metadata.CertificateSHA256Thumbprint != "" {
		h.CertificateSHA256Thumbprint = strptr(metadata.CertificateSHA256Thumbprint)
	}
	if metadata.ContentType != "" {
		h.ContentType = strptr(metadata.ContentType)
	}
	if metadata.Critical != "" {
		h.Critical = strptr(metadata.Critical)
	}
	return h
}

func strptr(s string) *string {
	return &s
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
