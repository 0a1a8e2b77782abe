package jose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/cybergodev/jose/internal/security"
)

// es256TagLength is the fixed tag size: the 32-byte R and S scalars
// concatenated, each left-padded to the full width.
const es256TagLength = 64

// ES256KeyPair signs tokens with ECDSA over P-256 and SHA-256. Tags use the
// fixed-width R||S form, never ASN.1.
type ES256KeyPair struct {
	private  *ecdsa.PrivateKey
	keyID    string
	metadata *KeyMetadata
}

// ES256PublicKey verifies tokens signed by the matching key pair.
type ES256PublicKey struct {
	public *ecdsa.PublicKey
}

// NewES256KeyPair generates a fresh P-256 key pair.
func NewES256KeyPair() (*ES256KeyPair, error) {
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating P-256 key: %v", ErrInvalidKey, err)
	}
	return &ES256KeyPair{private: private}, nil
}

// NewES256KeyPairFromKey wraps an existing private key, which must be on
// P-256.
func NewES256KeyPairFromKey(private *ecdsa.PrivateKey) (*ES256KeyPair, error) {
	if private == nil || private.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: ES256 requires a P-256 private key", ErrInvalidKey)
	}
	return &ES256KeyPair{private: private}, nil
}

// NewES256PublicKey wraps a raw public key, which must be on P-256.
func NewES256PublicKey(public *ecdsa.PublicKey) (*ES256PublicKey, error) {
	if public == nil || public.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: ES256 requires a P-256 public key", ErrInvalidKey)
	}
	return &ES256PublicKey{public: public}, nil
}

// WithKeyID stamps a "kid" value into headers this key signs.
func (k *ES256KeyPair) WithKeyID(keyID string) *ES256KeyPair {
	k.keyID = keyID
	return k
}

// AttachMetadata sets extra header fields stamped by this key.
func (k *ES256KeyPair) AttachMetadata(metadata *KeyMetadata) *ES256KeyPair {
	k.metadata = metadata
	return k
}

// Alg returns "ES256".
func (k *ES256KeyPair) Alg() string { return ES256 }

// KeyID returns the key's "kid" value, empty if none was set.
func (k *ES256KeyPair) KeyID() string { return k.keyID }

// Metadata returns the key's header metadata, nil if none was attached.
func (k *ES256KeyPair) Metadata() *KeyMetadata { return k.metadata }

// Public returns the verification half of the pair.
func (k *ES256KeyPair) Public() *ES256PublicKey {
	return &ES256PublicKey{public: &k.private.PublicKey}
}

// Authenticate signs the SHA-256 digest of the region and packs R and S
// into the 64-byte fixed-width form.
func (k *ES256KeyPair) Authenticate(authenticated string) ([]byte, error) {
	digest := sha256.Sum256([]byte(authenticated))
	r, s, err := ecdsa.Sign(rand.Reader, k.private, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	tag := make([]byte, es256TagLength)
	r.FillBytes(tag[:es256TagLength/2])
	s.FillBytes(tag[es256TagLength/2:])
	return tag, nil
}

// VerifyTag checks the tag with the pair's public half.
func (k *ES256KeyPair) VerifyTag(authenticated string, tag []byte) error {
	return k.Public().VerifyTag(authenticated, tag)
}

// Alg returns "ES256".
func (p *ES256PublicKey) Alg() string { return ES256 }

// Key returns the wrapped public key.
func (p *ES256PublicKey) Key() *ecdsa.PublicKey { return p.public }

// VerifyTag reports whether tag is a valid fixed-width signature over the
// region. Any tag that is not exactly 64 bytes fails outright.
func (p *ES256PublicKey) VerifyTag(authenticated string, tag []byte) error {
	if len(tag) != es256TagLength {
		security.RandomDelay()
		return ErrVerificationFailed
	}
	digest := sha256.Sum256([]byte(authenticated))
	r := new(big.Int).SetBytes(tag[:es256TagLength/2])
	s := new(big.Int).SetBytes(tag[es256TagLength/2:])
	if !ecdsa.Verify(p.public, digest[:], r, s) {
		security.RandomDelay()
		return ErrVerificationFailed
	}
	return nil
}
