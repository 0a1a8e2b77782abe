package jose

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/cybergodev/jose/internal/security"
)

// minRSABits is the smallest modulus accepted for RS256 keys.
const minRSABits = 2048

// RS256KeyPair signs tokens with RSA PKCS#1 v1.5 over SHA-256.
type RS256KeyPair struct {
	private  *rsa.PrivateKey
	keyID    string
	metadata *KeyMetadata
}

// RS256PublicKey verifies tokens signed by the matching key pair.
type RS256PublicKey struct {
	public *rsa.PublicKey
}

// GenerateRS256KeyPair creates a fresh key pair with the given modulus
// size, 2048 bits at minimum.
func GenerateRS256KeyPair(bits int) (*RS256KeyPair, error) {
	if bits < minRSABits {
		return nil, fmt.Errorf("%w: RSA modulus must be at least %d bits, got %d", ErrInvalidKey, minRSABits, bits)
	}
	private, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: generating RSA key: %v", ErrInvalidKey, err)
	}
	return &RS256KeyPair{private: private}, nil
}

// NewRS256KeyPairFromKey wraps an existing private key.
func NewRS256KeyPairFromKey(private *rsa.PrivateKey) (*RS256KeyPair, error) {
	if private == nil || private.N.BitLen() < minRSABits {
		return nil, fmt.Errorf("%w: RSA modulus must be at least %d bits", ErrInvalidKey, minRSABits)
	}
	return &RS256KeyPair{private: private}, nil
}

// NewRS256PublicKey wraps a raw public key for verification.
func NewRS256PublicKey(public *rsa.PublicKey) (*RS256PublicKey, error) {
	if public == nil || public.N.BitLen() < minRSABits {
		return nil, fmt.Errorf("%w: RSA modulus must be at least %d bits", ErrInvalidKey, minRSABits)
	}
	return &RS256PublicKey{public: public}, nil
}

// WithKeyID stamps a "kid" value into headers this key signs.
func (k *RS256KeyPair) WithKeyID(keyID string) *RS256KeyPair {
	k.keyID = keyID
	return k
}

// AttachMetadata sets extra header fields stamped by this key.
func (k *RS256KeyPair) AttachMetadata(metadata *KeyMetadata) *RS256KeyPair {
	k.metadata = metadata
	return k
}

// Alg returns "RS256".
func (k *RS256KeyPair) Alg() string { return RS256 }

// KeyID returns the key's "kid" value, empty if none was set.
func (k *RS256KeyPair) KeyID() string { return k.keyID }

// Metadata returns the key's header metadata, nil if none was attached.
func (k *RS256KeyPair) Metadata() *KeyMetadata { return k.metadata }

// Public returns the verification half of the pair.
func (k *RS256KeyPair) Public() *RS256PublicKey {
	return &RS256PublicKey{public: &k.private.PublicKey}
}

// Authenticate signs the SHA-256 digest of the region.
func (k *RS256KeyPair) Authenticate(authenticated string) ([]byte, error) {
	digest := sha256.Sum256([]byte(authenticated))
	tag, err := rsa.SignPKCS1v15(rand.Reader, k.private, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return tag, nil
}

// VerifyTag checks the tag with the pair's public half.
func (k *RS256KeyPair) VerifyTag(authenticated string, tag []byte) error {
	return k.Public().VerifyTag(authenticated, tag)
}

// Alg returns "RS256".
func (p *RS256PublicKey) Alg() string { return RS256 }

// Key returns the wrapped public key.
func (p *RS256PublicKey) Key() *rsa.PublicKey { return p.public }

// VerifyTag reports whether tag is a valid signature over the region.
func (p *RS256PublicKey) VerifyTag(authenticated string, tag []byte) error {
	digest := sha256.Sum256([]byte(authenticated))
	if err := rsa.VerifyPKCS1v15(p.public, crypto.SHA256, digest[:], tag); err != nil {
		security.RandomDelay()
		return ErrVerificationFailed
	}
	return nil
}
