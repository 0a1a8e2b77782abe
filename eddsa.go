package jose

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/cybergodev/jose/internal/security"
)

// Ed25519KeyPair signs tokens with EdDSA over Curve25519. The pair also
// verifies, delegating to its public half.
type Ed25519KeyPair struct {
	private  ed25519.PrivateKey
	keyID    string
	metadata *KeyMetadata
}

// Ed25519PublicKey verifies tokens signed by the matching key pair.
type Ed25519PublicKey struct {
	public ed25519.PublicKey
}

// NewEd25519KeyPair generates a fresh key pair.
func NewEd25519KeyPair() (*Ed25519KeyPair, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating Ed25519 key: %v", ErrInvalidKey, err)
	}
	return &Ed25519KeyPair{private: private}, nil
}

// NewEd25519KeyPairFromSeed rebuilds a key pair from a stored 32-byte seed.
func NewEd25519KeyPairFromSeed(seed []byte) (*Ed25519KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: Ed25519 seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	return &Ed25519KeyPair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// NewEd25519PublicKey wraps a raw public key for verification.
func NewEd25519PublicKey(public ed25519.PublicKey) (*Ed25519PublicKey, error) {
	if len(public) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(public))
	}
	return &Ed25519PublicKey{public: public}, nil
}

// WithKeyID stamps a "kid" value into headers this key signs.
func (k *Ed25519KeyPair) WithKeyID(keyID string) *Ed25519KeyPair {
	k.keyID = keyID
	return k
}

// AttachMetadata sets extra header fields stamped by this key.
func (k *Ed25519KeyPair) AttachMetadata(metadata *KeyMetadata) *Ed25519KeyPair {
	k.metadata = metadata
	return k
}

// Alg returns "EdDSA".
func (k *Ed25519KeyPair) Alg() string { return EdDSA }

// KeyID returns the key's "kid" value, empty if none was set.
func (k *Ed25519KeyPair) KeyID() string { return k.keyID }

// Metadata returns the key's header metadata, nil if none was attached.
func (k *Ed25519KeyPair) Metadata() *KeyMetadata { return k.metadata }

// Public returns the verification half of the pair.
func (k *Ed25519KeyPair) Public() *Ed25519PublicKey {
	return &Ed25519PublicKey{public: k.private.Public().(ed25519.PublicKey)}
}

// Seed returns the pair's 32-byte seed for storage.
func (k *Ed25519KeyPair) Seed() []byte {
	return k.private.Seed()
}

// Authenticate signs the authenticated region.
func (k *Ed25519KeyPair) Authenticate(authenticated string) ([]byte, error) {
	return ed25519.Sign(k.private, []byte(authenticated)), nil
}

// VerifyTag checks the tag with the pair's public half.
func (k *Ed25519KeyPair) VerifyTag(authenticated string, tag []byte) error {
	return k.Public().VerifyTag(authenticated, tag)
}

// Alg returns "EdDSA".
func (p *Ed25519PublicKey) Alg() string { return EdDSA }

// Bytes returns the raw public key.
func (p *Ed25519PublicKey) Bytes() ed25519.PublicKey { return p.public }

// VerifyTag reports whether tag is a valid signature over the region.
func (p *Ed25519PublicKey) VerifyTag(authenticated string, tag []byte) error {
	if !ed25519.Verify(p.public, []byte(authenticated), tag) {
		security.RandomDelay()
		return ErrVerificationFailed
	}
	return nil
}
