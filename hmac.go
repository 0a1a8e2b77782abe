package jose

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	_ "crypto/sha256"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/cybergodev/jose/internal/security"
)

// minHMACKeyLength is the shortest key any HMAC variant accepts.
const minHMACKeyLength = 32

// PBKDF2 parameters for password-derived keys.
const (
	pbkdf2Iterations = 10000
	pbkdf2KeyLength  = 64
)

// HMACKey authenticates tokens with HMAC over SHA-2. The same key signs and
// verifies, so it satisfies both TokenSigner and TokenVerifier. Key material
// lives in a zeroizable buffer; call Destroy when the key is retired.
type HMACKey struct {
	alg      string
	hash     crypto.Hash
	key      *security.SecureBytes
	keyID    string
	metadata *KeyMetadata
}

// NewHS256Key wraps key material for HS256. Keys shorter than 32 bytes or
// with obviously low entropy are rejected.
func NewHS256Key(key []byte) (*HMACKey, error) {
	return newHMACKey(HS256, crypto.SHA256, key)
}

// NewHS384Key wraps key material for HS384.
func NewHS384Key(key []byte) (*HMACKey, error) {
	return newHMACKey(HS384, crypto.SHA384, key)
}

// NewHS512Key wraps key material for HS512.
func NewHS512Key(key []byte) (*HMACKey, error) {
	return newHMACKey(HS512, crypto.SHA512, key)
}

// GenerateHMACKey creates a fresh random key for the given HMAC algorithm,
// sized to the hash output.
func GenerateHMACKey(alg string) (*HMACKey, error) {
	hash, err := hmacHash(alg)
	if err != nil {
		return nil, err
	}
	key := make([]byte, hash.Size())
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generating key material: %v", ErrInvalidKey, err)
	}
	defer security.ZeroBytes(key)
	return newHMACKey(alg, hash, key)
}

// NewHMACKeyFromPassword derives key material from a password and salt with
// PBKDF2 over SHA-512, then wraps it for the given HMAC algorithm. The salt
// must be unique per deployment; the password itself never becomes the key.
func NewHMACKeyFromPassword(alg string, password, salt []byte) (*HMACKey, error) {
	hash, err := hmacHash(alg)
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidKey)
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("%w: salt must be at least 8 bytes", ErrInvalidKey)
	}
	derived := pbkdf2.Key(password, salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	defer security.ZeroBytes(derived)
	return newHMACKey(alg, hash, derived)
}

func hmacHash(alg string) (crypto.Hash, error) {
	switch alg {
	case HS256:
		return crypto.SHA256, nil
	case HS384:
		return crypto.SHA384, nil
	case HS512:
		return crypto.SHA512, nil
	}
	return 0, fmt.Errorf("%w: %q is not an HMAC algorithm", ErrInvalidSigningMethod, alg)
}

func newHMACKey(alg string, hash crypto.Hash, key []byte) (*HMACKey, error) {
	if len(key) < minHMACKeyLength {
		return nil, fmt.Errorf("%w: minimum %d bytes required, got %d", ErrInvalidKey, minHMACKeyLength, len(key))
	}
	if security.IsWeakKey(key) {
		return nil, fmt.Errorf("%w: key must have sufficient entropy", ErrWeakKey)
	}
	if !hash.Available() {
		return nil, fmt.Errorf("%w: hash function %v not available", ErrInvalidSigningMethod, hash)
	}
	return &HMACKey{
		alg:  alg,
		hash: hash,
		key:  security.NewSecureBytesFromSlice(key),
	}, nil
}

// WithKeyID stamps a "kid" value into headers this key signs and lets the
// key satisfy a RequiredKeyID policy on verification.
func (k *HMACKey) WithKeyID(keyID string) *HMACKey {
	k.keyID = keyID
	return k
}

// AttachMetadata sets extra header fields stamped by this key.
func (k *HMACKey) AttachMetadata(metadata *KeyMetadata) *HMACKey {
	k.metadata = metadata
	return k
}

// Alg returns the key's algorithm name.
func (k *HMACKey) Alg() string { return k.alg }

// KeyID returns the key's "kid" value, empty if none was set.
func (k *HMACKey) KeyID() string { return k.keyID }

// Metadata returns the key's header metadata, nil if none was attached.
func (k *HMACKey) Metadata() *KeyMetadata { return k.metadata }

// Authenticate computes the HMAC tag over the authenticated region.
func (k *HMACKey) Authenticate(authenticated string) ([]byte, error) {
	keyBytes := k.key.Bytes()
	if len(keyBytes) == 0 {
		return nil, fmt.Errorf("%w: key has been destroyed", ErrInvalidKey)
	}
	mac := hmac.New(k.hash.New, keyBytes)
	mac.Write([]byte(authenticated))
	return mac.Sum(nil), nil
}

// VerifyTag recomputes the tag and compares in constant time. Failures get
// a small random delay so rejection timing reveals nothing.
func (k *HMACKey) VerifyTag(authenticated string, tag []byte) error {
	expected, err := k.Authenticate(authenticated)
	if err != nil {
		return err
	}
	defer security.ZeroBytes(expected)

	if !hmac.Equal(tag, expected) {
		security.SecureRandomDelay()
		return ErrVerificationFailed
	}
	return nil
}

// Destroy zeroes the key material. The key is unusable afterwards.
func (k *HMACKey) Destroy() {
	k.key.Destroy()
}
