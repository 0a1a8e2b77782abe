package jose

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// NoCustomClaims is the payload type for tokens that carry only the
// registered claim set.
type NoCustomClaims struct{}

// Audiences holds the "aud" claim. On the wire a single audience encodes as
// a bare JSON string and multiple audiences as an array; both forms decode
// into the same slice.
type Audiences []string

// MarshalJSON encodes one audience as a string and several as an array.
func (a Audiences) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// UnmarshalJSON accepts either a string or an array of strings.
func (a *Audiences) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(b, &single); err != nil {
			return err
		}
		*a = Audiences{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*a = list
	return nil
}

// Contains reports whether audience is one of the claim's entries.
func (a Audiences) Contains(audience string) bool {
	for _, candidate := range a {
		if candidate == audience {
			return true
		}
	}
	return false
}

// Claims is the token payload: the registered claim set plus an
// application-defined custom section C. On the wire both parts share one
// flat JSON object; there is no nesting under a "custom" key. When a custom
// field reuses a registered name, the registered value wins.
type Claims[C any] struct {
	// Issuer is the "iss" claim.
	Issuer string `json:"iss,omitempty"`

	// Subject is the "sub" claim.
	Subject string `json:"sub,omitempty"`

	// Audiences is the "aud" claim.
	Audiences Audiences `json:"aud,omitempty"`

	// ExpiresAt is the "exp" claim. A nil value means the token never expires.
	ExpiresAt *NumericDate `json:"exp,omitempty"`

	// NotBefore is the "nbf" claim.
	NotBefore *NumericDate `json:"nbf,omitempty"`

	// IssuedAt is the "iat" claim.
	IssuedAt *NumericDate `json:"iat,omitempty"`

	// ID is the "jti" claim, a unique token identifier.
	ID string `json:"jti,omitempty"`

	// Nonce is the "nonce" claim, used to bind a token to a challenge.
	Nonce string `json:"nonce,omitempty"`

	// Custom holds the application's own claims, flattened into the same
	// JSON object as the registered set.
	Custom C `json:"-"`
}

// registeredClaims mirrors the registered fields of Claims for plain
// struct-tag serialization. The generic container cannot declare a local
// shadow type, so the mirror lives at package level.
type registeredClaims struct {
	Issuer    string       `json:"iss,omitempty"`
	Subject   string       `json:"sub,omitempty"`
	Audiences Audiences    `json:"aud,omitempty"`
	ExpiresAt *NumericDate `json:"exp,omitempty"`
	NotBefore *NumericDate `json:"nbf,omitempty"`
	IssuedAt  *NumericDate `json:"iat,omitempty"`
	ID        string       `json:"jti,omitempty"`
	Nonce     string       `json:"nonce,omitempty"`
}

// NewClaims creates a claim set with no custom section. The issued-at and
// not-before claims are stamped with the current time; expiry is set
// validFor from now when validFor is positive.
func NewClaims(validFor time.Duration) *Claims[NoCustomClaims] {
	return NewCustomClaims(NoCustomClaims{}, validFor)
}

// NewCustomClaims creates a claim set around an application payload. The
// issued-at and not-before claims are stamped with the current time; expiry
// is set validFor from now when validFor is positive.
func NewCustomClaims[C any](custom C, validFor time.Duration) *Claims[C] {
	now := NewNumericDate(time.Now())
	claims := &Claims[C]{
		IssuedAt:  now,
		NotBefore: now,
		Custom:    custom,
	}
	if validFor > 0 {
		claims.ExpiresAt = NewNumericDate(now.Add(validFor))
	}
	return claims
}

// WithIssuer sets the "iss" claim.
func (c *Claims[C]) WithIssuer(issuer string) *Claims[C] {
	c.Issuer = issuer
	return c
}

// WithSubject sets the "sub" claim.
func (c *Claims[C]) WithSubject(subject string) *Claims[C] {
	c.Subject = subject
	return c
}

// WithAudience sets the "aud" claim to a single audience.
func (c *Claims[C]) WithAudience(audience string) *Claims[C] {
	c.Audiences = Audiences{audience}
	return c
}

// WithAudiences sets the "aud" claim to the given audiences.
func (c *Claims[C]) WithAudiences(audiences ...string) *Claims[C] {
	c.Audiences = Audiences(audiences)
	return c
}

// WithID sets the "jti" claim.
func (c *Claims[C]) WithID(id string) *Claims[C] {
	c.ID = id
	return c
}

// WithGeneratedID sets the "jti" claim to a fresh random UUID.
func (c *Claims[C]) WithGeneratedID() *Claims[C] {
	c.ID = uuid.NewString()
	return c
}

// WithNonce sets the "nonce" claim.
func (c *Claims[C]) WithNonce(nonce string) *Claims[C] {
	c.Nonce = nonce
	return c
}

// ExpiresIn reports how long until the token expires, or false when no
// expiry is set.
func (c *Claims[C]) ExpiresIn() (time.Duration, bool) {
	if c.ExpiresAt == nil {
		return 0, false
	}
	return time.Until(c.ExpiresAt.Time), true
}

func (c Claims[C]) registered() registeredClaims {
	return registeredClaims{
		Issuer:    c.Issuer,
		Subject:   c.Subject,
		Audiences: c.Audiences,
		ExpiresAt: c.ExpiresAt,
		NotBefore: c.NotBefore,
		IssuedAt:  c.IssuedAt,
		ID:        c.ID,
		Nonce:     c.Nonce,
	}
}

// MarshalJSON flattens the registered and custom sections into one object.
func (c Claims[C]) MarshalJSON() ([]byte, error) {
	regJSON, err := json.Marshal(c.registered())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	customJSON, err := json.Marshal(c.Custom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	customJSON = bytes.TrimSpace(customJSON)
	if emptyCustomObject(customJSON) {
		return regJSON, nil
	}
	if customJSON[0] != '{' {
		return nil, fmt.Errorf("%w: custom claims must encode to a JSON object", ErrSerialization)
	}

	merged := make(map[string]jsoniter.RawMessage)
	if err := json.Unmarshal(customJSON, &merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	var reg map[string]jsoniter.RawMessage
	if err := json.Unmarshal(regJSON, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	for name, value := range reg {
		merged[name] = value
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the registered fields and hands the same object to
// the custom section, so custom types see their own fields by name.
func (c *Claims[C]) UnmarshalJSON(data []byte) error {
	var reg registeredClaims
	if err := json.Unmarshal(data, &reg); err != nil {
		return err
	}
	c.Issuer = reg.Issuer
	c.Subject = reg.Subject
	c.Audiences = reg.Audiences
	c.ExpiresAt = reg.ExpiresAt
	c.NotBefore = reg.NotBefore
	c.IssuedAt = reg.IssuedAt
	c.ID = reg.ID
	c.Nonce = reg.Nonce
	return json.Unmarshal(data, &c.Custom)
}

func emptyCustomObject(b []byte) bool {
	switch string(b) {
	case "null", "{}":
		return true
	}
	return false
}
