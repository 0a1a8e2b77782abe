package jose

// SigningMethod names the HMAC algorithm a Processor signs with.
type SigningMethod string

const (
	// SigningMethodHS256 uses HMAC with SHA-256 (recommended for most use cases)
	SigningMethodHS256 SigningMethod = HS256

	// SigningMethodHS384 uses HMAC with SHA-384 (higher security, larger signatures)
	SigningMethodHS384 SigningMethod = HS384

	// SigningMethodHS512 uses HMAC with SHA-512 (maximum security, largest signatures)
	SigningMethodHS512 SigningMethod = HS512
)

// SessionClaims is the custom claim section a Processor issues: the
// authentication and authorization fields a service session needs.
type SessionClaims struct {
	UserID      string         `json:"user_id,omitempty"`     // Unique user identifier
	Username    string         `json:"username,omitempty"`    // Human-readable username
	Role        string         `json:"role,omitempty"`        // User role (e.g., "admin", "user")
	Permissions []string       `json:"permissions,omitempty"` // List of permissions
	Scopes      []string       `json:"scopes,omitempty"`      // OAuth2-style scopes
	Extra       map[string]any `json:"extra,omitempty"`       // Additional custom claims
	SessionID   string         `json:"session_id,omitempty"`  // Session identifier
	ClientID    string         `json:"client_id,omitempty"`   // Client application identifier
}

// SessionToken is the claim container a Processor creates and validates:
// the registered claim set with SessionClaims flattened in.
type SessionToken = Claims[SessionClaims]

// NewSessionClaims wraps session fields in a claim container with no expiry
// set; the Processor stamps times on issue.
func NewSessionClaims(custom SessionClaims) *SessionToken {
	return &SessionToken{Custom: custom}
}
