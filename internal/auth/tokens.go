package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken indicates the token failed signature or claim validation.
var ErrInvalidToken = errors.New("auth: invalid token")

const rolesClaim = "roles"

// Issuer signs and parses HS256 access tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	skew     time.Duration
	now      func() time.Time
}

// Config configures the token issuer.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewIssuer validates the config and builds an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		skew:     cfg.ClockSkew,
		now:      now,
	}, nil
}

// Sign mints an access token for the user with the given roles.
func (i *Issuer) Sign(userID uuid.UUID, roles []string) (string, time.Time, error) {
	issuedAt := i.now()
	expiry := issuedAt.Add(i.ttl)
	builder := jwt.NewBuilder().
		Subject(userID.String()).
		IssuedAt(issuedAt).
		Expiration(expiry).
		Claim(rolesClaim, roles)
	if i.issuer != "" {
		builder = builder.Issuer(i.issuer)
	}
	if i.audience != "" {
		builder = builder.Audience([]string{i.audience})
	}
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), expiry, nil
}

// Parse verifies a token and returns the subject and roles claim.
func (i *Issuer) Parse(raw string) (string, []string, error) {
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, i.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	}
	if i.skew > 0 {
		options = append(options, jwt.WithAcceptableSkew(i.skew))
	}
	if i.issuer != "" {
		options = append(options, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		options = append(options, jwt.WithAudience(i.audience))
	}
	token, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := token.Subject()
	if subject == "" {
		return "", nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, parseRoles(token), nil
}

func parseRoles(token jwt.Token) []string {
	raw, ok := token.Get(rolesClaim)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
