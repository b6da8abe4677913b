package identity

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const anonymousName = "Guest"

// Identity is a resolved member: a stable id plus a display name.
// Authenticated identities come from a verified token; guests get a
// client-chosen display name with no uniqueness guarantee and an
// ephemeral id.
type Identity struct {
	UID           string
	DisplayName   string
	Authenticated bool
}

type claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name"`
}

// Provider validates session tokens issued by the external identity
// collaborator (HS256, shared secret).
type Provider struct {
	secret []byte
}

func NewProvider(secret string) *Provider {
	return &Provider{secret: []byte(secret)}
}

// Resolve verifies a token and extracts {uid, displayName}.
func (p *Provider) Resolve(token string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	name := c.DisplayName
	if name == "" {
		name = anonymousName
	}
	return Identity{
		UID:           c.Subject,
		DisplayName:   name,
		Authenticated: true,
	}, nil
}

// Guest builds an ephemeral identity around a client-chosen name.
func Guest(name string) Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = anonymousName
	}
	return Identity{
		UID:         "guest_" + uuid.NewString()[:8],
		DisplayName: name,
	}
}
