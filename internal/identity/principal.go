// Package identity turns validated token claims into a typed Principal and
// writes it onto proxied requests as trusted X-User-* headers.
package identity

import (
	"context"
	"strings"

	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
)

// Principal is the authenticated caller. Empty fields are absent claims.
type Principal struct {
	Gid       string   `json:"gid,omitempty"`
	UserID    string   `json:"userId,omitempty"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SbuID     string   `json:"sbuId,omitempty"`
	TeamID    string   `json:"teamId,omitempty"`
}

// FromClaims extracts the principal once at authentication time. The
// numeric uid claim wins over nameid; empty roles are dropped and the
// remaining ones keep claim order.
func FromClaims(c *jwt.Claims) *Principal {
	if c == nil {
		return nil
	}

	p := &Principal{
		Gid:       strings.TrimSpace(c.Subject),
		UserID:    strings.TrimSpace(c.UserID.String()),
		Email:     strings.TrimSpace(c.Email),
		FirstName: strings.TrimSpace(c.GivenName),
		LastName:  strings.TrimSpace(c.FamilyName),
		SbuID:     strings.TrimSpace(c.SbuID.String()),
		TeamID:    strings.TrimSpace(c.TeamID.String()),
	}
	if p.UserID == "" {
		p.UserID = strings.TrimSpace(c.NameID)
	}
	for _, r := range c.Roles {
		if r = strings.TrimSpace(r); r != "" {
			p.Roles = append(p.Roles, r)
		}
	}
	return p
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type principalKey struct{}

// NewContext returns ctx carrying p.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by NewContext, or nil for an
// anonymous request.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
