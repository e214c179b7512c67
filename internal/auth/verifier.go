package auth

import (
	"context"
	"errors"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate rejects empty fields.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// UserInfo is what a verifier knows about an authenticated user. The JSON
// form matches the identity service's verify-credentials response.
type UserInfo struct {
	Gid       string         `json:"gid"`
	UserID    jwt.FlexString `json:"userId"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Roles     jwt.Roles      `json:"roles"`
	SbuID     jwt.FlexString `json:"sbuId"`
	TeamID    jwt.FlexString `json:"teamId"`
}

// Claims converts the user into the identity part of a token. The
// subject is the gid, or the user ID when the service sends no gid.
func (u *UserInfo) Claims() jwt.Claims {
	sub := u.Gid
	if sub == "" {
		sub = u.UserID.String()
	}
	return jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{Subject: sub},
		UserID:           u.UserID,
		Email:            u.Email,
		GivenName:        u.FirstName,
		FamilyName:       u.LastName,
		Roles:            append(jwt.Roles(nil), u.Roles...),
		SbuID:            u.SbuID,
		TeamID:           u.TeamID,
	}
}

// CredentialVerifier checks an email/password pair. Implementations return
// ErrInvalidCredentials for a definite "no" and ErrUnknownUser when they
// cannot judge the email at all.
type CredentialVerifier interface {
	Verify(ctx context.Context, creds Credentials) (*UserInfo, error)
}

// ChainVerifier asks each verifier in order until one gives an answer
// other than ErrUnknownUser.
type ChainVerifier []CredentialVerifier

// Verify implements CredentialVerifier.
func (c ChainVerifier) Verify(ctx context.Context, creds Credentials) (*UserInfo, error) {
	for _, v := range c {
		info, err := v.Verify(ctx, creds)
		if errors.Is(err, ErrUnknownUser) {
			continue
		}
		return info, err
	}
	return nil, ErrInvalidCredentials
}
