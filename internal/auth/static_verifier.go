package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
	"github.com/vyrodovalexey/bizgw/internal/config"
)

// StaticVerifier checks bootstrap accounts from configuration. Emails are
// compared case-folded; passwords against bcrypt hashes.
type StaticVerifier struct {
	users map[string]staticUser
}

type staticUser struct {
	hash []byte
	info UserInfo
}

// NewStaticVerifier indexes users. It fails on duplicate emails and on
// hashes bcrypt cannot read.
func NewStaticVerifier(users []config.StaticUser) (*StaticVerifier, error) {
	v := &StaticVerifier{users: make(map[string]staticUser, len(users))}
	for i, u := range users {
		key := foldEmail(u.Email)
		if key == "" {
			return nil, fmt.Errorf("static user %d: email is required", i)
		}
		if _, dup := v.users[key]; dup {
			return nil, fmt.Errorf("static user %q: duplicate email", u.Email)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("static user %q: password hash: %w", u.Email, err)
		}
		v.users[key] = staticUser{
			hash: []byte(u.PasswordHash),
			info: UserInfo{
				Gid:       u.Subject,
				UserID:    jwt.FlexString(u.UserID),
				Email:     strings.TrimSpace(u.Email),
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Roles:     append(jwt.Roles(nil), u.Roles...),
				SbuID:     jwt.FlexString(u.SbuID),
				TeamID:    jwt.FlexString(u.TeamID),
			},
		}
	}
	return v, nil
}

// Len returns the number of configured users.
func (v *StaticVerifier) Len() int {
	return len(v.users)
}

// Verify implements CredentialVerifier.
func (v *StaticVerifier) Verify(_ context.Context, creds Credentials) (*UserInfo, error) {
	u, ok := v.users[foldEmail(creds.Email)]
	if !ok {
		return nil, ErrUnknownUser
	}
	err := bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("checking password: %w", err)
	}
	info := u.info
	info.Roles = append(jwt.Roles(nil), u.info.Roles...)
	return &info, nil
}

// foldEmail builds a fresh Caser per call; Casers are not safe for
// concurrent use.
func foldEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
