package identity

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
)

var allHeaders = []string{
	HeaderGid, HeaderUserID, HeaderEmail, HeaderFirstName,
	HeaderLastName, HeaderRoles, HeaderSbuID, HeaderTeamID,
}

func fullClaims() *jwt.Claims {
	c := &jwt.Claims{
		UserID:     "42",
		NameID:     "jdoe",
		Email:      "jdoe@example.com",
		GivenName:  "Jane",
		FamilyName: "Doe",
		Roles:      jwt.Roles{"User", "Admin"},
		SbuID:      "7",
		TeamID:     "3",
	}
	c.Subject = "gid-1"
	return c
}

func TestInject_AllClaims(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Authorization", "Bearer token")
	h.Set("Accept", "application/json")

	Inject(h, FromClaims(fullClaims()))

	assert.Empty(t, h.Values("Authorization"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "gid-1", h.Get(HeaderGid))
	assert.Equal(t, "42", h.Get(HeaderUserID))
	assert.Equal(t, "jdoe@example.com", h.Get(HeaderEmail))
	assert.Equal(t, "Jane", h.Get(HeaderFirstName))
	assert.Equal(t, "Doe", h.Get(HeaderLastName))
	assert.Equal(t, "User,Admin", h.Get(HeaderRoles), "claim order, not sorted")
	assert.Equal(t, "7", h.Get(HeaderSbuID))
	assert.Equal(t, "3", h.Get(HeaderTeamID))
}

// Every optional claim, when missing, leaves its header absent rather than
// present-but-empty.
func TestInject_MissingClaimOmitsHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		clear  func(*jwt.Claims)
		header string
	}{
		{name: "subject", clear: func(c *jwt.Claims) { c.Subject = "" }, header: HeaderGid},
		{name: "uid and nameid", clear: func(c *jwt.Claims) { c.UserID = ""; c.NameID = "" }, header: HeaderUserID},
		{name: "email", clear: func(c *jwt.Claims) { c.Email = "" }, header: HeaderEmail},
		{name: "first name", clear: func(c *jwt.Claims) { c.GivenName = "" }, header: HeaderFirstName},
		{name: "last name", clear: func(c *jwt.Claims) { c.FamilyName = "" }, header: HeaderLastName},
		{name: "roles", clear: func(c *jwt.Claims) { c.Roles = nil }, header: HeaderRoles},
		{name: "only empty roles", clear: func(c *jwt.Claims) { c.Roles = jwt.Roles{"", " "} }, header: HeaderRoles},
		{name: "sbu", clear: func(c *jwt.Claims) { c.SbuID = "" }, header: HeaderSbuID},
		{name: "team", clear: func(c *jwt.Claims) { c.TeamID = "" }, header: HeaderTeamID},
		{name: "whitespace email", clear: func(c *jwt.Claims) { c.Email = "   " }, header: HeaderEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := fullClaims()
			tt.clear(c)

			h := http.Header{}
			Inject(h, FromClaims(c))

			_, present := h[http.CanonicalHeaderKey(tt.header)]
			assert.False(t, present, "%s must be absent", tt.header)

			for _, other := range allHeaders {
				if other != tt.header {
					assert.NotEmpty(t, h.Get(other), other)
				}
			}
		})
	}
}

func TestInject_UserIDFallsBackToNameID(t *testing.T) {
	t.Parallel()

	c := fullClaims()
	c.UserID = ""

	h := http.Header{}
	Inject(h, FromClaims(c))
	assert.Equal(t, "jdoe", h.Get(HeaderUserID))
}

func TestInject_Anonymous(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Authorization", "Bearer garbage")
	h.Set("X-Request-ID", "r1")

	Inject(h, nil)

	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "r1", h.Get("X-Request-ID"))
	for _, name := range allHeaders {
		assert.Empty(t, h.Values(name), name)
	}
}

func TestInject_StripsSpoofedHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-User-Roles", "Admin")
	h.Set("X-User-Id", "1")
	h["x-user-custom"] = []string{"lowercase spoof"}

	c := fullClaims()
	c.Roles = nil
	Inject(h, FromClaims(c))

	assert.Empty(t, h.Values(HeaderRoles))
	assert.Equal(t, []string{"42"}, h.Values(HeaderUserID))
	assert.NotContains(t, h, "x-user-custom")
}

func TestInject_InvalidHeaderValueDropped(t *testing.T) {
	t.Parallel()

	c := fullClaims()
	c.GivenName = "Jane\r\nX-Evil: 1"

	h := http.Header{}
	Inject(h, FromClaims(c))
	assert.Empty(t, h.Values(HeaderFirstName))
	assert.Equal(t, "Doe", h.Get(HeaderLastName))
}

func TestFromClaims(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromClaims(nil))

	c := fullClaims()
	c.Roles = jwt.Roles{"", "Admin", " ", "User"}
	p := FromClaims(c)
	require.NotNil(t, p)
	assert.Equal(t, []string{"Admin", "User"}, p.Roles)
	assert.True(t, p.HasRole("Admin"))
	assert.False(t, p.HasRole("admin"))

	var nilP *Principal
	assert.False(t, nilP.HasRole("Admin"))
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromContext(context.Background()))

	p := &Principal{Gid: "g"}
	assert.Same(t, p, FromContext(NewContext(context.Background(), p)))
}
