package identity

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Forwarding header names.
const (
	HeaderGid       = "X-User-Gid"
	HeaderUserID    = "X-User-Id"
	HeaderEmail     = "X-User-Email"
	HeaderFirstName = "X-User-FirstName"
	HeaderLastName  = "X-User-LastName"
	HeaderRoles     = "X-User-Roles"
	HeaderSbuID     = "X-User-SbuId"
	HeaderTeamID    = "X-User-TeamId"

	headerPrefix = "X-User-"
)

// Inject rewrites h for the outbound request: Authorization and every
// client-supplied X-User-* header are removed, then one header is set per
// non-empty principal field. A nil principal leaves no X-User-* headers.
// Inject never fails; values that are not legal header values are
// treated as absent.
func Inject(h http.Header, p *Principal) {
	h.Del("Authorization")
	for name := range h {
		if len(name) >= len(headerPrefix) && strings.EqualFold(name[:len(headerPrefix)], headerPrefix) {
			delete(h, name)
		}
	}

	if p == nil {
		return
	}

	set(h, HeaderGid, p.Gid)
	set(h, HeaderUserID, p.UserID)
	set(h, HeaderEmail, p.Email)
	set(h, HeaderFirstName, p.FirstName)
	set(h, HeaderLastName, p.LastName)
	set(h, HeaderRoles, strings.Join(p.Roles, ","))
	set(h, HeaderSbuID, p.SbuID)
	set(h, HeaderTeamID, p.TeamID)
}

func set(h http.Header, name, value string) {
	if value == "" || !httpguts.ValidHeaderFieldValue(value) {
		return
	}
	h.Set(name, value)
}
