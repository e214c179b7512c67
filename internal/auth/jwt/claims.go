package jwt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims is the gateway token payload.
type Claims struct {
	gojwt.RegisteredClaims

	UserID     FlexString `json:"uid,omitempty"`
	NameID     string     `json:"nameid,omitempty"`
	Email      string     `json:"email,omitempty"`
	GivenName  string     `json:"given_name,omitempty"`
	FamilyName string     `json:"family_name,omitempty"`
	Roles      Roles      `json:"role,omitempty"`
	SbuID      FlexString `json:"sbu_id,omitempty"`
	TeamID     FlexString `json:"team_id,omitempty"`
}

// Roles is the role claim. It decodes from a single string or an array and
// keeps the order the issuer wrote.
type Roles []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Roles) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = Roles{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("role claim must be a string or an array of strings: %w", err)
	}
	*r = many
	return nil
}

// MarshalJSON writes a single role as a bare string, several as an array.
func (r Roles) MarshalJSON() ([]byte, error) {
	if len(r) == 1 {
		return json.Marshal(r[0])
	}
	return json.Marshal([]string(r))
}

// Has reports whether role is present.
func (r Roles) Has(role string) bool {
	for _, v := range r {
		if v == role {
			return true
		}
	}
	return false
}

// FlexString is an identifier claim that some issuers write as a JSON
// number and others as a string.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier claim must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
