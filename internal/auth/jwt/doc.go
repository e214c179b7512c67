// Package jwt mints and validates the gateway's HS256 bearer tokens.
//
// Tokens carry the registered claims (iss, aud, sub, iat, exp, jti) and the
// business identity claims the downstream services expect: uid, nameid,
// email, given_name, family_name, role, sbu_id and team_id.
//
// Validation checks signature, issuer, audience and expiry with zero clock
// skew: a token that expired one second ago is rejected.
//
//	issuer, _ := jwt.NewIssuer(cfg)
//	token, claims, err := issuer.Issue(jwt.Claims{Email: "a@example.com"})
//
//	validator, _ := jwt.NewValidator(cfg)
//	claims, err := validator.Validate(ctx, token)
//	if errors.Is(err, jwt.ErrTokenExpired) {
//	    // 401 token_expired
//	}
package jwt
