// Package auth implements the login side of the gateway: checking
// credentials against the identity service (or bootstrap accounts) and
// minting bearer tokens for them.
//
// Token parsing and signature checks live in the jwt subpackage; this
// package only decides whether a set of credentials earns a token.
package auth
