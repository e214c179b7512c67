package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// TokenValidator checks a bearer token. *jwt.Validator implements it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*jwt.Claims, error)
}

// Authenticator turns the Authorization header into a Principal.
type Authenticator struct {
	validator TokenValidator
	logger    observability.Logger
	metrics   *observability.Metrics
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(v TokenValidator, logger observability.Logger, metrics *observability.Metrics) *Authenticator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Authenticator{validator: v, logger: logger, metrics: metrics}
}

// Authenticate returns the caller's principal. A request without an
// Authorization header yields (nil, jwt.ErrMissingHeader).
func (a *Authenticator) Authenticate(r *http.Request) (*identity.Principal, error) {
	token, err := jwt.BearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, err := a.validator.Validate(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return identity.FromClaims(claims), nil
}

// reject records a failed authentication and builds the 401.
func (a *Authenticator) reject(r *http.Request, err error) *StageError {
	reason := jwt.Reason(err)
	if a.metrics != nil {
		a.metrics.RecordAuthFailure(reason)
	}
	a.logger.WithContext(r.Context()).Debug("authentication failed",
		observability.String("reason", reason),
		observability.Error(err),
	)

	code := util.CodeUnauthorized
	msg := "authentication required"
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		code = util.CodeTokenExpired
		msg = "token has expired"
	case !errors.Is(err, jwt.ErrMissingHeader):
		msg = "invalid token"
	}
	return &StageError{Stage: StageReceived, Status: http.StatusUnauthorized, Code: code, Message: msg, Cause: err}
}

// challenge sets WWW-Authenticate for a 401.
func challenge(h http.Header, se *StageError) {
	switch se.Code {
	case util.CodeTokenExpired:
		h.Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="token expired"`)
	case util.CodeUnauthorized:
		if errors.Is(se.Cause, jwt.ErrMissingHeader) {
			h.Set("WWW-Authenticate", "Bearer")
			return
		}
		h.Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
}

// withPrincipal stores p on the request context and in the log context.
func withPrincipal(r *http.Request, p *identity.Principal) *http.Request {
	ctx := identity.NewContext(r.Context(), p)
	if p.UserID != "" {
		ctx = observability.ContextWithUserID(ctx, p.UserID)
	}
	return r.WithContext(ctx)
}

// Optional attaches the principal when a valid token is presented and
// lets every request through.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, err := a.Authenticate(c.Request); err == nil {
			c.Request = withPrincipal(c.Request, p)
		}
		c.Next()
	}
}

// Required rejects requests without a valid token with 401.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.Authenticate(c.Request)
		if err != nil {
			se := a.reject(c.Request, err)
			challenge(c.Writer.Header(), se)
			c.AbortWithStatusJSON(se.Status, util.ErrorResponse{Code: se.Code, Message: se.Message})
			return
		}
		c.Request = withPrincipal(c.Request, p)
		c.Next()
	}
}
