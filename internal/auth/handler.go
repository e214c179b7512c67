package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token     string              `json:"token"`
	TokenType string              `json:"tokenType"`
	ExpiresAt time.Time           `json:"expiresAt"`
	ExpiresIn int64               `json:"expiresIn"`
	Claims    *identity.Principal `json:"claims"`
}

// Handler serves the login endpoints.
type Handler struct {
	service *TokenService
	logger  observability.Logger
}

// NewHandler creates a Handler.
func NewHandler(service *TokenService, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{service: service, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		abort(c, http.StatusBadRequest, util.CodeBadRequest, "request body must be {\"email\", \"password\"}")
		return
	}

	issued, err := h.service.Issue(c.Request.Context(), creds)
	if err != nil {
		status, code, msg := loginErrorStatus(err)
		abort(c, status, code, msg)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     issued.Token,
		TokenType: "Bearer",
		ExpiresAt: issued.ExpiresAt.UTC(),
		ExpiresIn: int64(h.service.TTL() / time.Second),
		Claims:    identity.FromClaims(issued.Claims),
	})
}

// Me handles GET /api/auth/me. It expects an authentication middleware
// to have stored the principal on the request context.
func (h *Handler) Me(c *gin.Context) {
	p := identity.FromContext(c.Request.Context())
	if p == nil {
		abort(c, http.StatusUnauthorized, util.CodeUnauthorized, "authentication required")
		return
	}
	c.JSON(http.StatusOK, p)
}

func loginErrorStatus(err error) (int, string, string) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		if authErr.Kind == KindMissingCredentials {
			return http.StatusBadRequest, util.CodeBadRequest, authErr.Cause.Error()
		}
		return http.StatusUnauthorized, util.CodeInvalidCredentials, "invalid email or password"
	}
	switch {
	case errors.Is(err, util.ErrCircuitOpen):
		return http.StatusServiceUnavailable, util.CodeServiceUnavailable, "identity service unavailable"
	case errors.Is(err, util.ErrTimeout):
		return http.StatusGatewayTimeout, util.CodeGatewayTimeout, "identity service timed out"
	case errors.Is(err, util.ErrBackendUnavailable):
		return http.StatusBadGateway, util.CodeBadGateway, "identity service unreachable"
	default:
		return http.StatusInternalServerError, util.CodeInternal, "could not issue token"
	}
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, util.ErrorResponse{Code: code, Message: msg})
}
