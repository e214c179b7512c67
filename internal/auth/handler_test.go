package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestEngine(t *testing.T, verifier CredentialVerifier) *gin.Engine {
	t.Helper()

	issuer, err := jwt.NewIssuer(jwtConfig())
	require.NoError(t, err)
	h := NewHandler(NewTokenService(verifier, issuer), nil)

	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.GET("/api/auth/me", func(c *gin.Context) {
		if c.GetHeader("X-Test-Principal") != "" {
			p := &identity.Principal{Gid: "g-1", Roles: []string{"Admin"}}
			c.Request = c.Request.WithContext(identity.NewContext(c.Request.Context(), p))
		}
		c.Next()
	}, h.Me)
	return r
}

func doJSON(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()

	static, err := NewStaticVerifier([]config.StaticUser{adminUser(t)})
	require.NoError(t, err)
	r := newTestEngine(t, static)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "valid", body: `{"email":"admin@example.com","password":"s3cret"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"email":"admin@example.com","password":"x"}`, wantStatus: http.StatusUnauthorized, wantCode: util.CodeInvalidCredentials},
		{name: "missing password", body: `{"email":"admin@example.com"}`, wantStatus: http.StatusBadRequest, wantCode: util.CodeBadRequest},
		{name: "not json", body: `email=admin`, wantStatus: http.StatusBadRequest, wantCode: util.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doJSON(r, http.MethodPost, "/api/auth/login", tt.body, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantCode != "" {
				var er util.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
				assert.Equal(t, tt.wantCode, er.Code)
				return
			}

			var resp LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, "Bearer", resp.TokenType)
			assert.Equal(t, int64(3600), resp.ExpiresIn)
			assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)
			require.NotNil(t, resp.Claims)
			assert.Equal(t, []string{"Admin"}, resp.Claims.Roles)
			assert.Equal(t, "1", resp.Claims.UserID)
		})
	}
}

func TestHandler_LoginBackendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "unreachable", err: &BackendError{Op: "verify", Cause: context.Canceled}, wantStatus: http.StatusBadGateway, wantCode: util.CodeBadGateway},
		{name: "timeout", err: &BackendError{Op: "verify", Timeout: true, Cause: context.DeadlineExceeded}, wantStatus: http.StatusGatewayTimeout, wantCode: util.CodeGatewayTimeout},
		{name: "unexpected", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: util.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestEngine(t, verifierFunc(func(context.Context, Credentials) (*UserInfo, error) {
				return nil, tt.err
			}))
			rec := doJSON(r, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"x"}`, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			var er util.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, tt.wantCode, er.Code)
		})
	}
}

func TestHandler_Me(t *testing.T) {
	t.Parallel()

	r := newTestEngine(t, ChainVerifier{})

	rec := doJSON(r, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(r, http.MethodGet, "/api/auth/me", "", map[string]string{"X-Test-Principal": "1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"gid":"g-1","roles":["Admin"]}`, rec.Body.String())
}
