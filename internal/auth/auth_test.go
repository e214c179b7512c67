package auth

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/bizgw/internal/audit"
	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func jwtConfig() jwt.Config {
	return jwt.Config{Secret: testSecret, Issuer: "bizgw", Audience: "bizgw-clients", TTL: time.Hour}
}

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func adminUser(t *testing.T) config.StaticUser {
	t.Helper()
	return config.StaticUser{
		Email:        "Admin@Example.com",
		PasswordHash: hashPassword(t, "s3cret"),
		Subject:      "0b7c5f7e-1111-4f0e-9a55-000000000001",
		UserID:       "1",
		FirstName:    "Ada",
		LastName:     "Admin",
		Roles:        []string{"Admin"},
		SbuID:        "10",
	}
}

type verifierFunc func(ctx context.Context, creds Credentials) (*UserInfo, error)

func (f verifierFunc) Verify(ctx context.Context, creds Credentials) (*UserInfo, error) {
	return f(ctx, creds)
}

func counterValue(t *testing.T, m *observability.Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if label == "" {
				return metric.GetCounter().GetValue()
			}
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCredentials_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		creds Credentials
		ok    bool
	}{
		{name: "complete", creds: Credentials{Email: "a@b.c", Password: "x"}, ok: true},
		{name: "blank email", creds: Credentials{Email: "  ", Password: "x"}},
		{name: "no password", creds: Credentials{Email: "a@b.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.creds.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMissingCredentials)
			}
		})
	}
}

func TestUserInfo_DecodeAndClaims(t *testing.T) {
	t.Parallel()

	body := `{"gid":"g-1","userId":42,"email":"jdoe@example.com","firstName":"Jane",
		"lastName":"Doe","roles":"Admin","sbuId":7,"teamId":null}`
	var u UserInfo
	require.NoError(t, json.Unmarshal([]byte(body), &u))

	c := u.Claims()
	assert.Equal(t, "g-1", c.Subject)
	assert.Equal(t, jwt.FlexString("42"), c.UserID)
	assert.Equal(t, "Jane", c.GivenName)
	assert.Equal(t, "Doe", c.FamilyName)
	assert.Equal(t, jwt.Roles{"Admin"}, c.Roles)
	assert.Equal(t, jwt.FlexString("7"), c.SbuID)
	assert.Empty(t, c.TeamID)

	u.Gid = ""
	assert.Equal(t, "42", u.Claims().Subject, "user id stands in for a missing gid")
}

func TestChainVerifier(t *testing.T) {
	t.Parallel()

	unknown := verifierFunc(func(context.Context, Credentials) (*UserInfo, error) { return nil, ErrUnknownUser })
	reject := verifierFunc(func(context.Context, Credentials) (*UserInfo, error) { return nil, ErrInvalidCredentials })
	accept := verifierFunc(func(context.Context, Credentials) (*UserInfo, error) { return &UserInfo{Gid: "g"}, nil })

	tests := []struct {
		name    string
		chain   ChainVerifier
		wantGid string
		wantErr error
	}{
		{name: "first unknown, second accepts", chain: ChainVerifier{unknown, accept}, wantGid: "g"},
		{name: "reject stops the chain", chain: ChainVerifier{reject, accept}, wantErr: ErrInvalidCredentials},
		{name: "nobody knows", chain: ChainVerifier{unknown, unknown}, wantErr: ErrInvalidCredentials},
		{name: "empty", chain: nil, wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info, err := tt.chain.Verify(context.Background(), Credentials{Email: "a", Password: "b"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantGid, info.Gid)
		})
	}
}

func TestStaticVerifier(t *testing.T) {
	t.Parallel()

	v, err := NewStaticVerifier([]config.StaticUser{adminUser(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())

	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{name: "exact email", creds: Credentials{Email: "Admin@Example.com", Password: "s3cret"}},
		{name: "case folded email", creds: Credentials{Email: " admin@EXAMPLE.com ", Password: "s3cret"}},
		{name: "wrong password", creds: Credentials{Email: "admin@example.com", Password: "nope"}, wantErr: ErrInvalidCredentials},
		{name: "unknown email", creds: Credentials{Email: "who@example.com", Password: "s3cret"}, wantErr: ErrUnknownUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info, err := v.Verify(context.Background(), tt.creds)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, info)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Admin@Example.com", info.Email)
			assert.Equal(t, jwt.Roles{"Admin"}, info.Roles)
		})
	}
}

func TestNewStaticVerifier_Rejects(t *testing.T) {
	t.Parallel()

	u := adminUser(t)
	dup := u
	dup.Email = "ADMIN@example.com"
	bad := u
	bad.PasswordHash = "plaintext"
	noEmail := u
	noEmail.Email = " "

	for name, users := range map[string][]config.StaticUser{
		"duplicate": {u, dup},
		"bad hash":  {bad},
		"no email":  {noEmail},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewStaticVerifier(users)
			assert.Error(t, err)
		})
	}
}

func TestTokenService_Issue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := jwt.NewIssuer(jwtConfig(), jwt.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	validator, err := jwt.NewValidator(jwtConfig(), jwt.WithClock(func() time.Time { return now.Add(time.Minute) }))
	require.NoError(t, err)

	static, err := NewStaticVerifier([]config.StaticUser{adminUser(t)})
	require.NoError(t, err)
	m := observability.NewMetrics("")
	svc := NewTokenService(static, issuer, WithMetrics(m))

	issued, err := svc.Issue(context.Background(), Credentials{Email: "admin@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), issued.ExpiresAt)
	assert.Equal(t, jwt.Roles{"Admin"}, issued.Claims.Roles)

	got, err := validator.Validate(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Claims.Subject, got.Subject)
	assert.Equal(t, issued.Claims.ID, got.ID)
	assert.Equal(t, jwt.Roles{"Admin"}, got.Roles)

	_, err = svc.Issue(context.Background(), Credentials{Email: "admin@example.com", Password: "wrong"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindInvalidCredentials, authErr.Kind)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Issue(context.Background(), Credentials{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown users look like bad passwords")

	_, err = svc.Issue(context.Background(), Credentials{})
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindMissingCredentials, authErr.Kind)

	assert.Equal(t, float64(1), counterValue(t, m, "gateway_login_attempts_total", "result", LoginSuccess))
	assert.Equal(t, float64(3), counterValue(t, m, "gateway_login_attempts_total", "result", LoginInvalid))
	assert.Equal(t, float64(1), counterValue(t, m, "gateway_tokens_issued_total", "", ""))
}

func TestTokenService_BackendErrorPassesThrough(t *testing.T) {
	t.Parallel()

	issuer, err := jwt.NewIssuer(jwtConfig())
	require.NoError(t, err)
	down := verifierFunc(func(context.Context, Credentials) (*UserInfo, error) {
		return nil, &BackendError{Op: "verify", StatusCode: 500}
	})
	svc := NewTokenService(down, issuer)

	_, err = svc.Issue(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 500, be.StatusCode)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestTokenService_Audit(t *testing.T) {
	t.Parallel()

	issuer, err := jwt.NewIssuer(jwtConfig())
	require.NoError(t, err)
	static, err := NewStaticVerifier([]config.StaticUser{adminUser(t)})
	require.NoError(t, err)
	down := verifierFunc(func(context.Context, Credentials) (*UserInfo, error) {
		return nil, &BackendError{Op: "verify", StatusCode: 502}
	})

	rec := &recordingAuditor{}
	ctx := context.Background()

	svc := NewTokenService(static, issuer, WithAuditor(rec))
	_, _ = svc.Issue(ctx, Credentials{Email: "admin@example.com", Password: "s3cret"})
	_, _ = svc.Issue(ctx, Credentials{Email: "admin@example.com", Password: "wrong"})
	_, _ = svc.Issue(ctx, Credentials{Email: "admin@example.com"})
	_, _ = NewTokenService(down, issuer, WithAuditor(rec)).Issue(ctx, Credentials{Email: "a@b.c", Password: "x"})

	require.Len(t, rec.events, 4)
	want := []struct {
		outcome audit.Outcome
		reason  string
	}{
		{audit.OutcomeSuccess, ""},
		{audit.OutcomeFailure, "invalid_credentials"},
		{audit.OutcomeFailure, "missing_credentials"},
		{audit.OutcomeError, "identity_unavailable"},
	}
	for i, w := range want {
		e := rec.events[i]
		assert.Equal(t, audit.EventTypeAuthentication, e.Type)
		assert.Equal(t, audit.ActionLogin, e.Action)
		assert.Equal(t, w.outcome, e.Outcome, "event %d", i)
		assert.Equal(t, w.reason, e.Reason, "event %d", i)
	}
	assert.Equal(t, "admin@example.com", rec.events[0].Subject)
}
