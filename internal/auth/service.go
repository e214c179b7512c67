package auth

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/bizgw/internal/audit"
	"github.com/vyrodovalexey/bizgw/internal/auth/jwt"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// Login results reported to metrics.
const (
	LoginSuccess = "success"
	LoginInvalid = "invalid"
	LoginError   = "error"
)

// IssuedToken is the result of a successful login.
type IssuedToken struct {
	Token     string
	Claims    *jwt.Claims
	ExpiresAt time.Time
}

// TokenService exchanges credentials for a signed token.
type TokenService struct {
	verifier CredentialVerifier
	issuer   *jwt.Issuer
	logger   observability.Logger
	metrics  *observability.Metrics
	auditor  audit.Logger
}

// ServiceOption configures a TokenService.
type ServiceOption func(*TokenService)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) ServiceOption {
	return func(s *TokenService) {
		s.logger = logger
	}
}

// WithMetrics enables login metrics.
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *TokenService) {
		s.metrics = m
	}
}

// WithAuditor records each login attempt.
func WithAuditor(a audit.Logger) ServiceOption {
	return func(s *TokenService) {
		s.auditor = a
	}
}

// NewTokenService creates a TokenService.
func NewTokenService(verifier CredentialVerifier, issuer *jwt.Issuer, opts ...ServiceOption) *TokenService {
	s := &TokenService{
		verifier: verifier,
		issuer:   issuer,
		logger:   observability.NopLogger(),
		auditor:  audit.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue verifies creds and mints a token for the user. Rejected
// credentials come back as an *AuthError; an unreachable identity
// service as a *BackendError.
func (s *TokenService) Issue(ctx context.Context, creds Credentials) (*IssuedToken, error) {
	if err := creds.Validate(); err != nil {
		s.record(LoginInvalid)
		s.audit(ctx, creds.Email, audit.OutcomeFailure, "missing_credentials")
		return nil, &AuthError{Kind: KindMissingCredentials, Cause: err}
	}

	info, err := s.verifier.Verify(ctx, creds)
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnknownUser):
		s.record(LoginInvalid)
		s.logger.WithContext(ctx).Info("login rejected", observability.String("email", creds.Email))
		s.audit(ctx, creds.Email, audit.OutcomeFailure, "invalid_credentials")
		return nil, &AuthError{Kind: KindInvalidCredentials, Cause: ErrInvalidCredentials}
	case err != nil:
		s.record(LoginError)
		s.logger.WithContext(ctx).Error("credential check failed", observability.Error(err))
		s.audit(ctx, creds.Email, audit.OutcomeError, "identity_unavailable")
		return nil, err
	}

	token, claims, err := s.issuer.Issue(info.Claims())
	if err != nil {
		s.record(LoginError)
		s.audit(ctx, creds.Email, audit.OutcomeError, "signing_failed")
		return nil, err
	}

	s.record(LoginSuccess)
	s.audit(ctx, creds.Email, audit.OutcomeSuccess, "")
	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}
	s.logger.WithContext(ctx).Info("token issued",
		observability.String("sub", claims.Subject),
		observability.String("jti", claims.ID),
	)
	return &IssuedToken{Token: token, Claims: claims, ExpiresAt: jwt.ExpiresAt(claims)}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.issuer.TTL()
}

func (s *TokenService) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}

func (s *TokenService) audit(ctx context.Context, subject string, outcome audit.Outcome, reason string) {
	s.auditor.Log(ctx, audit.Event{
		Type:    audit.EventTypeAuthentication,
		Action:  audit.ActionLogin,
		Outcome: outcome,
		Subject: subject,
		Reason:  reason,
	})
}
