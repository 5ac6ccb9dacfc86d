// Package tokenauth mints and verifies the signed bearer tokens that
// authenticate gateway requests. A token binds a tenant to exactly one
// integration and carries the upstream credential the integration should
// use on that tenant's behalf.
package tokenauth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	claimIntegration = "integrationName"
	claimCredential  = "upstreamCredential"
	claimTenant      = "tenantId"
	claimIssuedAt    = "issuedAt"
	claimExpiresAt   = "expiresAt"
)

// Kind classifies a token verification failure.
type Kind int

const (
	KindMalformed Kind = iota + 1
	KindInvalidSignature
	KindExpired
	KindMissingClaim
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindExpired:
		return "expired"
	case KindMissingClaim:
		return "missing_claim"
	default:
		return "unknown"
	}
}

// AuthError is returned by Verify. Callers branch on Kind; the reason is
// safe to surface to clients.
type AuthError struct {
	Kind   Kind
	Reason string
}

func (e *AuthError) Error() string {
	return "tokenauth: " + e.Reason
}

func errAuth(kind Kind, format string, args ...any) *AuthError {
	return &AuthError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// TenantContext is the verified identity of a request. It is derived from a
// token once per request and never mutated.
type TenantContext struct {
	Integration        string
	TenantID           string
	UpstreamCredential string
}

// Authenticator verifies and mints gateway tokens with a single symmetric
// secret. The secret is fixed for the process lifetime.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// New returns an Authenticator for the given secret. An empty secret is
// refused so a misconfigured process cannot fall back to a guessable key.
func New(secret string) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("tokenauth: signing secret must not be empty")
	}
	return &Authenticator{secret: []byte(secret), now: time.Now}, nil
}

// Mint signs a token for the given tenant context, valid for ttl from now.
func (a *Authenticator) Mint(tc TenantContext, ttl time.Duration) (string, error) {
	if tc.Integration == "" || tc.TenantID == "" || tc.UpstreamCredential == "" {
		return "", fmt.Errorf("tokenauth: integration, tenant and credential are all required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("tokenauth: ttl must be positive, got %s", ttl)
	}
	now := a.now()
	claims := jwt.MapClaims{
		claimIntegration: tc.Integration,
		claimCredential:  tc.UpstreamCredential,
		claimTenant:      tc.TenantID,
		claimIssuedAt:    now.Unix(),
		claimExpiresAt:   now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("tokenauth: signing token: %w", err)
	}
	return token, nil
}

// Verify checks raw and returns the tenant context it carries. Failures are
// *AuthError values. Expiry is checked before the signature so an expired
// token always reports KindExpired, even when it was signed with the wrong
// key or tampered with in transit.
func (a *Authenticator) Verify(raw string) (TenantContext, error) {
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return TenantContext{}, errAuth(KindMalformed, "token is not a valid JWT: %v", err)
	}
	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return TenantContext{}, errAuth(KindMalformed, "token claims are not an object")
	}

	issuedAt, ok := numericClaim(claims, claimIssuedAt)
	if !ok {
		return TenantContext{}, errAuth(KindMissingClaim, "token has no %s claim", claimIssuedAt)
	}
	expiresAt, ok := numericClaim(claims, claimExpiresAt)
	if !ok {
		return TenantContext{}, errAuth(KindMissingClaim, "token has no %s claim", claimExpiresAt)
	}
	if expiresAt <= issuedAt {
		return TenantContext{}, errAuth(KindMalformed, "token expiry is not after issuance")
	}
	if !a.now().Before(time.Unix(expiresAt, 0)) {
		return TenantContext{}, errAuth(KindExpired, "token expired at %s", time.Unix(expiresAt, 0).UTC().Format(time.RFC3339))
	}

	keyfunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return a.secret, nil
	}
	if _, err := jwt.ParseWithClaims(raw, jwt.MapClaims{}, keyfunc,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return TenantContext{}, errAuth(KindInvalidSignature, "token signature is invalid")
	}

	tc := TenantContext{}
	for _, c := range []struct {
		name string
		dst  *string
	}{
		{claimIntegration, &tc.Integration},
		{claimTenant, &tc.TenantID},
		{claimCredential, &tc.UpstreamCredential},
	} {
		v, ok := stringClaim(claims, c.name)
		if !ok {
			return TenantContext{}, errAuth(KindMissingClaim, "token has no %s claim", c.name)
		}
		*c.dst = v
	}
	return tc, nil
}

// Inspect decodes a token's claims without verifying it. Diagnostic use
// only; never trust the output for authentication.
func Inspect(raw string) (map[string]any, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("tokenauth: decoding token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("tokenauth: token claims are not an object")
	}
	return map[string]any(claims), nil
}

func numericClaim(claims jwt.MapClaims, name string) (int64, bool) {
	switch v := claims[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func stringClaim(claims jwt.MapClaims, name string) (string, bool) {
	v, ok := claims[name].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
