package auth

import (
	"testing"
	"time"

	"customerportal/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-key-with-at-least-32-bytes!",
		Issuer:               "customer-portal",
		Audience:             "customer-portal",
		TokenLifetimeMinutes: 30,
	})
	require.NoError(t, err)
	return svc
}

func TestJWTServiceIssueCustomerToken(t *testing.T) {
	svc := newTestJWTService(t)

	issued, err := svc.Issue(IssueParams{
		UserID:          "u-1",
		Email:           "jane@acme.example",
		Roles:           []string{RoleCustomerViewer},
		IsCustomerUser:  true,
		TenantID:        7,
		TenantSubdomain: "acme",
		IsAdminPortal:   true,
	})
	require.NoError(t, err)

	claims, err := svc.Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, int64(7), claims.TenantID)
	assert.Equal(t, "acme", claims.TenantSubdomain)
	assert.False(t, claims.IsAdminPortal, "tenant and admin portal markers are exclusive")
	assert.True(t, claims.HasRole("customerviewer"))
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), issued.ExpiresAt, 5*time.Second)
}

func TestJWTServiceIssueAdminPortalToken(t *testing.T) {
	svc := newTestJWTService(t)

	issued, err := svc.Issue(IssueParams{UserID: "op-1", IsCCIUser: true, IsAdminPortal: true, Roles: []string{RoleAdmin}})
	require.NoError(t, err)

	claims, err := svc.Validate(issued.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdminPortal)
	assert.True(t, claims.IsCCIUser)
	assert.False(t, claims.HasTenant())
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	svc := newTestJWTService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	issued, err := svc.Issue(IssueParams{UserID: "u-1"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(issued.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTServiceRejectsForeignSignature(t *testing.T) {
	svc := newTestJWTService(t)
	other, err := NewJWTService(config.AuthConfig{JWTSecret: "another-secret-another-secret-1234", Issuer: "customer-portal", Audience: "customer-portal"})
	require.NoError(t, err)

	issued, err := other.Issue(IssueParams{UserID: "u-1"})
	require.NoError(t, err)

	_, err = svc.Validate(issued.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTServiceRejectsWrongAudience(t *testing.T) {
	svc := newTestJWTService(t)
	other, err := NewJWTService(config.AuthConfig{JWTSecret: "test-secret-key-with-at-least-32-bytes!", Issuer: "customer-portal", Audience: "someone-else"})
	require.NoError(t, err)

	issued, err := other.Issue(IssueParams{UserID: "u-1"})
	require.NoError(t, err)

	_, err = svc.Validate(issued.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(config.AuthConfig{})
	assert.Error(t, err)
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("bearer abc"))
	assert.Equal(t, "", ExtractTokenFromBearer("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromBearer("abc"))
}
