package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars!",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "leasepay-test",
	})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService()
	orgID, userID, tenantID := uuid.New(), uuid.New(), uuid.New()

	token, expiresAt, err := svc.Issue(IssueInput{OrgID: orgID, UserID: userID, Role: identity.RoleTenant, TenantID: &tenantID})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "TENANT", claims.Role)

	p, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, orgID, p.OrgID)
	assert.Equal(t, userID, p.UserID)
	require.NotNil(t, p.TenantID)
	assert.Equal(t, tenantID, *p.TenantID)
	assert.True(t, p.Capabilities().Has(identity.CapPaymentsRecord))
	assert.False(t, p.Capabilities().Has(identity.CapPaymentsRecordAny))
	assert.Greater(t, claims.RemainingTTL(), 14*time.Minute)
}

func TestJWTService_IssueRejects(t *testing.T) {
	svc := newTestJWTService()

	_, _, err := svc.Issue(IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: "JANITOR"})
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, _, err = svc.Issue(IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleTenant})
	assert.ErrorIs(t, err, ErrMissingTenantID)
}

func TestJWTService_ValidateErrors(t *testing.T) {
	svc := newTestJWTService()
	valid, _, err := svc.Issue(IssueInput{OrgID: uuid.New(), UserID: uuid.New(), Role: identity.RoleManager})
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-of-32-characters", AccessTokenExpiration: time.Minute, Issuer: "leasepay-test"})
		_, err := other.Validate(valid)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := newTestJWTService()
		other.issuer = "someone-else"
		_, err := other.Validate(valid)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestJWTService()
		later.now = func() time.Time { return time.Now().Add(time.Hour) }
		_, err := later.Validate(valid)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		earlier := newTestJWTService()
		earlier.now = func() time.Time { return time.Now().Add(-time.Hour) }
		_, err := earlier.Validate(valid)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{OrgID: uuid.NewString()}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Validate(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTService_ValidateRequiredClaims(t *testing.T) {
	svc := newTestJWTService()
	sign := func(c *Claims) string {
		c.Issuer = "leasepay-test"
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(svc.secret)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		claims *Claims
		want   error
	}{
		{"missing org", &Claims{UserID: uuid.NewString(), Role: "ADMIN"}, ErrMissingOrgID},
		{"missing user", &Claims{OrgID: uuid.NewString(), Role: "ADMIN"}, ErrMissingUserID},
		{"unknown role", &Claims{OrgID: uuid.NewString(), UserID: uuid.NewString(), Role: "ROOT"}, ErrUnknownRole},
		{"tenant without tenant id", &Claims{OrgID: uuid.NewString(), UserID: uuid.NewString(), Role: "TENANT"}, ErrMissingTenantID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(sign(tt.claims))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClaims_PrincipalInvalidIDs(t *testing.T) {
	_, err := (&Claims{OrgID: "x", UserID: uuid.NewString()}).Principal()
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = (&Claims{OrgID: uuid.NewString(), UserID: uuid.NewString(), TenantID: "bad"}).Principal()
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestClaims_RemainingTTL(t *testing.T) {
	assert.Zero(t, (&Claims{}).RemainingTTL())
	past := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	assert.Zero(t, past.RemainingTTL())
}
