package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/identity"
	"github.com/leasepay/backend/internal/infrastructure/config"
)

// Token validation errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingOrgID     = errors.New("missing org_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrUnknownRole      = errors.New("unknown role in claims")
	ErrMissingTenantID  = errors.New("tenant role requires tenant_id in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims are the access token claims. TenantID is set for TENANT-role
// users and names the renter they act as.
type Claims struct {
	jwt.RegisteredClaims
	OrgID    string `json:"org_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
}

// Principal is the caller identity parsed out of validated claims
type Principal struct {
	OrgID    uuid.UUID
	UserID   uuid.UUID
	Role     identity.Role
	TenantID *uuid.UUID
}

// Capabilities returns the capability set of the principal's role
func (p Principal) Capabilities() identity.CapabilitySet {
	return identity.CapabilitiesFor(p.Role)
}

// Principal parses the string claims
func (c *Claims) Principal() (Principal, error) {
	orgID, err := uuid.Parse(c.OrgID)
	if err != nil {
		return Principal{}, ErrInvalidClaims
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return Principal{}, ErrInvalidClaims
	}
	p := Principal{OrgID: orgID, UserID: userID, Role: identity.Role(c.Role)}
	if c.TenantID != "" {
		tenantID, err := uuid.Parse(c.TenantID)
		if err != nil {
			return Principal{}, ErrInvalidClaims
		}
		p.TenantID = &tenantID
	}
	return p, nil
}

// RemainingTTL returns the time until the token expires, or zero
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}

// JWTService signs and validates HS256 access tokens
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewJWTService creates a JWTService from configuration
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
}

// IssueInput describes the principal a token is issued for
type IssueInput struct {
	OrgID    uuid.UUID
	UserID   uuid.UUID
	Role     identity.Role
	TenantID *uuid.UUID
}

// Issue signs an access token and returns it with its expiry
func (s *JWTService) Issue(in IssueInput) (string, time.Time, error) {
	if !in.Role.IsValid() {
		return "", time.Time{}, ErrUnknownRole
	}
	if in.Role == identity.RoleTenant && in.TenantID == nil {
		return "", time.Time{}, ErrMissingTenantID
	}

	now := s.now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   in.UserID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrgID:  in.OrgID.String(),
		UserID: in.UserID.String(),
		Role:   string(in.Role),
	}
	if in.TenantID != nil {
		claims.TenantID = in.TenantID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks signature, time window, issuer and required claims
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	switch {
	case claims.OrgID == "":
		return nil, ErrMissingOrgID
	case claims.UserID == "":
		return nil, ErrMissingUserID
	case !identity.Role(claims.Role).IsValid():
		return nil, ErrUnknownRole
	case identity.Role(claims.Role) == identity.RoleTenant && claims.TenantID == "":
		return nil, ErrMissingTenantID
	}
	return claims, nil
}

// Expiration returns the configured token lifetime
func (s *JWTService) Expiration() time.Duration {
	return s.expiration
}
