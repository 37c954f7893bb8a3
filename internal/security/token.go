package security

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
)

const accessTokenTTL = time.Hour

// UserClaims defines the standard claims for our application
type UserClaims struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Email          string    `json:"email,omitempty"`
	Type           TokenType `json:"type"`
	Roles          []string  `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Organization returns the tenant the token is scoped to, or uuid.Nil if it is not scoped.
func (c *UserClaims) Organization() uuid.UUID {
	id, err := uuid.Parse(c.OrganizationID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

type TokenManager interface {
	GenerateAccessToken(userID, organizationID uuid.UUID, email string, roles []string) (string, error)
	ValidateToken(tokenString string) (*UserClaims, error)
}

type tokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) TokenManager {
	return &tokenManager{
		secret: []byte(secret),
	}
}

func (m *tokenManager) GenerateAccessToken(userID, organizationID uuid.UUID, email string, roles []string) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UserID: userID.String(),
		Email:  email,
		Type:   TokenTypeAccess,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "realty-backend",
			Audience:  jwt.ClaimStrings{"api-access"},
			ID:        uuid.NewString(),
		},
	}
	if organizationID != uuid.Nil {
		claims.OrganizationID = organizationID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// BearerToken strips an optional "Bearer " prefix from an Authorization header value
func BearerToken(header string) string {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// MatchesSecret reports whether presented equals one of the non-empty secrets.
func MatchesSecret(presented string, secrets ...string) bool {
	if presented == "" {
		return false
	}
	matched := false
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 {
			matched = true
		}
	}
	return matched
}
