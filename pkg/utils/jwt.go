package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/minidrive/backend/internal/models"
)

var (
	jwtSecret          = []byte("change-me-in-production")
	jwtExpirationHours = 24
)

var ErrMissingSubject = errors.New("token payload missing subject id")

func ConfigureJWT(secret string, expirationHours int) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if expirationHours > 0 {
		jwtExpirationHours = expirationHours
	}
}

type legacySubject struct {
	ID string `json:"id"`
}

// Claims is the canonical token payload. Tokens issued by earlier iterations
// of the service carried the subject id under "userId", under "id", or nested
// inside a "user" object; ValidateToken accepts those shapes and normalizes
// them into UserID so nothing downstream sees the ambiguity.
type Claims struct {
	UserID uuid.UUID       `json:"userID"`
	Email  string          `json:"email,omitempty"`
	Role   models.UserRole `json:"role"`

	LegacyUserID string         `json:"userId,omitempty"`
	LegacyID     string         `json:"id,omitempty"`
	LegacyUser   *legacySubject `json:"user,omitempty"`

	jwt.RegisteredClaims
}

func (c *Claims) normalizeSubject() error {
	if c.UserID != uuid.Nil {
		return nil
	}

	candidates := []string{c.LegacyUserID, c.LegacyID}
	if c.LegacyUser != nil {
		candidates = append(candidates, c.LegacyUser.ID)
	}
	candidates = append(candidates, c.Subject)

	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		c.UserID = id
		return nil
	}

	return ErrMissingSubject
}

func GenerateToken(user *models.User) (string, error) {
	expiresAt := time.Now().Add(time.Duration(jwtExpirationHours) * time.Hour)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if err := claims.normalizeSubject(); err != nil {
		return nil, err
	}

	return claims, nil
}
