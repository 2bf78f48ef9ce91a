package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/minidrive/backend/internal/models"
)

func TestGenerateAndValidateMFAToken(t *testing.T) {
	configureJWTForTest(t, "mfa-secret", 24)

	userID := uuid.New()
	token, err := GenerateMFAToken(userID, "test@example.com")
	if err != nil {
		t.Fatalf("failed to generate MFA token: %v", err)
	}

	claims, err := ValidateMFAToken(token)
	if err != nil {
		t.Fatalf("failed to validate MFA token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected userID %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "test@example.com" {
		t.Fatalf("expected email test@example.com, got %s", claims.Email)
	}
	if claims.TokenType != "mfa_challenge" {
		t.Fatalf("expected token type mfa_challenge, got %s", claims.TokenType)
	}
	if claims.JTI == "" {
		t.Fatal("expected a non-empty JTI")
	}
}

func TestValidateMFAToken_RejectsSessionToken(t *testing.T) {
	configureJWTForTest(t, "mfa-secret", 24)

	user := &models.User{
		BaseModel: models.BaseModel{ID: uuid.New()},
		Email:     "test@example.com",
		Role:      models.UserRoleUser,
	}

	sessionToken, err := GenerateToken(user)
	if err != nil {
		t.Fatalf("failed to generate session token: %v", err)
	}

	if _, err := ValidateMFAToken(sessionToken); err == nil {
		t.Fatal("expected a session token to be rejected as an MFA token")
	}

	if _, err := ValidateMFAToken("some-invalid-token"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}

func TestJTIConsumption(t *testing.T) {
	jti := uuid.New().String()

	if !IsJTIValid(jti) {
		t.Fatal("fresh JTI should be valid")
	}

	ConsumeJTI(jti)

	if IsJTIValid(jti) {
		t.Fatal("consumed JTI should no longer be valid")
	}

	CleanupExpiredJTIs()

	if IsJTIValid(jti) {
		t.Fatal("recently consumed JTI should survive cleanup")
	}
}
