package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/minidrive/backend/internal/models"
	"github.com/pquerna/otp/totp"
)

func totpCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("failed generating TOTP code: %v", err)
	}
	return code
}

func setupEnabledMFA(t *testing.T, env *testEnv, token string) string {
	t.Helper()

	setupResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/setup", map[string]string{}, authHeaders(token))
	assertStatus(t, setupResp, http.StatusOK)
	secret, _ := dataField(t, decodeJSONMap(t, setupResp))["secret"].(string)
	if secret == "" {
		t.Fatal("expected TOTP secret from setup")
	}

	activateResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/activate", map[string]string{
		"code": totpCode(t, secret),
	}, authHeaders(token))
	assertStatus(t, activateResp, http.StatusOK)

	return secret
}

func TestMFASetupAndActivate(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)

	secret := setupEnabledMFA(t, env, token)
	if secret == "" {
		t.Fatal("expected a secret")
	}

	var cfg models.MFAConfig
	if err := env.db.First(&cfg, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("expected MFA config row: %v", err)
	}
	if !cfg.TOTPEnabled {
		t.Error("expected TOTP enabled after activation")
	}
	if cfg.TOTPSecret == secret {
		t.Error("TOTP secret must be stored encrypted, not in the clear")
	}
	if cfg.TOTPVerifiedAt == nil {
		t.Error("expected verification timestamp")
	}

	// A second setup while enabled is refused.
	again := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/setup", map[string]string{}, authHeaders(token))
	assertStatus(t, again, http.StatusConflict)
}

func TestMFAActivateRejectsWrongCode(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)

	setupResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/setup", map[string]string{}, authHeaders(token))
	assertStatus(t, setupResp, http.StatusOK)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/activate", map[string]string{
		"code": "000000",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestLoginWithMFA(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)
	secret := setupEnabledMFA(t, env, token)

	loginResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)

	loginData := dataField(t, decodeJSONMap(t, loginResp))
	if loginData["mfaRequired"] != true {
		t.Fatalf("expected mfaRequired, got %+v", loginData)
	}
	if _, hasToken := loginData["token"]; hasToken {
		t.Fatal("login must not hand out a session token before the TOTP step")
	}

	mfaToken, _ := loginData["mfaToken"].(string)
	verifyResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/verify", map[string]string{
		"mfaToken": mfaToken,
		"code":     totpCode(t, secret),
	}, nil)
	assertStatus(t, verifyResp, http.StatusOK)

	sessionToken, _ := dataField(t, decodeJSONMap(t, verifyResp))["token"].(string)
	if sessionToken == "" {
		t.Fatal("expected session token after MFA verification")
	}

	meResp := performRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(sessionToken))
	assertStatus(t, meResp, http.StatusOK)

	// The challenge token is single use.
	replay := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/verify", map[string]string{
		"mfaToken": mfaToken,
		"code":     totpCode(t, secret),
	}, nil)
	assertStatus(t, replay, http.StatusUnauthorized)
}

func TestMFAVerifyRejectsWrongCode(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)
	setupEnabledMFA(t, env, token)

	loginResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	}, nil)
	assertStatus(t, loginResp, http.StatusOK)
	mfaToken, _ := dataField(t, decodeJSONMap(t, loginResp))["mfaToken"].(string)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/verify", map[string]string{
		"mfaToken": mfaToken,
		"code":     "000000",
	}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)

	// Session tokens are not valid challenge tokens.
	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/verify", map[string]string{
		"mfaToken": token,
		"code":     "000000",
	}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestMFADisable(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "alice@example.com", "password123", models.UserRoleUser)
	secret := setupEnabledMFA(t, env, token)

	t.Run("wrong password refused", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/disable", map[string]string{
			"password": "wrong",
			"code":     totpCode(t, secret),
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("disable and login without challenge", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/mfa/disable", map[string]string{
			"password": "password123",
			"code":     totpCode(t, secret),
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)

		var count int64
		env.db.Model(&models.MFAConfig{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected MFA config removed, found %d rows", count)
		}

		loginResp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "password123",
		}, nil)
		assertStatus(t, loginResp, http.StatusOK)
		loginData := dataField(t, decodeJSONMap(t, loginResp))
		if loginData["token"] == nil || loginData["token"] == "" {
			t.Error("expected a direct session token after disabling TOTP")
		}
	})
}
