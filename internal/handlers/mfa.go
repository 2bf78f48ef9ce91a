package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minidrive/backend/internal/middleware"
	"github.com/minidrive/backend/internal/models"
	"github.com/minidrive/backend/pkg/logger"
	"github.com/minidrive/backend/pkg/utils"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

type MFAHandler struct {
	DB *gorm.DB
}

func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{DB: db}
}

// UserHasMFA reports whether login for this account must go through a TOTP
// challenge.
func UserHasMFA(db *gorm.DB, userID uuid.UUID) bool {
	var cfg models.MFAConfig
	if err := db.First(&cfg, "user_id = ?", userID).Error; err != nil {
		return false
	}
	return cfg.TOTPEnabled
}

// Setup generates a fresh TOTP secret for the caller and stores it encrypted
// but disabled. The secret only becomes active once Activate sees a valid
// code, proving the authenticator app holds it.
func (h *MFAHandler) Setup(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var existing models.MFAConfig
	err := h.DB.First(&existing, "user_id = ?", user.ID).Error
	if err == nil && existing.TOTPEnabled {
		return utils.Error(c, fiber.StatusConflict, "TOTP is already enabled")
	}

	key, keyErr := totp.Generate(totp.GenerateOpts{
		Issuer:      "MiniDrive",
		AccountName: user.Email,
	})
	if keyErr != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to generate TOTP secret")
	}

	encryptedSecret, encErr := utils.EncryptAESGCM(key.Secret())
	if encErr != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to encrypt TOTP secret")
	}

	if err == nil {
		updateErr := h.DB.Model(&existing).Updates(map[string]interface{}{
			"totp_secret":      encryptedSecret,
			"totp_enabled":     false,
			"totp_verified_at": nil,
		}).Error
		if updateErr != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to update TOTP config")
		}
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg := models.MFAConfig{
			UserID:     user.ID,
			TOTPSecret: encryptedSecret,
		}
		if err := h.DB.Create(&cfg).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to save TOTP config")
		}
	} else {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading TOTP config")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"secret": key.Secret(),
		"qrUri":  key.URL(),
	})
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

func (h *MFAHandler) Activate(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req totpCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "code is required")
	}

	var cfg models.MFAConfig
	if err := h.DB.First(&cfg, "user_id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "TOTP setup not started")
	}
	if cfg.TOTPEnabled {
		return utils.Error(c, fiber.StatusConflict, "TOTP is already enabled")
	}

	secret, err := utils.DecryptAESGCM(cfg.TOTPSecret)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading TOTP config")
	}

	if !totp.Validate(req.Code, secret) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid code")
	}

	now := time.Now()
	err = h.DB.Model(&cfg).Updates(map[string]interface{}{
		"totp_enabled":     true,
		"totp_verified_at": &now,
	}).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed enabling TOTP")
	}

	logger.InfoWithUser(user.ID.String(), "mfa_enabled", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"totpEnabled": true})
}

type mfaVerifyRequest struct {
	MFAToken string `json:"mfaToken"`
	Code     string `json:"code"`
}

// Verify completes a login that Login answered with mfaRequired. The
// challenge token is single use; a correct TOTP code exchanges it for a
// regular session token.
func (h *MFAHandler) Verify(c *fiber.Ctx) error {
	var req mfaVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.MFAToken == "" || req.Code == "" {
		return utils.Error(c, fiber.StatusBadRequest, "mfaToken and code are required")
	}

	claims, err := utils.ValidateMFAToken(req.MFAToken)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired MFA token")
	}
	if !utils.IsJTIValid(claims.JTI) {
		return utils.Error(c, fiber.StatusUnauthorized, "MFA token already used")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	var cfg models.MFAConfig
	if err := h.DB.First(&cfg, "user_id = ?", user.ID).Error; err != nil || !cfg.TOTPEnabled {
		return utils.Error(c, fiber.StatusBadRequest, "TOTP is not enabled for this account")
	}

	secret, err := utils.DecryptAESGCM(cfg.TOTPSecret)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading TOTP config")
	}

	if !totp.Validate(req.Code, secret) {
		logger.WarnWithUser(user.ID.String(), "mfa_code_rejected", map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid code")
	}

	utils.ConsumeJTI(claims.JTI)

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_login_mfa", map[string]interface{}{
		"ip": c.IP(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

type mfaDisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (h *MFAHandler) Disable(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req mfaDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return utils.Error(c, fiber.StatusBadRequest, "password is incorrect")
	}

	var cfg models.MFAConfig
	if err := h.DB.First(&cfg, "user_id = ?", user.ID).Error; err != nil || !cfg.TOTPEnabled {
		return utils.Error(c, fiber.StatusBadRequest, "TOTP is not enabled")
	}

	secret, err := utils.DecryptAESGCM(cfg.TOTPSecret)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading TOTP config")
	}
	if !totp.Validate(req.Code, secret) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid code")
	}

	// Hard delete so the unique user_id index is free if TOTP is set up again.
	if err := h.DB.Unscoped().Delete(&cfg).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed disabling TOTP")
	}

	logger.InfoWithUser(user.ID.String(), "mfa_disabled", nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"totpEnabled": false})
}
