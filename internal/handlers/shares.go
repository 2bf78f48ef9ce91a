package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/minidrive/backend/internal/middleware"
	"github.com/minidrive/backend/internal/models"
	"github.com/minidrive/backend/internal/services"
	"github.com/minidrive/backend/pkg/utils"
	"gorm.io/gorm"
)

type SharesHandler struct {
	DB      *gorm.DB
	Access  *services.AccessService
	Sharing *services.SharingService
}

func NewSharesHandler(db *gorm.DB, access *services.AccessService, sharing *services.SharingService) *SharesHandler {
	return &SharesHandler{DB: db, Access: access, Sharing: sharing}
}

// loadOwnedFile resolves the :id file and enforces the owner-exclusive
// sharing right. Admins get a 403 here like everyone else.
func (h *SharesHandler) loadOwnedFile(c *fiber.Ctx) (*models.File, error) {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return nil, utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	var file models.File
	if err := h.DB.First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	if !h.Access.Can(c.Context(), currentUser, &file, services.OperationModifySharing) {
		return nil, utils.Error(c, fiber.StatusForbidden, "only the owner can manage sharing")
	}

	return &file, nil
}

type shareRequest struct {
	Email string `json:"email"`
}

func (h *SharesHandler) Invite(c *fiber.Ctx) error {
	file, err := h.loadOwnedFile(c)
	if err != nil {
		return err
	}

	var req shareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}

	currentUser := middleware.GetCurrentUser(c)
	share, err := h.Sharing.Invite(c.Context(), currentUser, file, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownPrincipal):
			return utils.Error(c, fiber.StatusBadRequest, "no account registered under that email")
		case errors.Is(err, services.ErrOwnerGrant):
			return utils.Error(c, fiber.StatusBadRequest, "cannot share a file with its owner")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed creating share")
		}
	}

	return utils.Success(c, fiber.StatusCreated, share)
}

func (h *SharesHandler) Revoke(c *fiber.Ctx) error {
	file, err := h.loadOwnedFile(c)
	if err != nil {
		return err
	}

	var req shareRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}

	currentUser := middleware.GetCurrentUser(c)
	if err := h.Sharing.Revoke(c.Context(), currentUser, file, req.Email); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed revoking share")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "share revoked"})
}

func (h *SharesHandler) ToggleVisibility(c *fiber.Ctx) error {
	file, err := h.loadOwnedFile(c)
	if err != nil {
		return err
	}

	currentUser := middleware.GetCurrentUser(c)
	isPublic, err := h.Sharing.TogglePublic(c.Context(), currentUser, file)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed toggling visibility")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"isPublic": isPublic})
}

func (h *SharesHandler) ListFileShares(c *fiber.Ctx) error {
	file, err := h.loadOwnedFile(c)
	if err != nil {
		return err
	}

	shares, err := h.Sharing.Grantees(c.Context(), file)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shares")
	}

	return utils.Success(c, fiber.StatusOK, shares)
}

func (h *SharesHandler) ListSharedWithMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	files, err := h.Access.SharedWithActor(c.Context(), currentUser)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shared files")
	}

	return utils.Success(c, fiber.StatusOK, files)
}
