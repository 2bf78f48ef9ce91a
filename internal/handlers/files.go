package handlers

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minidrive/backend/internal/middleware"
	"github.com/minidrive/backend/internal/models"
	"github.com/minidrive/backend/internal/services"
	"github.com/minidrive/backend/internal/storage"
	"github.com/minidrive/backend/pkg/logger"
	"github.com/minidrive/backend/pkg/utils"
	"gorm.io/gorm"
)

const downloadURLExpiry = 15 * time.Minute

type FilesHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
	Access  *services.AccessService
}

func NewFilesHandler(db *gorm.DB, storageClient *storage.MinIOClient, access *services.AccessService) *FilesHandler {
	return &FilesHandler{DB: db, Storage: storageClient, Access: access}
}

// loadFile fetches the record for the :id route param. Existence is resolved
// before any authorization so a 404 never reveals more than "no such id".
func (h *FilesHandler) loadFile(c *fiber.Ctx) (*models.File, error) {
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

	return &file, nil
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s/%s", currentUser.ID.String(), uuid.New().String(), filename)
	result, err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	// New files start private with no grantees.
	entry := models.File{
		Name:        filename,
		MimeType:    result.ContentType,
		Size:        result.Size,
		OwnerID:     currentUser.ID,
		StoragePath: objectName,
		URL:         result.URL,
		IsPublic:    false,
	}

	if err := h.DB.Create(&entry).Error; err != nil {
		_ = h.Storage.Delete(c.Context(), objectName)
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":   entry.ID.String(),
		"file_name": filename,
		"file_size": entry.Size,
		"mime_type": entry.MimeType,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *FilesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	files, err := h.Access.VisibleFiles(c.Context(), currentUser)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, files)
}

// ListAll is the admin audit listing: every file, owners preloaded, including
// orphans whose owner account is gone.
func (h *FilesHandler) ListAll(c *fiber.Ctx) error {
	var files []models.File
	err := h.DB.Preload("Owner").Order("created_at DESC").Find(&files).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}

	return utils.Success(c, fiber.StatusOK, files)
}

func (h *FilesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, err := h.loadFile(c)
	if err != nil {
		return err
	}

	if !h.Access.Can(c.Context(), currentUser, file, services.OperationView) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	return utils.Success(c, fiber.StatusOK, file)
}

// PublicGet serves a file record without requiring authentication. A token,
// when present, can only widen access (owner, grantee, admin); a private file
// is otherwise reported as private, never detailed.
func (h *FilesHandler) PublicGet(c *fiber.Ctx) error {
	file, err := h.loadFile(c)
	if err != nil {
		return err
	}

	if !file.IsPublic {
		caller := middleware.GetCurrentUser(c)
		if caller == nil || !h.Access.Can(c.Context(), caller, file, services.OperationView) {
			return utils.Error(c, fiber.StatusForbidden, "file is private")
		}
	}

	return utils.Success(c, fiber.StatusOK, file)
}

func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, err := h.loadFile(c)
	if err != nil {
		return err
	}

	if !h.Access.Can(c.Context(), currentUser, file, services.OperationView) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	obj, err := h.Storage.Download(c.Context(), file.StoragePath)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	c.Set("Content-Type", file.MimeType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.SendStream(obj, int(file.Size))
}

func (h *FilesHandler) DownloadURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, err := h.loadFile(c)
	if err != nil {
		return err
	}

	if !h.Access.Can(c.Context(), currentUser, file, services.OperationView) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	disposition := fmt.Sprintf("attachment; filename=%q", file.Name)
	url, err := h.Storage.PresignedGetURL(c.Context(), file.StoragePath, downloadURLExpiry, file.MimeType, disposition)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating download URL")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":       url,
		"expiresIn": int(downloadURLExpiry.Seconds()),
	})
}

func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	file, err := h.loadFile(c)
	if err != nil {
		return err
	}

	if !h.Access.Can(c.Context(), currentUser, file, services.OperationDelete) {
		return utils.Error(c, fiber.StatusForbidden, "insufficient permissions")
	}

	// The stored object is removed best-effort; a stale object is preferable
	// to a record the owner can no longer delete.
	if file.StoragePath != "" {
		if err := h.Storage.Delete(c.Context(), file.StoragePath); err != nil {
			logger.ErrorWithUser(currentUser.ID.String(), "file_object_delete_failed", err, map[string]interface{}{
				"file_id": file.ID.String(),
			})
		}
	}

	if err := h.DB.Where("file_id = ?", file.ID).Delete(&models.FileShare{}).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing file grants")
	}
	if err := h.DB.Delete(file).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"file_id":   file.ID.String(),
		"file_name": file.Name,
		"by_owner":  file.OwnerID == currentUser.ID,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "file deleted"})
}
