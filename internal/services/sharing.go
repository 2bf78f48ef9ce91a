package services

import (
	"context"
	"errors"
	"strings"

	"github.com/minidrive/backend/internal/models"
	"github.com/minidrive/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	// ErrUnknownPrincipal means the invited email does not belong to a
	// registered account. Grants are keyed by user id, so a target must
	// exist before it can be invited.
	ErrUnknownPrincipal = errors.New("unknown principal")

	// ErrOwnerGrant means the owner tried to share a file with themselves.
	ErrOwnerGrant = errors.New("owner cannot be a grantee")
)

// SharingService mutates a file's sharing state: explicit per-user grants and
// the public flag. The two are independent axes; toggling public never touches
// the grant set. Callers are responsible for owner-gating via AccessService.
type SharingService struct {
	DB *gorm.DB
}

func NewSharingService(db *gorm.DB) *SharingService {
	return &SharingService{DB: db}
}

// Invite grants view access on file to the account registered under email.
// Inviting an existing grantee is a no-op and returns the existing grant.
func (s *SharingService) Invite(ctx context.Context, actor *models.User, file *models.File, email string) (*models.FileShare, error) {
	target, err := s.resolvePrincipal(ctx, email)
	if err != nil {
		return nil, err
	}

	if target.ID == file.OwnerID {
		return nil, ErrOwnerGrant
	}

	var existing models.FileShare
	err = s.DB.WithContext(ctx).
		First(&existing, "file_id = ? AND user_id = ?", file.ID, target.ID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	share := models.FileShare{
		FileID:      file.ID,
		UserID:      target.ID,
		InvitedByID: actor.ID,
	}
	if err := s.DB.WithContext(ctx).Create(&share).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(actor.ID.String(), "share_invited", map[string]interface{}{
		"file_id":    file.ID.String(),
		"grantee_id": target.ID.String(),
	})

	return &share, nil
}

// Revoke removes email's grant on file. Revoking an absent or unknown
// grantee is a no-op, so invite followed by revoke always restores the
// prior share set.
func (s *SharingService) Revoke(ctx context.Context, actor *models.User, file *models.File, email string) error {
	target, err := s.resolvePrincipal(ctx, email)
	if errors.Is(err, ErrUnknownPrincipal) {
		return nil
	}
	if err != nil {
		return err
	}

	result := s.DB.WithContext(ctx).
		Where("file_id = ? AND user_id = ?", file.ID, target.ID).
		Delete(&models.FileShare{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		logger.InfoWithUser(actor.ID.String(), "share_revoked", map[string]interface{}{
			"file_id":    file.ID.String(),
			"grantee_id": target.ID.String(),
		})
	}

	return nil
}

// TogglePublic flips the file's public flag and returns the new value.
func (s *SharingService) TogglePublic(ctx context.Context, actor *models.User, file *models.File) (bool, error) {
	newValue := !file.IsPublic
	err := s.DB.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ?", file.ID).
		Update("is_public", newValue).Error
	if err != nil {
		return file.IsPublic, err
	}
	file.IsPublic = newValue

	logger.InfoWithUser(actor.ID.String(), "file_visibility_toggled", map[string]interface{}{
		"file_id":   file.ID.String(),
		"is_public": newValue,
	})

	return newValue, nil
}

// Grantees lists the current grants on file with the grantee users preloaded.
func (s *SharingService) Grantees(ctx context.Context, file *models.File) ([]models.FileShare, error) {
	var shares []models.FileShare
	err := s.DB.WithContext(ctx).
		Preload("User").
		Where("file_id = ?", file.ID).
		Order("created_at ASC").
		Find(&shares).Error
	if err != nil {
		return nil, err
	}
	return shares, nil
}

func (s *SharingService) resolvePrincipal(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrUnknownPrincipal
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownPrincipal
		}
		return nil, err
	}
	return &user, nil
}
