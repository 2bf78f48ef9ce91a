package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/minidrive/backend/internal/models"
	"gorm.io/gorm"
)

// Operation names one thing an actor can try to do to a file. Authorization
// for every route funnels through AccessService.Can so the policy lives in
// one place instead of inline role checks scattered across handlers.
type Operation string

const (
	OperationView          Operation = "view"
	OperationModifySharing Operation = "modify-sharing"
	OperationDelete        Operation = "delete"
)

type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// Can decides whether actor may perform op on file.
//
//	view:            owner, public file, grantee, or admin
//	modify-sharing:  owner only — admin role deliberately does not qualify,
//	                 so an administrator can never widen exposure of another
//	                 user's private content
//	delete:          owner or admin; an orphaned file (owner account removed)
//	                 can therefore only be deleted by an admin
func (a *AccessService) Can(ctx context.Context, actor *models.User, file *models.File, op Operation) bool {
	if actor == nil || file == nil {
		return false
	}

	switch op {
	case OperationView:
		if file.OwnerID == actor.ID || file.IsPublic || actor.Role == models.UserRoleAdmin {
			return true
		}
		return a.isGrantee(ctx, actor.ID, file.ID)
	case OperationModifySharing:
		return file.OwnerID == actor.ID
	case OperationDelete:
		return file.OwnerID == actor.ID || actor.Role == models.UserRoleAdmin
	default:
		return false
	}
}

func (a *AccessService) isGrantee(ctx context.Context, userID, fileID uuid.UUID) bool {
	var count int64
	err := a.DB.WithContext(ctx).
		Model(&models.FileShare{}).
		Where("file_id = ? AND user_id = ?", fileID, userID).
		Count(&count).Error
	return err == nil && count > 0
}

// VisibleFiles lists the files actor may see in their drive: everything for
// an admin, otherwise owned files plus files explicitly shared with them.
// Public visibility alone does not pull a file into someone else's listing.
func (a *AccessService) VisibleFiles(ctx context.Context, actor *models.User) ([]models.File, error) {
	query := a.DB.WithContext(ctx).Order("created_at DESC")

	if actor.Role != models.UserRoleAdmin {
		granted := a.DB.Model(&models.FileShare{}).
			Select("file_id").
			Where("user_id = ?", actor.ID)
		query = query.Where("owner_id = ? OR id IN (?)", actor.ID, granted)
	}

	var files []models.File
	if err := query.Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// SharedWithActor lists only the files other users have shared with actor.
func (a *AccessService) SharedWithActor(ctx context.Context, actor *models.User) ([]models.File, error) {
	granted := a.DB.Model(&models.FileShare{}).
		Select("file_id").
		Where("user_id = ?", actor.ID)

	var files []models.File
	err := a.DB.WithContext(ctx).
		Preload("Owner").
		Where("id IN (?)", granted).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
