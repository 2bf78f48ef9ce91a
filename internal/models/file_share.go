package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileShare grants one user view access to one file. Grants are keyed by the
// stable user id, not the email the owner typed, so a grant survives an email
// change. The composite unique index makes repeated invites a no-op at the
// store level; the owner is never a grantee of their own file.
//
// It does not embed BaseModel: revoked grants are removed outright, so the
// unique index stays free for a later re-invite.
type FileShare struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time `json:"createdAt"`
	FileID      uuid.UUID `json:"fileID" gorm:"type:uuid;not null;index;uniqueIndex:idx_file_grantee"`
	UserID      uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_file_grantee"`
	InvitedByID uuid.UUID `json:"invitedByID" gorm:"type:uuid;not null"`

	File      File `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
	User      User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
	InvitedBy User `json:"invitedBy,omitempty" gorm:"foreignKey:InvitedByID;references:ID"`
}

func (FileShare) TableName() string {
	return "file_shares"
}

func (s *FileShare) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
