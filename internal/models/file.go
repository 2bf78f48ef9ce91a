package models

import "github.com/google/uuid"

// File is the metadata record for one stored object. Name, URL, MimeType and
// Size are fixed at upload time; only IsPublic and the share set change
// afterwards, and only at the owner's hand.
type File struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	MimeType    string    `json:"mimeType" gorm:"type:varchar(255);not null"`
	Size        int64     `json:"size" gorm:"not null;default:0"`
	OwnerID     uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`
	StoragePath string    `json:"-" gorm:"type:text;not null"`
	URL         string    `json:"url" gorm:"type:text;not null"`
	IsPublic    bool      `json:"isPublic" gorm:"not null;default:false;index"`

	Owner  User        `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Shares []FileShare `json:"-" gorm:"foreignKey:FileID"`
}
