package models

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

type User struct {
	BaseModel
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string   `json:"name" gorm:"type:varchar(100)"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'user'"`

	Files  []File      `json:"-" gorm:"foreignKey:OwnerID"`
	Shares []FileShare `json:"-" gorm:"foreignKey:UserID"`
}
