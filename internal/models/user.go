// internal/models/user.go
package models

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// User is an account allowed to use the API.
type User struct {
	BaseModel

	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	Name         string `json:"name"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"not null;default:user" json:"role"`
}
