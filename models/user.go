package models

import "gorm.io/gorm"

// User owns every other aggregate in the system. All service operations
// are scoped by the user id carried in the JWT.
type User struct {
	gorm.Model
	Name         string `json:"name"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
}
