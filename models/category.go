package models

import "gorm.io/gorm"

// Category labels transactions for reporting purposes.
type Category struct {
	gorm.Model
	UserID uint   `json:"userId" gorm:"not null;index"`
	User   User   `json:"-" gorm:"foreignKey:UserID"`
	Name   string `json:"name" gorm:"not null"`
	Type   string `json:"type"`
	Color  string `json:"color"`
	Icon   string `json:"icon"`
}
