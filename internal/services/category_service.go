package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/models"
)

// CategoryService is plain per-user CRUD over transaction categories.
type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

type CategoryInput struct {
	Name  string `json:"name" binding:"required"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (s *CategoryService) CreateCategory(userID uint, in CategoryInput) (*models.Category, error) {
	category := models.Category{
		UserID: userID,
		Name:   in.Name,
		Type:   in.Type,
		Color:  in.Color,
		Icon:   in.Icon,
	}
	if err := s.db.Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) ListCategories(userID uint) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.Where("user_id = ?", userID).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *CategoryService) GetCategory(userID, categoryID uint) (*models.Category, error) {
	var category models.Category
	err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("category not found")
	} else if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *CategoryService) UpdateCategory(userID, categoryID uint, in CategoryInput) (*models.Category, error) {
	category, err := s.GetCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}
	err = s.db.Model(category).Updates(map[string]interface{}{
		"name":  in.Name,
		"type":  in.Type,
		"color": in.Color,
		"icon":  in.Icon,
	}).Error
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) DeleteCategory(userID, categoryID uint) error {
	category, err := s.GetCategory(userID, categoryID)
	if err != nil {
		return err
	}
	// Transactions keep running with a dangling category reference; the
	// column is nullable and listings tolerate it.
	return s.db.Delete(category).Error
}
