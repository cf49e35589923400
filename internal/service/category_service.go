package service

import (
	"errors"
	"strings"

	"github.com/peptidepress/internal/db"
	"gorm.io/gorm"
)

// CategoryService wraps category related operations.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// List returns all categories ordered by label.
func (s *CategoryService) List() ([]db.Category, error) {
	var categories []db.Category
	if err := s.db.Order("label asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Ensure 在分类不存在时创建它。重复创建（包括并发运行撞到同一
// 新分类）是预期情况，由调用方决定是否忽略错误。
func (s *CategoryService) Ensure(slug, label string) error {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return errors.New("category slug is required")
	}
	if strings.TrimSpace(label) == "" {
		label = slug
	}

	var existing db.Category
	err := s.db.Where("slug = ?", slug).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.db.Create(&db.Category{Slug: slug, Label: label}).Error
}
