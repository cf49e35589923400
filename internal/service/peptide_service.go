package service

import (
	"github.com/peptidepress/internal/db"
	"gorm.io/gorm"
)

// PeptideService 提供肽目录的只读访问。
type PeptideService struct {
	db *gorm.DB
}

// NewPeptideService creates a PeptideService instance.
func NewPeptideService(gdb *gorm.DB) *PeptideService {
	return &PeptideService{db: gdb}
}

// List returns the full catalog ordered by name.
func (s *PeptideService) List() ([]db.Peptide, error) {
	var peptides []db.Peptide
	if err := s.db.Order("name asc").Find(&peptides).Error; err != nil {
		return nil, err
	}
	return peptides, nil
}
