package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codearena/judge-core/internal/models"
)

// ContestRepository exposes read-only access to contests and their ordered
// problem lists.
type ContestRepository interface {
	GetByID(ctx context.Context, id uint) (models.Contest, error)
}

// NewContestRepository constructs a contest repository.
func NewContestRepository(db *gorm.DB) ContestRepository {
	return &contestRepository{db: db}
}

type contestRepository struct {
	db *gorm.DB
}

func (r *contestRepository) GetByID(ctx context.Context, id uint) (models.Contest, error) {
	var contest models.Contest
	err := r.db.WithContext(ctx).
		Preload("Problems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&contest, id).Error
	if err != nil {
		return models.Contest{}, err
	}
	return contest, nil
}
