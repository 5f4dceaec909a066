package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/codearena/judge-core/internal/models"
)

// ProblemRepository exposes read-only access to problems. Grading reads a
// snapshot of the problem and its ordered test cases.
type ProblemRepository interface {
	GetByID(ctx context.Context, id uint) (models.Problem, error)
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

type problemRepository struct {
	db *gorm.DB
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	err := r.db.WithContext(ctx).
		Preload("TestCases", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&problem, id).Error
	if err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}
