package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// CommentRepository handles persistence for evidence audit comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.ReviewComment) error
	ListByEvidence(ctx context.Context, evidenceID uint) ([]models.ReviewComment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository constructs a repository backed by GORM.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.ReviewComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) ListByEvidence(ctx context.Context, evidenceID uint) ([]models.ReviewComment, error) {
	var comments []models.ReviewComment
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("evidence_id = ?", evidenceID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}

	return comments, nil
}
