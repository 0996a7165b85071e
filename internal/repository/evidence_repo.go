package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// EvidenceRepository defines data operations for weekly evidences.
type EvidenceRepository interface {
	GetByID(ctx context.Context, id uint) (models.Evidence, error)
	ListByActivity(ctx context.Context, activityID uint) ([]models.Evidence, error)
	ListByProposal(ctx context.Context, proposalID uint) ([]models.Evidence, error)
	CountByActivity(ctx context.Context, activityID uint) (int64, error)
	Create(ctx context.Context, evidence *models.Evidence) error
	Update(ctx context.Context, evidence *models.Evidence) error
}

type evidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository instantiates the repository.
func NewEvidenceRepository(db *gorm.DB) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Evidence{}).
		Preload("Comments").
		Preload("Comments.User")
}

func (r *evidenceRepository) GetByID(ctx context.Context, id uint) (models.Evidence, error) {
	var evidence models.Evidence
	if err := r.baseQuery(ctx).Preload("Activity").First(&evidence, id).Error; err != nil {
		return models.Evidence{}, err
	}

	return evidence, nil
}

func (r *evidenceRepository) ListByActivity(ctx context.Context, activityID uint) ([]models.Evidence, error) {
	var evidences []models.Evidence
	if err := r.baseQuery(ctx).
		Where("activity_id = ?", activityID).
		Order("week ASC").
		Find(&evidences).Error; err != nil {
		return nil, err
	}

	return evidences, nil
}

// ListByProposal joins through activities to collect every evidence in the
// proposal's term, ordered by week.
func (r *evidenceRepository) ListByProposal(ctx context.Context, proposalID uint) ([]models.Evidence, error) {
	var evidences []models.Evidence
	if err := r.db.WithContext(ctx).Model(&models.Evidence{}).
		Joins("JOIN activities ON activities.id = evidences.activity_id").
		Where("activities.proposal_id = ?", proposalID).
		Order("evidences.week ASC").
		Find(&evidences).Error; err != nil {
		return nil, err
	}

	return evidences, nil
}

func (r *evidenceRepository) CountByActivity(ctx context.Context, activityID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Evidence{}).
		Where("activity_id = ?", activityID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *evidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	return r.db.WithContext(ctx).Create(evidence).Error
}

func (r *evidenceRepository) Update(ctx context.Context, evidence *models.Evidence) error {
	return r.db.WithContext(ctx).Save(evidence).Error
}
