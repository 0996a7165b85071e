package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// ActivityFilter allows narrowing activity queries.
type ActivityFilter struct {
	ProposalID *uint
	Type       *string
	Status     *string
}

// ActivityRepository defines data operations for gradable activities.
type ActivityRepository interface {
	List(ctx context.Context, filter ActivityFilter) ([]models.Activity, error)
	ListByProposalOrdered(ctx context.Context, proposalID uint) ([]models.Activity, error)
	GetByID(ctx context.Context, id uint) (models.Activity, error)
	CountByProposal(ctx context.Context, proposalID uint) (int64, error)
	Create(ctx context.Context, activity *models.Activity) error
	Update(ctx context.Context, activity *models.Activity) error
	Delete(ctx context.Context, id uint) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository instantiates the repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Activity{}).
		Preload("Evidences").
		Preload("Evidences.Comments").
		Preload("Evidences.Comments.User")
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]models.Activity, error) {
	query := r.baseQuery(ctx)

	if filter.ProposalID != nil {
		query = query.Where("proposal_id = ?", *filter.ProposalID)
	}

	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var activities []models.Activity
	if err := query.Order("created_at ASC").Find(&activities).Error; err != nil {
		return nil, err
	}

	return activities, nil
}

// ListByProposalOrdered returns the proposal's activities in creation order.
// The ordinal position doubles as the week fallback when an activity has no
// explicit week assigned.
func (r *activityRepository) ListByProposalOrdered(ctx context.Context, proposalID uint) ([]models.Activity, error) {
	var activities []models.Activity
	if err := r.baseQuery(ctx).
		Where("proposal_id = ?", proposalID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&activities).Error; err != nil {
		return nil, err
	}

	return activities, nil
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.baseQuery(ctx).Preload("Proposal").First(&activity, id).Error; err != nil {
		return models.Activity{}, err
	}

	return activity, nil
}

func (r *activityRepository) CountByProposal(ctx context.Context, proposalID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Activity{}).
		Where("proposal_id = ?", proposalID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) Update(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Save(activity).Error
}

func (r *activityRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Activity{}, id).Error
}
