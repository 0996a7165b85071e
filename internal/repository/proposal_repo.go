package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// ProposalRepository defines data operations for titulación proposals.
type ProposalRepository interface {
	GetByID(ctx context.Context, id uint) (models.Proposal, error)
	GetByStudent(ctx context.Context, studentID uint) (models.Proposal, error)
	Create(ctx context.Context, proposal *models.Proposal) error
	Update(ctx context.Context, proposal *models.Proposal) error
}

type proposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository instantiates the repository.
func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Proposal{}).
		Preload("Student")
}

func (r *proposalRepository) GetByID(ctx context.Context, id uint) (models.Proposal, error) {
	var proposal models.Proposal
	if err := r.baseQuery(ctx).First(&proposal, id).Error; err != nil {
		return models.Proposal{}, err
	}

	return proposal, nil
}

func (r *proposalRepository) GetByStudent(ctx context.Context, studentID uint) (models.Proposal, error) {
	var proposal models.Proposal
	if err := r.baseQuery(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&proposal).Error; err != nil {
		return models.Proposal{}, err
	}

	return proposal, nil
}

func (r *proposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *proposalRepository) Update(ctx context.Context, proposal *models.Proposal) error {
	return r.db.WithContext(ctx).Save(proposal).Error
}
