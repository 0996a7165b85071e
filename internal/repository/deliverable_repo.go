package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// DeliverableRepository defines data operations for versioned final documents.
type DeliverableRepository interface {
	ListByProposal(ctx context.Context, proposalID uint, activeOnly bool) ([]models.Deliverable, error)
	GetActive(ctx context.Context, proposalID uint, docType string) (models.Deliverable, error)
	ReplaceActive(ctx context.Context, deliverable *models.Deliverable) error
	CountActiveByTypes(ctx context.Context, proposalID uint, types []string) (int64, error)
}

type deliverableRepository struct {
	db *gorm.DB
}

// NewDeliverableRepository instantiates the repository.
func NewDeliverableRepository(db *gorm.DB) DeliverableRepository {
	return &deliverableRepository{db: db}
}

func (r *deliverableRepository) ListByProposal(ctx context.Context, proposalID uint, activeOnly bool) ([]models.Deliverable, error) {
	query := r.db.WithContext(ctx).Model(&models.Deliverable{}).
		Where("proposal_id = ?", proposalID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var deliverables []models.Deliverable
	if err := query.Order("type ASC, version DESC").Find(&deliverables).Error; err != nil {
		return nil, err
	}

	return deliverables, nil
}

func (r *deliverableRepository) GetActive(ctx context.Context, proposalID uint, docType string) (models.Deliverable, error) {
	var deliverable models.Deliverable
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ? AND type = ? AND active = ?", proposalID, docType, true).
		First(&deliverable).Error; err != nil {
		return models.Deliverable{}, err
	}

	return deliverable, nil
}

// ReplaceActive deactivates the current active version of the same type and
// inserts the new row with the next version number, atomically.
func (r *deliverableRepository) ReplaceActive(ctx context.Context, deliverable *models.Deliverable) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Deliverable
		err := tx.Where("proposal_id = ? AND type = ? AND active = ?",
			deliverable.ProposalID, deliverable.Type, true).
			First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			deliverable.Version = 1
		case err != nil:
			return err
		default:
			current.Active = false
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
			deliverable.Version = current.Version + 1
		}

		deliverable.Active = true
		return tx.Create(deliverable).Error
	})
}

func (r *deliverableRepository) CountActiveByTypes(ctx context.Context, proposalID uint, types []string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Deliverable{}).
		Distinct("type").
		Where("proposal_id = ? AND active = ?", proposalID, true).
		Where("type IN ?", types).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
