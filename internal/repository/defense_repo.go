package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// DefenseRepository defines data operations for defense evaluations and panels.
type DefenseRepository interface {
	GetByID(ctx context.Context, id uint) (models.DefenseEvaluation, error)
	GetByProposalAndKind(ctx context.Context, proposalID uint, kind string) (models.DefenseEvaluation, error)
	ListByProposal(ctx context.Context, proposalID uint) ([]models.DefenseEvaluation, error)
	ListForJuror(ctx context.Context, userID uint) ([]models.DefenseEvaluation, error)
	Create(ctx context.Context, evaluation *models.DefenseEvaluation) error
	Update(ctx context.Context, evaluation *models.DefenseEvaluation) error

	UpsertPanelist(ctx context.Context, panelist *models.DefensePanelist) error
	GetPanelist(ctx context.Context, evaluationID, userID uint) (models.DefensePanelist, error)
	ListPanelists(ctx context.Context, evaluationID uint) ([]models.DefensePanelist, error)
	UpdatePanelist(ctx context.Context, panelist *models.DefensePanelist) error
}

type defenseRepository struct {
	db *gorm.DB
}

// NewDefenseRepository instantiates the repository.
func NewDefenseRepository(db *gorm.DB) DefenseRepository {
	return &defenseRepository{db: db}
}

func (r *defenseRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.DefenseEvaluation{}).
		Preload("Proposal").
		Preload("Panelists").
		Preload("Panelists.User")
}

func (r *defenseRepository) GetByID(ctx context.Context, id uint) (models.DefenseEvaluation, error) {
	var evaluation models.DefenseEvaluation
	if err := r.baseQuery(ctx).First(&evaluation, id).Error; err != nil {
		return models.DefenseEvaluation{}, err
	}

	return evaluation, nil
}

func (r *defenseRepository) GetByProposalAndKind(ctx context.Context, proposalID uint, kind string) (models.DefenseEvaluation, error) {
	var evaluation models.DefenseEvaluation
	if err := r.baseQuery(ctx).
		Where("proposal_id = ? AND kind = ?", proposalID, kind).
		First(&evaluation).Error; err != nil {
		return models.DefenseEvaluation{}, err
	}

	return evaluation, nil
}

func (r *defenseRepository) ListByProposal(ctx context.Context, proposalID uint) ([]models.DefenseEvaluation, error) {
	var evaluations []models.DefenseEvaluation
	if err := r.baseQuery(ctx).
		Where("proposal_id = ?", proposalID).
		Order("kind ASC").
		Find(&evaluations).Error; err != nil {
		return nil, err
	}

	return evaluations, nil
}

// ListForJuror returns the evaluations where the user sits on the panel.
func (r *defenseRepository) ListForJuror(ctx context.Context, userID uint) ([]models.DefenseEvaluation, error) {
	var evaluations []models.DefenseEvaluation
	if err := r.baseQuery(ctx).
		Joins("JOIN defense_panelists ON defense_panelists.evaluation_id = defense_evaluations.id").
		Where("defense_panelists.user_id = ?", userID).
		Order("defense_evaluations.created_at DESC").
		Find(&evaluations).Error; err != nil {
		return nil, err
	}

	return evaluations, nil
}

func (r *defenseRepository) Create(ctx context.Context, evaluation *models.DefenseEvaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *defenseRepository) Update(ctx context.Context, evaluation *models.DefenseEvaluation) error {
	return r.db.WithContext(ctx).Save(evaluation).Error
}

// UpsertPanelist inserts the membership or, when the (evaluation, user) pair
// already exists, refreshes the panel type and label on the existing row.
func (r *defenseRepository) UpsertPanelist(ctx context.Context, panelist *models.DefensePanelist) error {
	var existing models.DefensePanelist
	err := r.db.WithContext(ctx).
		Where("evaluation_id = ? AND user_id = ?", panelist.EvaluationID, panelist.UserID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(panelist).Error
	}
	if err != nil {
		return err
	}

	existing.Type = panelist.Type
	existing.RoleLabel = panelist.RoleLabel
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}

	*panelist = existing
	return nil
}

func (r *defenseRepository) GetPanelist(ctx context.Context, evaluationID, userID uint) (models.DefensePanelist, error) {
	var panelist models.DefensePanelist
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("evaluation_id = ? AND user_id = ?", evaluationID, userID).
		First(&panelist).Error; err != nil {
		return models.DefensePanelist{}, err
	}

	return panelist, nil
}

func (r *defenseRepository) ListPanelists(ctx context.Context, evaluationID uint) ([]models.DefensePanelist, error) {
	var panelists []models.DefensePanelist
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("evaluation_id = ?", evaluationID).
		Order("created_at ASC").
		Find(&panelists).Error; err != nil {
		return nil, err
	}

	return panelists, nil
}

func (r *defenseRepository) UpdatePanelist(ctx context.Context, panelist *models.DefensePanelist) error {
	return r.db.WithContext(ctx).Save(panelist).Error
}
