package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// PrerequisiteRepository defines data operations for the prerequisite catalog
// and per-student fulfilment records.
type PrerequisiteRepository interface {
	ListItems(ctx context.Context, activeOnly bool) ([]models.PrerequisiteItem, error)
	GetItem(ctx context.Context, id uint) (models.PrerequisiteItem, error)
	CreateItem(ctx context.Context, item *models.PrerequisiteItem) error
	CountActiveItems(ctx context.Context) (int64, error)

	ListRecordsByStudent(ctx context.Context, studentID uint) ([]models.PrerequisiteRecord, error)
	GetRecord(ctx context.Context, studentID, prerequisiteID uint) (models.PrerequisiteRecord, error)
	UpsertRecord(ctx context.Context, record *models.PrerequisiteRecord) error
	UpdateRecord(ctx context.Context, record *models.PrerequisiteRecord) error
	CountFulfilled(ctx context.Context, studentID uint) (int64, error)
}

type prerequisiteRepository struct {
	db *gorm.DB
}

// NewPrerequisiteRepository instantiates the repository.
func NewPrerequisiteRepository(db *gorm.DB) PrerequisiteRepository {
	return &prerequisiteRepository{db: db}
}

func (r *prerequisiteRepository) ListItems(ctx context.Context, activeOnly bool) ([]models.PrerequisiteItem, error) {
	query := r.db.WithContext(ctx).Model(&models.PrerequisiteItem{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var items []models.PrerequisiteItem
	if err := query.Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}

func (r *prerequisiteRepository) GetItem(ctx context.Context, id uint) (models.PrerequisiteItem, error) {
	var item models.PrerequisiteItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return models.PrerequisiteItem{}, err
	}

	return item, nil
}

func (r *prerequisiteRepository) CreateItem(ctx context.Context, item *models.PrerequisiteItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *prerequisiteRepository) CountActiveItems(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PrerequisiteItem{}).
		Where("active = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *prerequisiteRepository) ListRecordsByStudent(ctx context.Context, studentID uint) ([]models.PrerequisiteRecord, error) {
	var records []models.PrerequisiteRecord
	if err := r.db.WithContext(ctx).
		Preload("Prerequisite").
		Where("student_id = ?", studentID).
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *prerequisiteRepository) GetRecord(ctx context.Context, studentID, prerequisiteID uint) (models.PrerequisiteRecord, error) {
	var record models.PrerequisiteRecord
	if err := r.db.WithContext(ctx).
		Preload("Prerequisite").
		Where("student_id = ? AND prerequisite_id = ?", studentID, prerequisiteID).
		First(&record).Error; err != nil {
		return models.PrerequisiteRecord{}, err
	}

	return record, nil
}

// UpsertRecord inserts the record or, when the (student, prerequisite) pair
// already exists, refreshes the upload on the existing row. A replacement
// document invalidates any earlier staff validation: the record goes back to
// unfulfilled until staff reviews the new file.
func (r *prerequisiteRepository) UpsertRecord(ctx context.Context, record *models.PrerequisiteRecord) error {
	var existing models.PrerequisiteRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND prerequisite_id = ?", record.StudentID, record.PrerequisiteID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(record).Error
	}
	if err != nil {
		return err
	}

	existing.FileURL = record.FileURL
	existing.Fulfilled = false
	existing.FulfilledAt = nil
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return err
	}

	*record = existing
	return nil
}

func (r *prerequisiteRepository) UpdateRecord(ctx context.Context, record *models.PrerequisiteRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *prerequisiteRepository) CountFulfilled(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PrerequisiteRecord{}).
		Joins("JOIN prerequisite_items ON prerequisite_items.id = prerequisite_records.prerequisite_id").
		Where("prerequisite_records.student_id = ?", studentID).
		Where("prerequisite_records.fulfilled = ?", true).
		Where("prerequisite_items.active = ?", true).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
