package dto

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// ActivityCreateRequest describes the payload to register a gradable activity.
type ActivityCreateRequest struct {
	ProposalID    uint       `json:"proposal_id" validate:"required,gt=0"`
	Name          string     `json:"name" validate:"required,min=3,max=255"`
	Description   string     `json:"description" validate:"omitempty,max=2000"`
	Type          string     `json:"type" validate:"required,oneof=TUTORIA DOCENCIA"`
	Week          *int       `json:"week" validate:"omitempty,gte=1,lte=16"`
	DueAt         *time.Time `json:"due_at"`
	RequiredItems []string   `json:"required_items" validate:"omitempty,dive,min=1"`
}

// ActivityUpdateRequest carries partial updates for an activity.
type ActivityUpdateRequest struct {
	Name          *string    `json:"name" validate:"omitempty,min=3,max=255"`
	Description   *string    `json:"description" validate:"omitempty,max=2000"`
	Week          *int       `json:"week" validate:"omitempty,gte=1,lte=16"`
	DueAt         *time.Time `json:"due_at"`
	RequiredItems []string   `json:"required_items" validate:"omitempty,dive,min=1"`
}

// ActivityFilter describes query string filters for listing activities.
type ActivityFilter struct {
	ProposalID *uint   `query:"proposal_id"`
	Type       *string `query:"type" validate:"omitempty,oneof=TUTORIA DOCENCIA"`
	Status     *string `query:"status" validate:"omitempty,oneof=ENTREGADO NO_ENTREGADO"`
}

// ActivityResponse is returned to API clients when viewing activities.
type ActivityResponse struct {
	ID            uint               `json:"id"`
	ProposalID    uint               `json:"proposal_id"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	Type          string             `json:"type"`
	Week          *int               `json:"week"`
	ActivatedAt   *time.Time         `json:"activated_at"`
	DueAt         *time.Time         `json:"due_at"`
	RequiredItems []string           `json:"required_items"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Evidences     []EvidenceResponse `json:"evidences,omitempty"`
}

// NewActivityResponse converts an Activity model into a DTO.
func NewActivityResponse(model models.Activity) ActivityResponse {
	response := ActivityResponse{
		ID:            model.ID,
		ProposalID:    model.ProposalID,
		Name:          model.Name,
		Description:   model.Description,
		Type:          model.Type,
		Week:          model.Week,
		ActivatedAt:   model.ActivatedAt,
		DueAt:         model.DueAt,
		RequiredItems: decodeRequiredItems(model.RequiredItems),
		Status:        model.Status,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}

	if len(model.Evidences) > 0 {
		response.Evidences = NewEvidenceResponseSlice(model.Evidences)
	}

	return response
}

// NewActivityResponseSlice converts activity models into DTOs.
func NewActivityResponseSlice(models []models.Activity) []ActivityResponse {
	responses := make([]ActivityResponse, 0, len(models))
	for _, activity := range models {
		responses = append(responses, NewActivityResponse(activity))
	}

	return responses
}

// EncodeRequiredItems serializes a checklist into the JSON column format.
func EncodeRequiredItems(items []string) datatypes.JSON {
	if len(items) == 0 {
		return nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return datatypes.JSON(payload)
}

func decodeRequiredItems(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}
