package dto

import (
	"time"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// PrerequisiteUploadRequest describes the multipart payload for a prerequisite document.
type PrerequisiteUploadRequest struct {
	PrerequisiteID uint `form:"prerequisite_id" validate:"required,gt=0"`
}

// PrerequisiteValidateRequest is used by staff to accept or reject a record.
type PrerequisiteValidateRequest struct {
	Fulfilled bool `json:"fulfilled"`
}

// PrerequisiteItemResponse serializes one catalog entry.
type PrerequisiteItemResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Active      bool   `json:"active"`
}

// PrerequisiteRecordResponse serializes a student's fulfilment of one entry.
type PrerequisiteRecordResponse struct {
	ID             uint                     `json:"id"`
	StudentID      uint                     `json:"student_id"`
	PrerequisiteID uint                     `json:"prerequisite_id"`
	FileURL        string                   `json:"file_url"`
	Fulfilled      bool                     `json:"fulfilled"`
	FulfilledAt    *time.Time               `json:"fulfilled_at"`
	Prerequisite   PrerequisiteItemResponse `json:"prerequisite"`
}

// NewPrerequisiteItemResponse converts a catalog model into a DTO.
func NewPrerequisiteItemResponse(model models.PrerequisiteItem) PrerequisiteItemResponse {
	return PrerequisiteItemResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		Position:    model.Position,
		Active:      model.Active,
	}
}

// NewPrerequisiteRecordResponse converts a record model into a DTO.
func NewPrerequisiteRecordResponse(model models.PrerequisiteRecord) PrerequisiteRecordResponse {
	response := PrerequisiteRecordResponse{
		ID:             model.ID,
		StudentID:      model.StudentID,
		PrerequisiteID: model.PrerequisiteID,
		FileURL:        model.FileURL,
		Fulfilled:      model.Fulfilled,
		FulfilledAt:    model.FulfilledAt,
	}

	if model.Prerequisite.ID != 0 {
		response.Prerequisite = NewPrerequisiteItemResponse(model.Prerequisite)
	}

	return response
}

// NewPrerequisiteRecordResponseSlice converts record models into DTOs.
func NewPrerequisiteRecordResponseSlice(models []models.PrerequisiteRecord) []PrerequisiteRecordResponse {
	responses := make([]PrerequisiteRecordResponse, 0, len(models))
	for _, record := range models {
		responses = append(responses, NewPrerequisiteRecordResponse(record))
	}

	return responses
}

// ProposalEligibilityResponse reports whether a student may create a proposal.
type ProposalEligibilityResponse struct {
	CanCreate         bool   `json:"can_create"`
	Fulfilled         int    `json:"fulfilled"`
	TotalRequirements int    `json:"total_requirements"`
	Message           string `json:"message"`
}

// DeliverableUploadRequest describes the multipart payload for a final document.
type DeliverableUploadRequest struct {
	ProposalID uint   `form:"proposal_id" validate:"required,gt=0"`
	Type       string `form:"type" validate:"required,oneof=TESIS MANUAL_USUARIO ARTICULO"`
}

// DeliverableResponse serializes one versioned final document.
type DeliverableResponse struct {
	ID         uint      `json:"id"`
	ProposalID uint      `json:"proposal_id"`
	Type       string    `json:"type"`
	FileURL    string    `json:"file_url"`
	Version    int       `json:"version"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDeliverableResponse converts a Deliverable model into a DTO.
func NewDeliverableResponse(model models.Deliverable) DeliverableResponse {
	return DeliverableResponse{
		ID:         model.ID,
		ProposalID: model.ProposalID,
		Type:       model.Type,
		FileURL:    model.FileURL,
		Version:    model.Version,
		Active:     model.Active,
		CreatedAt:  model.CreatedAt,
	}
}

// NewDeliverableResponseSlice converts deliverable models into DTOs.
func NewDeliverableResponseSlice(models []models.Deliverable) []DeliverableResponse {
	responses := make([]DeliverableResponse, 0, len(models))
	for _, deliverable := range models {
		responses = append(responses, NewDeliverableResponse(deliverable))
	}

	return responses
}

// UnlockStatusResponse reports how close a proposal is to the defense stage.
// The evidence and deliverable conditions are reported independently.
type UnlockStatusResponse struct {
	ProposalID           uint     `json:"proposal_id"`
	ApprovedEvidences    int      `json:"approved_evidences"`
	EvidenceComplete     bool     `json:"evidence_complete"`
	DeliverablesComplete bool     `json:"deliverables_complete"`
	MissingDeliverables  []string `json:"missing_deliverables"`
	Unlocked             bool     `json:"unlocked"`
}
