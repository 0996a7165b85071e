package dto

import (
	"time"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// DefenseCreateRequest describes the payload to open a defense evaluation.
type DefenseCreateRequest struct {
	ProposalID uint       `json:"proposal_id" validate:"required,gt=0"`
	Kind       string     `json:"kind" validate:"required,oneof=PRIVADA PUBLICA"`
	Date       *time.Time `json:"date"`
	Time       string     `json:"time" validate:"omitempty,len=5"`
	Room       string     `json:"room" validate:"omitempty,max=128"`
}

// DefenseScheduleRequest carries schedule changes for an existing evaluation.
type DefenseScheduleRequest struct {
	Date *time.Time `json:"date" validate:"required"`
	Time string     `json:"time" validate:"omitempty,len=5"`
	Room string     `json:"room" validate:"omitempty,max=128"`
}

// PanelistAssignRequest adds or re-assigns one juror on a panel. The panel
// role is resolved from the user directory, never from the client.
type PanelistAssignRequest struct {
	UserID    uint   `json:"user_id" validate:"required,gt=0"`
	RoleLabel string `json:"role_label" validate:"omitempty,max=128"`
}

// PanelistScoreRequest records one juror's score for a defense.
type PanelistScoreRequest struct {
	Score   float64 `json:"score" validate:"gte=0,lte=10"`
	Comment string  `json:"comment" validate:"omitempty,max=4000"`
}

// DefenseFinalizeRequest closes an evaluation with an explicit outcome.
type DefenseFinalizeRequest struct {
	Status   string `json:"status" validate:"required,oneof=APROBADA RECHAZADA"`
	Comments string `json:"comments" validate:"omitempty,max=4000"`
}

// PanelistResponse serializes one juror's membership and score.
type PanelistResponse struct {
	UserID    uint     `json:"user_id"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	RoleLabel string   `json:"role_label"`
	Score     *float64 `json:"score"`
	Comment   string   `json:"comment"`
}

// DefenseResponse is returned to API clients when viewing defense evaluations.
type DefenseResponse struct {
	ID          uint               `json:"id"`
	ProposalID  uint               `json:"proposal_id"`
	Kind        string             `json:"kind"`
	Date        *time.Time         `json:"date"`
	Time        string             `json:"time"`
	Room        string             `json:"room"`
	Status      string             `json:"status"`
	Score       *float64           `json:"score"`
	EvaluatedAt *time.Time         `json:"evaluated_at"`
	Comments    string             `json:"comments"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Proposal    ProposalLite       `json:"proposal"`
	Panelists   []PanelistResponse `json:"panelists"`
}

// ProposalLite summarizes a proposal in defense responses.
type ProposalLite struct {
	ID            uint    `json:"id"`
	StudentID     uint    `json:"student_id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	DefenseResult *string `json:"defense_result"`
}

// NewDefenseResponse converts a DefenseEvaluation model into a DTO.
func NewDefenseResponse(model models.DefenseEvaluation) DefenseResponse {
	response := DefenseResponse{
		ID:          model.ID,
		ProposalID:  model.ProposalID,
		Kind:        model.Kind,
		Date:        model.Date,
		Time:        model.Time,
		Room:        model.Room,
		Status:      model.Status,
		Score:       model.Score,
		EvaluatedAt: model.EvaluatedAt,
		Comments:    model.Comments,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if model.Proposal.ID != 0 {
		response.Proposal = ProposalLite{
			ID:            model.Proposal.ID,
			StudentID:     model.Proposal.StudentID,
			Title:         model.Proposal.Title,
			Status:        model.Proposal.Status,
			DefenseResult: model.Proposal.DefenseResult,
		}
	}

	panelists := make([]PanelistResponse, 0, len(model.Panelists))
	for _, panelist := range model.Panelists {
		panelists = append(panelists, PanelistResponse{
			UserID:    panelist.UserID,
			Name:      panelist.User.FullName(),
			Type:      panelist.Type,
			RoleLabel: panelist.RoleLabel,
			Score:     panelist.Score,
			Comment:   panelist.Comment,
		})
	}
	response.Panelists = panelists

	return response
}

// NewDefenseResponseSlice converts defense models into DTOs.
func NewDefenseResponseSlice(models []models.DefenseEvaluation) []DefenseResponse {
	responses := make([]DefenseResponse, 0, len(models))
	for _, evaluation := range models {
		responses = append(responses, NewDefenseResponse(evaluation))
	}

	return responses
}
