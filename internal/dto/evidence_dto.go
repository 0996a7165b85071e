package dto

import (
	"time"

	"github.com/uide-dev/titulacion-api/internal/models"
)

// EvidenceSubmitRequest describes the multipart payload for an evidence upload.
type EvidenceSubmitRequest struct {
	ActivityID uint   `form:"activity_id" validate:"required,gt=0"`
	Week       int    `form:"week" validate:"required,gte=1,lte=16"`
	Content    string `form:"content" validate:"omitempty,max=4000"`
}

// EvidenceGradeRequest is used by a tutor or integration instructor to grade
// one evidence on their own review track. A null score clears the track back
// to PENDIENTE.
type EvidenceGradeRequest struct {
	Score    *float64 `json:"score" validate:"omitempty,gte=0,lte=10"`
	Feedback string   `json:"feedback" validate:"omitempty,max=4000"`
}

// ReviewCommentResponse serializes one audit trail entry on an evidence.
type ReviewCommentResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// EvidenceResponse is returned to API clients when viewing evidences.
type EvidenceResponse struct {
	ID         uint   `json:"id"`
	ActivityID uint   `json:"activity_id"`
	Week       int    `json:"week"`
	Content    string `json:"content"`
	FileURL    string `json:"file_url"`
	Status     string `json:"status"`

	TutorScore        *float64   `json:"tutor_score"`
	TutorFeedback     string     `json:"tutor_feedback"`
	TutorReviewStatus string     `json:"tutor_review_status"`
	TutorReviewedAt   *time.Time `json:"tutor_reviewed_at"`

	InstructorScore        *float64   `json:"instructor_score"`
	InstructorFeedback     string     `json:"instructor_feedback"`
	InstructorReviewStatus string     `json:"instructor_review_status"`
	InstructorReviewedAt   *time.Time `json:"instructor_reviewed_at"`

	CombinedScore    *float64 `json:"combined_score"`
	TutorWeight      float64  `json:"tutor_weight"`
	InstructorWeight float64  `json:"instructor_weight"`

	SubmittedAt time.Time               `json:"submitted_at"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	Comments    []ReviewCommentResponse `json:"comments,omitempty"`
}

// NewEvidenceResponse converts an Evidence model into a DTO.
func NewEvidenceResponse(model models.Evidence) EvidenceResponse {
	response := EvidenceResponse{
		ID:         model.ID,
		ActivityID: model.ActivityID,
		Week:       model.Week,
		Content:    model.Content,
		FileURL:    model.FileURL,
		Status:     model.Status,

		TutorScore:        model.TutorScore,
		TutorFeedback:     model.TutorFeedback,
		TutorReviewStatus: model.TutorReviewStatus,
		TutorReviewedAt:   model.TutorReviewedAt,

		InstructorScore:        model.InstructorScore,
		InstructorFeedback:     model.InstructorFeedback,
		InstructorReviewStatus: model.InstructorReviewStatus,
		InstructorReviewedAt:   model.InstructorReviewedAt,

		CombinedScore:    model.CombinedScore,
		TutorWeight:      model.TutorWeight,
		InstructorWeight: model.InstructorWeight,

		SubmittedAt: model.SubmittedAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if len(model.Comments) > 0 {
		comments := make([]ReviewCommentResponse, 0, len(model.Comments))
		for _, comment := range model.Comments {
			comments = append(comments, ReviewCommentResponse{
				ID:        comment.ID,
				UserID:    comment.UserID,
				Author:    comment.User.FullName(),
				Body:      comment.Body,
				CreatedAt: comment.CreatedAt,
			})
		}
		response.Comments = comments
	}

	return response
}

// NewEvidenceResponseSlice converts evidence models into DTOs.
func NewEvidenceResponseSlice(models []models.Evidence) []EvidenceResponse {
	responses := make([]EvidenceResponse, 0, len(models))
	for _, evidence := range models {
		responses = append(responses, NewEvidenceResponse(evidence))
	}

	return responses
}

// WeeklySlot is one position of the sixteen-week grading grid. Several
// activities can share a week, so a slot retains every evidence entry.
type WeeklySlot struct {
	Week    int                `json:"week"`
	Entries []EvidenceResponse `json:"entries"`
}

// WeeklySummaryResponse aggregates a proposal's term into sixteen weekly
// slots plus the running average of instructor scores.
type WeeklySummaryResponse struct {
	ProposalID uint         `json:"proposal_id"`
	Weeks      []WeeklySlot `json:"weeks"`
	Average    *float64     `json:"average"`
}
