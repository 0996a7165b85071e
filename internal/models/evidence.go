package models

import "time"

// Evidence is one weekly submission under an activity. It carries two
// independent review tracks (tutor and integration instructor); the combined
// score exists only once both tracks have been graded.
type Evidence struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ActivityID uint   `gorm:"not null;index" json:"activity_id"`
	Week       int    `gorm:"not null" json:"week"`
	Content    string `gorm:"type:text" json:"content"`
	FileURL    string `gorm:"size:512" json:"file_url"`
	Status     string `gorm:"size:16;not null;default:ENTREGADO" json:"status"`

	TutorScore        *float64   `json:"tutor_score"`
	TutorFeedback     string     `gorm:"type:text" json:"tutor_feedback"`
	TutorReviewStatus string     `gorm:"size:16;not null;default:PENDIENTE" json:"tutor_review_status"`
	TutorReviewedAt   *time.Time `json:"tutor_reviewed_at"`

	InstructorScore        *float64   `json:"instructor_score"`
	InstructorFeedback     string     `gorm:"type:text" json:"instructor_feedback"`
	InstructorReviewStatus string     `gorm:"size:16;not null;default:PENDIENTE" json:"instructor_review_status"`
	InstructorReviewedAt   *time.Time `json:"instructor_reviewed_at"`

	CombinedScore    *float64 `json:"combined_score"`
	TutorWeight      float64  `gorm:"not null;default:0.5" json:"tutor_weight"`
	InstructorWeight float64  `gorm:"not null;default:0.5" json:"instructor_weight"`

	SubmittedAt time.Time       `json:"submitted_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Activity    Activity        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"activity"`
	Comments    []ReviewComment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"comments"`
}

// Evidence submission states.
const (
	EvidenceStatusSubmitted    = "ENTREGADO"
	EvidenceStatusNotSubmitted = "NO_ENTREGADO"
)

// Per-track review states. A track is APROBADO exactly when it holds a score.
const (
	ReviewStatusApproved = "APROBADO"
	ReviewStatusPending  = "PENDIENTE"
)

// Valid week range for weekly evidence.
const (
	MinEvidenceWeek = 1
	MaxEvidenceWeek = 16
)

// WeeksPerTerm is the number of weekly slots in one academic term.
const WeeksPerTerm = 16

// CombineScores computes the weighted final grade, or nil while either
// track is still ungraded.
func CombineScores(tutor, instructor *float64, tutorWeight, instructorWeight float64) *float64 {
	if tutor == nil || instructor == nil {
		return nil
	}
	combined := *tutor*tutorWeight + *instructor*instructorWeight
	return &combined
}

// RecomputeCombined refreshes the stored combined score from the two tracks.
func (e *Evidence) RecomputeCombined() {
	e.CombinedScore = CombineScores(e.TutorScore, e.InstructorScore, e.TutorWeight, e.InstructorWeight)
}
