package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity is a gradable unit under a proposal: either a tutoring-track or
// an instruction-track task. Evidence submissions hang off an activity.
type Activity struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ProposalID    uint           `gorm:"not null;index" json:"proposal_id"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Type          string         `gorm:"size:16;not null;default:DOCENCIA" json:"type"`
	Week          *int           `json:"week"`
	ActivatedAt   *time.Time     `json:"activated_at"`
	DueAt         *time.Time     `json:"due_at"`
	RequiredItems datatypes.JSON `json:"required_items"`
	Status        string         `gorm:"size:16;not null;default:NO_ENTREGADO" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Proposal      Proposal       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"proposal"`
	Evidences     []Evidence     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"evidences"`
}

// Activity tracks.
const (
	ActivityTypeTutoring    = "TUTORIA"
	ActivityTypeInstruction = "DOCENCIA"
)

// Activity submission states.
const (
	ActivityStatusNotSubmitted = "NO_ENTREGADO"
	ActivityStatusSubmitted    = "ENTREGADO"
)

// MaxActivitiesPerProposal caps how many activities one proposal may carry.
const MaxActivitiesPerProposal = 64

// IsOverdue reports whether the activity's deadline has passed.
func (a Activity) IsOverdue(now time.Time) bool {
	return a.DueAt != nil && a.DueAt.Before(now)
}
