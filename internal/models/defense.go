package models

import "time"

// DefenseEvaluation is one phase of the oral defense (private or public) for
// a proposal. Exactly one evaluation exists per (proposal, kind); the public
// evaluation starts BLOQUEADA and is unlocked by an approved private one.
type DefenseEvaluation struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ProposalID  uint              `gorm:"not null;uniqueIndex:idx_proposal_kind" json:"proposal_id"`
	Kind        string            `gorm:"size:16;not null;uniqueIndex:idx_proposal_kind" json:"kind"`
	Date        *time.Time        `json:"date"`
	Time        string            `gorm:"size:8" json:"time"`
	Room        string            `gorm:"size:128" json:"room"`
	Status      string            `gorm:"size:16;not null;default:PENDIENTE" json:"status"`
	Score       *float64          `json:"score"`
	EvaluatedAt *time.Time        `json:"evaluated_at"`
	Comments    string            `gorm:"type:text" json:"comments"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Proposal    Proposal          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"proposal"`
	Panelists   []DefensePanelist `gorm:"foreignKey:EvaluationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"panelists"`
}

// Defense kinds.
const (
	DefenseKindPrivate = "PRIVADA"
	DefenseKindPublic  = "PUBLICA"
)

// Defense lifecycle states.
const (
	DefenseStatusPending   = "PENDIENTE"
	DefenseStatusScheduled = "PROGRAMADA"
	DefenseStatusHeld      = "REALIZADA"
	DefenseStatusApproved  = "APROBADA"
	DefenseStatusRejected  = "RECHAZADA"
	DefenseStatusBlocked   = "BLOQUEADA"
)

// DefensePassingScore is the aggregate threshold for approval.
const DefensePassingScore = 7.0

// IsApproved reports whether the evaluation passed, either by state or by
// aggregate score.
func (d DefenseEvaluation) IsApproved() bool {
	if d.Status == DefenseStatusApproved {
		return true
	}
	return d.Score != nil && *d.Score >= DefensePassingScore
}

// IsScheduled reports whether the evaluation has a concrete date.
func (d DefenseEvaluation) IsScheduled() bool {
	return d.Date != nil
}

// DefensePanelist is one juror's membership in a defense panel, keyed by
// (evaluation, user). Re-assignment updates the row in place.
type DefensePanelist struct {
	EvaluationID uint      `gorm:"primaryKey;autoIncrement:false" json:"evaluation_id"`
	UserID       uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Type         string    `gorm:"size:32;not null" json:"type"`
	RoleLabel    string    `gorm:"size:128" json:"role_label"`
	Score        *float64  `json:"score"`
	Comment      string    `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
}
