package models

import "time"

// Proposal is a student's titulación project record. Each student owns at
// most one active proposal; the final defense outcome is written back here
// once the public defense is decided.
type Proposal struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentID     uint      `gorm:"not null;index" json:"student_id"`
	TutorID       *uint     `json:"tutor_id"`
	Title         string    `gorm:"size:512;not null" json:"title"`
	KnowledgeArea string    `gorm:"size:255" json:"knowledge_area"`
	Status        string    `gorm:"size:32;not null;default:PENDIENTE" json:"status"`
	DefenseResult *string   `gorm:"size:16" json:"defense_result"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Student       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Tutor         *User     `gorm:"foreignKey:TutorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"tutor"`
}

// Proposal lifecycle states.
const (
	ProposalStatusPending              = "PENDIENTE"
	ProposalStatusApproved             = "APROBADA"
	ProposalStatusApprovedWithComments = "APROBADA_CON_COMENTARIOS"
	ProposalStatusRejected             = "RECHAZADA"
)

// Final defense outcomes stored on the proposal.
const (
	DefenseResultPassed = "APROBADO"
	DefenseResultFailed = "REPROBADO"
)
