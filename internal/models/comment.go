package models

import "time"

// ReviewComment is an audit trail entry attached to an evidence: grading
// feedback and student submission notes are mirrored here attributed to the
// user who wrote them.
type ReviewComment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EvidenceID uint      `gorm:"not null;index" json:"evidence_id"`
	UserID     uint      `gorm:"not null" json:"user_id"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
}
