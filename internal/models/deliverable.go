package models

import "time"

// Deliverable is a versioned final document (thesis, user manual, article)
// uploaded for a proposal. At most one version per (proposal, type) is
// active at any time; uploads supersede the previous active version.
type Deliverable struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProposalID uint      `gorm:"not null;index" json:"proposal_id"`
	Type       string    `gorm:"size:32;not null" json:"type"`
	FileURL    string    `gorm:"size:512;not null" json:"file_url"`
	Version    int       `gorm:"not null;default:1" json:"version"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Proposal   Proposal  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"proposal"`
}

// Final deliverable types required before defense scheduling.
const (
	DeliverableTypeThesis     = "TESIS"
	DeliverableTypeUserManual = "MANUAL_USUARIO"
	DeliverableTypeArticle    = "ARTICULO"
)

// RequiredDeliverableTypes lists the document types a proposal needs an
// active version of before the defense stage unlocks.
var RequiredDeliverableTypes = []string{DeliverableTypeThesis, DeliverableTypeUserManual, DeliverableTypeArticle}
