package models

import "time"

// PrerequisiteItem is a catalog entry every student must fulfil before a
// proposal can be created (language certification, internship hours, ...).
type PrerequisiteItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Position    int       `gorm:"not null;default:1" json:"position"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PrerequisiteRecord tracks one student's fulfilment of one catalog entry.
// The student's upload never sets Fulfilled; only staff validation does.
type PrerequisiteRecord struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	StudentID      uint             `gorm:"not null;uniqueIndex:idx_student_prerequisite" json:"student_id"`
	PrerequisiteID uint             `gorm:"not null;uniqueIndex:idx_student_prerequisite" json:"prerequisite_id"`
	FileURL        string           `gorm:"size:512" json:"file_url"`
	Fulfilled      bool             `gorm:"not null;default:false" json:"fulfilled"`
	FulfilledAt    *time.Time       `json:"fulfilled_at"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Prerequisite   PrerequisiteItem `gorm:"foreignKey:PrerequisiteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"prerequisite"`
	Student        User             `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
