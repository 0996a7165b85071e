package models

import "time"

// User is a member of the titulación process directory.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FirstName  string    `gorm:"size:128;not null" json:"first_name"`
	LastName   string    `gorm:"size:128;not null" json:"last_name"`
	Email      string    `gorm:"size:255;uniqueIndex" json:"email"`
	NationalID string    `gorm:"size:32;uniqueIndex" json:"national_id"`
	Role       string    `gorm:"size:32;not null" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// System roles. The set is closed: every authorization decision matches
// against these values, never against client-supplied strings.
const (
	RoleStudent     = "ESTUDIANTE"
	RoleTutor       = "TUTOR"
	RoleInstructor  = "DOCENTE_INTEGRACION"
	RoleCommittee   = "COMITE"
	RoleDirector    = "DIRECTOR"
	RoleCoordinator = "COORDINADOR"
)

// StaffRoles may schedule defenses, assign panelists and override outcomes.
var StaffRoles = []string{RoleDirector, RoleCoordinator}

// PanelEligibleRoles may sit on a defense panel.
var PanelEligibleRoles = []string{RoleTutor, RoleCommittee, RoleDirector, RoleCoordinator}

// IsStaffRole reports whether the role may perform administrative defense operations.
func IsStaffRole(role string) bool {
	for _, r := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsPanelEligibleRole reports whether a user with this role may join a defense panel.
func IsPanelEligibleRole(role string) bool {
	for _, r := range PanelEligibleRoles {
		if r == role {
			return true
		}
	}
	return false
}

// FullName joins the user's names for notification messages.
func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
