package auth

import "errors"

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

var ErrForbidden = errors.New("forbidden")

// Session is the authenticated caller. Services take it explicitly instead
// of reading ambient state.
type Session struct {
	UserID string
	Roles  []string
}

func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s Session) IsAdmin() bool { return s.HasRole(RoleAdmin) }

// CanManageDoctor reports whether the caller may edit the doctor's schedule:
// admins always, doctors only their own.
func (s Session) CanManageDoctor(doctorID string) bool {
	if s.IsAdmin() {
		return true
	}
	return s.HasRole(RoleDoctor) && s.UserID != "" && s.UserID == doctorID
}

// CanActForPatient reports whether the caller may book or cancel on behalf
// of the patient.
func (s Session) CanActForPatient(patientID string) bool {
	if s.IsAdmin() {
		return true
	}
	return s.HasRole(RolePatient) && s.UserID != "" && s.UserID == patientID
}
