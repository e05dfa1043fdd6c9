package auth

import "testing"

func TestSession_CanManageDoctor(t *testing.T) {
	tests := []struct {
		name   string
		sess   Session
		doctor string
		want   bool
	}{
		{"own schedule", Session{UserID: "d-1", Roles: []string{RoleDoctor}}, "d-1", true},
		{"other doctor", Session{UserID: "d-1", Roles: []string{RoleDoctor}}, "d-2", false},
		{"admin", Session{UserID: "a-1", Roles: []string{RoleAdmin}}, "d-2", true},
		{"patient with same id", Session{UserID: "d-1", Roles: []string{RolePatient}}, "d-1", false},
		{"anonymous", Session{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.CanManageDoctor(tt.doctor); got != tt.want {
				t.Errorf("CanManageDoctor(%q) = %v, want %v", tt.doctor, got, tt.want)
			}
		})
	}
}

func TestSession_CanActForPatient(t *testing.T) {
	patient := Session{UserID: "p-1", Roles: []string{RolePatient}}
	if !patient.CanActForPatient("p-1") {
		t.Error("patient should act for themselves")
	}
	if patient.CanActForPatient("p-2") {
		t.Error("patient should not act for someone else")
	}
	doctor := Session{UserID: "p-1", Roles: []string{RoleDoctor}}
	if doctor.CanActForPatient("p-1") {
		t.Error("doctor role should not book as patient")
	}
	admin := Session{UserID: "a", Roles: []string{RoleAdmin}}
	if !admin.CanActForPatient("p-2") {
		t.Error("admin should act for any patient")
	}
}
