package auth

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"NoticeHub/internal/audience"
)

// Role labels used across the portals.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleTeacher  = "teacher"
	RoleStudent  = "student"
	RoleGuardian = "guardian"
)

type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Number        string               `bson:"number"` // School-issued id, unique
	Name          string               `bson:"name"`
	Email         string               `bson:"email"`
	PasswordHash  string               `bson:"password_hash"`
	Role          string               `bson:"role"`
	Class         string               `bson:"class,omitempty"`
	Section       string               `bson:"section,omitempty"`
	Faculty       string               `bson:"faculty,omitempty"`
	Dependents    []primitive.ObjectID `bson:"dependents,omitempty"` // Guardian's linked students
	AlertsEnabled bool                 `bson:"alerts_enabled"`       // Device alert opt-in
}

// AudienceProfile projects the user onto the recipient resolver's input.
func (u *User) AudienceProfile() *audience.Profile {
	p := &audience.Profile{
		ID:      u.ID.Hex(),
		Class:   u.Class,
		Section: u.Section,
		Faculty: u.Faculty,
	}
	if u.Role != "" {
		p.Roles = []string{u.Role}
	}
	for _, dep := range u.Dependents {
		p.Dependents = append(p.Dependents, dep.Hex())
	}
	return p
}

type RegisterRequest struct {
	Number     string   `json:"number"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Role       string   `json:"role"`
	Class      string   `json:"class"`
	Section    string   `json:"section"`
	Faculty    string   `json:"faculty"`
	Dependents []string `json:"dependents"` // Hex user ids, guardians only
}

type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
