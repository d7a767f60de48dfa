package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleAdmin     = "admin"
	RoleDoctor    = "doctor"
	RoleUser      = "user"
	RoleAmbulance = "ambulance"
	RoleEmergency = "emergency"
)

var Roles = []string{RoleAdmin, RoleDoctor, RoleUser, RoleAmbulance, RoleEmergency}

func IsValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:user"`

	ID        string    `bun:"id,pk" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	Name      string    `bun:"name" json:"name"`
	Role      string    `bun:"role,notnull" json:"role"`
	Phone     string    `bun:"phone" json:"phone"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// RoleCheck is the check-role-api response body.
type RoleCheck struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	IsAdmin     bool   `json:"isAdmin"`
	IsDoctor    bool   `json:"isDoctor"`
	IsUser      bool   `json:"isUser"`
	IsAmbulance bool   `json:"isAmbulance"`
	IsEmergency bool   `json:"isEmergency"`
}

func NewRoleCheck(email, role string) RoleCheck {
	return RoleCheck{
		Success:     true,
		Message:     "Role fetched successfully",
		Email:       email,
		Role:        role,
		IsAdmin:     role == RoleAdmin,
		IsDoctor:    role == RoleDoctor,
		IsUser:      role == RoleUser,
		IsAmbulance: role == RoleAmbulance,
		IsEmergency: role == RoleEmergency,
	}
}
