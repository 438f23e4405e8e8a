package domain

import (
	"time"

	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// User is a back-office account as stored by the API.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Phone         string
	Role          fleet.Role
	LicenseNumber string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the public view of u.
func (u *User) Profile() fleet.UserProfile {
	return fleet.UserProfile{
		ID:        fleet.ID(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Role:      u.Role,
	}
}
