package domain

// Role is the access level of a back-office user.
type Role string

const (
	RoleDriver  Role = "driver"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDriver, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// UserProfile is the server's view of the signed-in user. Clients treat it as
// an immutable snapshot between verifications.
type UserProfile struct {
	ID        ID     `json:"_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Role      Role   `json:"role"`
}

// UnmarshalJSON accepts the identifier under either "_id" or "id".
func (p *UserProfile) UnmarshalJSON(data []byte) error {
	type alias UserProfile
	return unmarshalWithID(data, (*alias)(p), &p.ID)
}

// FullName joins first and last name, falling back to the username.
func (p UserProfile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.Username
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the sign-up payload. LicenseNumber is only meaningful for
// the driver role.
type Registration struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Role          Role   `json:"role"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
}

// ProfileUpdate is a partial profile; empty fields are left unchanged.
type ProfileUpdate struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// PasswordChange is the change-password payload.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// TokenValidity is the verify-token response.
type TokenValidity struct {
	Valid bool `json:"valid"`
}
