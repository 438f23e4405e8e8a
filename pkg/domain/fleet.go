package domain

import "time"

// VehicleType distinguishes the two kinds of vehicle the fleet runs.
type VehicleType string

const (
	VehicleTaxi VehicleType = "taxi"
	VehicleMoto VehicleType = "moto"
)

// Vehicle is a car or motorbike operated by the fleet.
type Vehicle struct {
	Base             `bson:",inline"`
	PlateNumber      string      `json:"plateNumber" bson:"plate_number" validate:"required"`
	Make             string      `json:"make" bson:"make" validate:"required"`
	Model            string      `json:"model" bson:"model" validate:"required"`
	Year             int         `json:"year,omitempty" bson:"year,omitempty" validate:"omitempty,gte=1950,lte=2100"`
	Color            string      `json:"color,omitempty" bson:"color,omitempty"`
	Type             VehicleType `json:"type" bson:"type" validate:"required,oneof=taxi moto"`
	Status           string      `json:"status" bson:"status" validate:"omitempty,oneof=active maintenance inactive"`
	Mileage          int         `json:"mileage,omitempty" bson:"mileage,omitempty" validate:"omitempty,gte=0"`
	AssignedDriverID ID          `json:"assignedDriver,omitempty" bson:"assigned_driver,omitempty"`
	ImageURL         string      `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
}

func (v *Vehicle) UnmarshalJSON(data []byte) error {
	type alias Vehicle
	return unmarshalWithID(data, (*alias)(v), &v.ID)
}

// Driver is a person licensed to operate fleet vehicles.
type Driver struct {
	Base          `bson:",inline"`
	UserID        ID         `json:"user,omitempty" bson:"user_id,omitempty"`
	FirstName     string     `json:"firstName" bson:"first_name" validate:"required"`
	LastName      string     `json:"lastName" bson:"last_name" validate:"required"`
	Phone         string     `json:"phone" bson:"phone" validate:"required"`
	Email         string     `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	LicenseNumber string     `json:"licenseNumber" bson:"license_number" validate:"required"`
	LicenseExpiry *time.Time `json:"licenseExpiry,omitempty" bson:"license_expiry,omitempty"`
	Status        string     `json:"status" bson:"status" validate:"omitempty,oneof=active suspended inactive"`
	PhotoURL      string     `json:"photoUrl,omitempty" bson:"photo_url,omitempty"`
}

func (d *Driver) UnmarshalJSON(data []byte) error {
	type alias Driver
	return unmarshalWithID(data, (*alias)(d), &d.ID)
}

// Schedule assigns a driver to a vehicle for one shift.
type Schedule struct {
	Base      `bson:",inline"`
	DriverID  ID        `json:"driver" bson:"driver_id" validate:"required"`
	VehicleID ID        `json:"vehicle" bson:"vehicle_id" validate:"required"`
	Shift     string    `json:"shift" bson:"shift" validate:"required,oneof=day night full"`
	StartTime time.Time `json:"startTime" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"endTime" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status    string    `json:"status" bson:"status" validate:"omitempty,oneof=scheduled active completed cancelled"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty"`
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	type alias Schedule
	return unmarshalWithID(data, (*alias)(s), &s.ID)
}

// Payment is money owed by or to a driver for a period of work.
type Payment struct {
	Base       `bson:",inline"`
	DriverID   ID         `json:"driver" bson:"driver_id" validate:"required"`
	ScheduleID ID         `json:"schedule,omitempty" bson:"schedule_id,omitempty"`
	Amount     float64    `json:"amount" bson:"amount" validate:"required,gt=0"`
	Currency   string     `json:"currency" bson:"currency" validate:"required,len=3"`
	Method     string     `json:"method,omitempty" bson:"method,omitempty" validate:"omitempty,oneof=cash card transfer"`
	Status     string     `json:"status" bson:"status" validate:"omitempty,oneof=pending paid overdue cancelled"`
	DueDate    time.Time  `json:"dueDate" bson:"due_date" validate:"required"`
	PaidAt     *time.Time `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
	Reference  string     `json:"reference,omitempty" bson:"reference,omitempty"`
}

func (p *Payment) UnmarshalJSON(data []byte) error {
	type alias Payment
	return unmarshalWithID(data, (*alias)(p), &p.ID)
}

// Document is a compliance record (insurance, license, registration, ...)
// attached to a vehicle or a driver.
type Document struct {
	Base      `bson:",inline"`
	OwnerType string     `json:"ownerType" bson:"owner_type" validate:"required,oneof=vehicle driver"`
	OwnerID   ID         `json:"owner" bson:"owner_id" validate:"required"`
	Type      string     `json:"type" bson:"type" validate:"required,oneof=insurance license registration inspection permit other"`
	Title     string     `json:"title,omitempty" bson:"title,omitempty"`
	FileURL   string     `json:"fileUrl,omitempty" bson:"file_url,omitempty"`
	IssuedAt  *time.Time `json:"issuedAt,omitempty" bson:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" bson:"expires_at,omitempty"`
	Status    string     `json:"status" bson:"status" validate:"omitempty,oneof=valid expiring expired pending"`
}

func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	return unmarshalWithID(data, (*alias)(d), &d.ID)
}

// Media is an uploaded image or file.
type Media struct {
	Base        `bson:",inline"`
	FileName    string `json:"fileName" bson:"file_name"`
	ContentType string `json:"contentType" bson:"content_type"`
	Size        int64  `json:"size" bson:"size"`
	URL         string `json:"url" bson:"url"`
	UploadedBy  ID     `json:"uploadedBy,omitempty" bson:"uploaded_by,omitempty"`
}

func (m *Media) UnmarshalJSON(data []byte) error {
	type alias Media
	return unmarshalWithID(data, (*alias)(m), &m.ID)
}

// Notification is an in-app message for one user.
type Notification struct {
	Base    `bson:",inline"`
	UserID  ID     `json:"user" bson:"user_id" validate:"required"`
	Title   string `json:"title" bson:"title" validate:"required"`
	Message string `json:"message" bson:"message" validate:"required"`
	Type    string `json:"type,omitempty" bson:"type,omitempty" validate:"omitempty,oneof=info warning alert"`
	Read    bool   `json:"read" bson:"read"`
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	return unmarshalWithID(data, (*alias)(n), &n.ID)
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// Page is a list response.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
