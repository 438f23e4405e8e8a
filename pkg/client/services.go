package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rideops/fleet-backoffice/pkg/domain"
)

// VehicleService talks to /vehicles.
type VehicleService struct {
	resource[domain.Vehicle]
}

// UploadImage attaches an image to a vehicle. The file is sent under "image".
func (s *VehicleService) UploadImage(ctx context.Context, id domain.ID, f File) (*UploadResult, error) {
	res, err := s.c.upload(ctx, s.itemPath(id)+"/image", "image", nil, []File{f})
	if err != nil {
		return nil, fmt.Errorf("client.Vehicles.UploadImage: %w", err)
	}
	return res, nil
}

// DriverService talks to /drivers.
type DriverService struct {
	resource[domain.Driver]
}

// UploadPhoto attaches a profile photo to a driver. The file is sent under "photo".
func (s *DriverService) UploadPhoto(ctx context.Context, id domain.ID, f File) (*UploadResult, error) {
	res, err := s.c.upload(ctx, s.itemPath(id)+"/photo", "photo", nil, []File{f})
	if err != nil {
		return nil, fmt.Errorf("client.Drivers.UploadPhoto: %w", err)
	}
	return res, nil
}

// ScheduleService talks to /schedules.
type ScheduleService struct {
	resource[domain.Schedule]
}

// PaymentService talks to /payments.
type PaymentService struct {
	resource[domain.Payment]
}

// DocumentService talks to /documents.
type DocumentService struct {
	resource[domain.Document]
}

// Upload sends one or more files under "file" together with form fields
// such as ownerType, owner and type.
func (s *DocumentService) Upload(ctx context.Context, fields map[string]string, files ...File) (*UploadResult, error) {
	res, err := s.c.upload(ctx, "/documents/upload", "file", fields, files)
	if err != nil {
		return nil, fmt.Errorf("client.Documents.Upload: %w", err)
	}
	return res, nil
}

// MediaService talks to /media.
type MediaService struct {
	c *Client
}

// Upload sends one or more files under field (the server expects "files").
func (s *MediaService) Upload(ctx context.Context, field string, files ...File) (*UploadResult, error) {
	if field == "" {
		field = "files"
	}
	res, err := s.c.upload(ctx, "/media/upload", field, nil, files)
	if err != nil {
		return nil, fmt.Errorf("client.Media.Upload: %w", err)
	}
	return res, nil
}

// NotificationService talks to /notifications.
type NotificationService struct {
	c *Client
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, p ListParams) (*domain.Page[domain.Notification], error) {
	var page domain.Page[domain.Notification]
	if err := s.c.get(ctx, "/notifications", p.values(), &page); err != nil {
		return nil, fmt.Errorf("client.Notifications.List: %w", err)
	}
	return &page, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id domain.ID) (*domain.Notification, error) {
	var n domain.Notification
	path := "/notifications/" + url.PathEscape(id.String()) + "/read"
	if err := s.c.do(ctx, request{method: http.MethodPut, path: path, out: &n}); err != nil {
		return nil, fmt.Errorf("client.Notifications.MarkRead: %w", err)
	}
	return &n, nil
}

// MarkAllRead marks every notification of the caller as read and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := s.c.do(ctx, request{method: http.MethodPut, path: "/notifications/read-all", out: &out}); err != nil {
		return 0, fmt.Errorf("client.Notifications.MarkAllRead: %w", err)
	}
	return out.Updated, nil
}
