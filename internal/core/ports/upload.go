package ports

import (
	"context"
	"io"

	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// StoredFile describes a file written by FileStorage.
type StoredFile struct {
	Name string // generated storage name
	URL  string // public URL
	Size int64
}

// FileStorage stores uploaded file contents.
type FileStorage interface {
	Save(ctx context.Context, originalName string, r io.Reader) (*StoredFile, error)
	Remove(ctx context.Context, name string) error
}

// Upload is one received file.
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadService defines the file upload use cases.
type UploadService interface {
	SaveMedia(ctx context.Context, actor Actor, files []Upload) ([]fleet.Media, error)
	SaveDocument(ctx context.Context, actor Actor, doc fleet.Document, file Upload) (*fleet.Document, error)
	SetVehicleImage(ctx context.Context, actor Actor, id fleet.ID, file Upload) (*fleet.Vehicle, error)
	SetDriverPhoto(ctx context.Context, actor Actor, id fleet.ID, file Upload) (*fleet.Driver, error)
}

// NotificationService defines the per-user inbox use cases.
type NotificationService interface {
	List(ctx context.Context, userID string, filter ListFilter) (*fleet.Page[fleet.Notification], error)
	Create(ctx context.Context, actor Actor, n *fleet.Notification) (*fleet.Notification, error)
	MarkRead(ctx context.Context, userID string, id fleet.ID) (*fleet.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
