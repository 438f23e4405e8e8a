package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	"github.com/rideops/fleet-backoffice/internal/metrics"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// UploadService stores uploaded files and links them to fleet records.
type UploadService struct {
	storage   ports.FileStorage
	media     ports.ResourceService[fleet.Media]
	documents ports.ResourceService[fleet.Document]
	vehicles  ports.ResourceService[fleet.Vehicle]
	drivers   ports.ResourceService[fleet.Driver]
	log       zerolog.Logger
}

func NewUploadService(
	storage ports.FileStorage,
	media ports.ResourceService[fleet.Media],
	documents ports.ResourceService[fleet.Document],
	vehicles ports.ResourceService[fleet.Vehicle],
	drivers ports.ResourceService[fleet.Driver],
	log zerolog.Logger,
) *UploadService {
	return &UploadService{
		storage:   storage,
		media:     media,
		documents: documents,
		vehicles:  vehicles,
		drivers:   drivers,
		log:       log,
	}
}

// SaveMedia stores every file and creates one media record per file. Files
// stored before a failure are removed again.
func (s *UploadService) SaveMedia(ctx context.Context, actor ports.Actor, files []ports.Upload) ([]fleet.Media, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", domain.ErrInvalidInput)
	}

	out := make([]fleet.Media, 0, len(files))
	var stored []string
	for _, f := range files {
		sf, err := s.store(ctx, "media", f)
		if err != nil {
			s.cleanup(ctx, stored...)
			return nil, err
		}
		stored = append(stored, sf.Name)

		m, err := s.media.Create(ctx, actor, &fleet.Media{
			FileName:    f.FileName,
			ContentType: f.ContentType,
			Size:        sf.Size,
			URL:         sf.URL,
			UploadedBy:  fleet.ID(actor.UserID),
		})
		if err != nil {
			s.cleanup(ctx, stored...)
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// SaveDocument stores file and creates the document record pointing to it.
func (s *UploadService) SaveDocument(ctx context.Context, actor ports.Actor, doc fleet.Document, file ports.Upload) (*fleet.Document, error) {
	sf, err := s.store(ctx, "document", file)
	if err != nil {
		return nil, err
	}
	doc.FileURL = sf.URL
	if doc.Title == "" {
		doc.Title = file.FileName
	}

	created, err := s.documents.Create(ctx, actor, &doc)
	if err != nil {
		s.cleanup(ctx, sf.Name)
		return nil, err
	}
	return created, nil
}

func (s *UploadService) SetVehicleImage(ctx context.Context, actor ports.Actor, id fleet.ID, file ports.Upload) (*fleet.Vehicle, error) {
	if _, err := s.vehicles.Get(ctx, id); err != nil {
		return nil, err
	}
	sf, err := s.store(ctx, "media", file)
	if err != nil {
		return nil, err
	}
	v, err := s.vehicles.Update(ctx, actor, id, func(v *fleet.Vehicle) error {
		v.ImageURL = sf.URL
		return nil
	})
	if err != nil {
		s.cleanup(ctx, sf.Name)
		return nil, err
	}
	return v, nil
}

func (s *UploadService) SetDriverPhoto(ctx context.Context, actor ports.Actor, id fleet.ID, file ports.Upload) (*fleet.Driver, error) {
	if _, err := s.drivers.Get(ctx, id); err != nil {
		return nil, err
	}
	sf, err := s.store(ctx, "media", file)
	if err != nil {
		return nil, err
	}
	d, err := s.drivers.Update(ctx, actor, id, func(d *fleet.Driver) error {
		d.PhotoURL = sf.URL
		return nil
	})
	if err != nil {
		s.cleanup(ctx, sf.Name)
		return nil, err
	}
	return d, nil
}

func (s *UploadService) store(ctx context.Context, kind string, f ports.Upload) (*ports.StoredFile, error) {
	if f.Body == nil {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	sf, err := s.storage.Save(ctx, f.FileName, f.Body)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", f.FileName, err)
	}
	metrics.UploadBytes.WithLabelValues(kind).Observe(float64(sf.Size))
	s.log.Debug().Str("file", f.FileName).Str("stored_as", sf.Name).Int64("size", sf.Size).Msg("file stored")
	return sf, nil
}

func (s *UploadService) cleanup(ctx context.Context, names ...string) {
	for _, name := range names {
		if err := s.storage.Remove(ctx, name); err != nil {
			s.log.Warn().Err(err).Str("file", name).Msg("failed to remove stored file")
		}
	}
}

var (
	_ ports.UploadService                  = (*UploadService)(nil)
	_ ports.NotificationService            = (*NotificationService)(nil)
	_ ports.AuthService                    = (*AuthService)(nil)
	_ ports.ResourceService[fleet.Vehicle] = (*ResourceService[fleet.Vehicle, *fleet.Vehicle])(nil)
)
