package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// NotificationService scopes the notifications collection to its recipient.
type NotificationService struct {
	*ResourceService[fleet.Notification, *fleet.Notification]
	repo ports.ResourceRepository[fleet.Notification]
}

func NewNotificationService(resources *ResourceService[fleet.Notification, *fleet.Notification]) *NotificationService {
	return &NotificationService{ResourceService: resources, repo: resources.repo}
}

// List returns the notifications addressed to userID.
func (s *NotificationService) List(ctx context.Context, userID string, filter ports.ListFilter) (*fleet.Page[fleet.Notification], error) {
	equals := make(map[string]any, len(filter.Equals)+1)
	for k, v := range filter.Equals {
		equals[k] = v
	}
	equals["user_id"] = userID
	filter.Equals = equals
	return s.ResourceService.List(ctx, filter)
}

// MarkRead marks one notification as read. Notifications of other users are
// reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, id fleet.ID) (*fleet.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID.String() != userID {
		return nil, domain.ErrNotFound
	}
	if n.Read {
		return n, nil
	}

	actor := ports.Actor{UserID: userID}
	return s.Update(ctx, actor, id, func(n *fleet.Notification) error {
		n.Read = true
		return nil
	})
}

// MarkAllRead marks every unread notification of userID as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.New("mark all read: missing user")
	}
	n, err := s.repo.SetWhere(ctx,
		map[string]any{"user_id": userID, "read": false},
		map[string]any{"read": true, "updated_at": time.Now().UTC()},
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}
