package notification

import (
	"context"
	"fmt"
	"log/slog"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/dispatch"
)

type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
}

type Service struct {
	repo   Repository
	queue  *dispatch.Queue
	logger *slog.Logger
}

func NewService(repo Repository, queue *dispatch.Queue, logger *slog.Logger) *Service {
	return &Service{repo: repo, queue: queue, logger: logger}
}

// Notify stores an in-app notification for userID. Delivery is best effort:
// the write happens on the dispatch queue and failures are only logged.
func (s *Service) Notify(ctx context.Context, userID, title, message, category, actionRef string) {
	if userID == "" {
		return
	}
	n := &domain.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Category:  category,
		ActionRef: actionRef,
	}

	write := func(ctx context.Context) error {
		if err := s.repo.Create(ctx, n); err != nil {
			return fmt.Errorf("notify %s %q: %w", userID, title, err)
		}
		return nil
	}

	if s.queue == nil {
		if err := write(ctx); err != nil {
			s.logger.Warn("notification write failed", "error", err)
		}
		return
	}
	s.queue.Enqueue(write)
}

func (s *Service) GetUserNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, int64, error) {
	list, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return list, unread, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkAsRead(ctx context.Context, notificationID, userID string) error {
	if notificationID == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.repo.MarkAsRead(ctx, notificationID, userID)
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
