// Package audit persists the trail of administrative actions.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"gorm.io/datatypes"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/dispatch"
)

type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]domain.AuditLog, error)
	ListRecent(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

type Service struct {
	repo   Repository
	queue  *dispatch.Queue
	logger *slog.Logger
}

// NewService writes through queue when it is non-nil and synchronously
// otherwise.
func NewService(repo Repository, queue *dispatch.Queue, logger *slog.Logger) *Service {
	return &Service{repo: repo, queue: queue, logger: logger}
}

// Record appends an audit entry. Failures are logged and never reach the
// caller.
func (s *Service) Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any) {
	entry := &domain.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("audit details not encodable", "action", action, "error", err)
		} else {
			entry.Details = datatypes.JSON(raw)
		}
	}

	write := func(ctx context.Context) error {
		if err := s.repo.Create(ctx, entry); err != nil {
			s.logger.Warn("audit write failed", "action", action, "target_id", targetID, "error", err)
			return err
		}
		return nil
	}

	if s.queue == nil {
		_ = write(ctx)
		return
	}
	s.queue.Enqueue(write)
}

func (s *Service) Trail(ctx context.Context, actor *domain.Identity, targetType, targetID string) ([]domain.AuditLog, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListByTarget(ctx, targetType, targetID)
}

func (s *Service) Recent(ctx context.Context, actor *domain.Identity, limit int) ([]domain.AuditLog, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListRecent(ctx, limit)
}
