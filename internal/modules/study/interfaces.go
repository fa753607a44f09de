package study

import (
	"context"

	"jadwa/internal/domain"
	"jadwa/internal/repository"
)

type studyRepo interface {
	Create(ctx context.Context, s *domain.StudyRequest) error
	GetByID(ctx context.Context, studyID string) (*domain.StudyRequest, error)
	UpdateCAS(ctx context.Context, s *domain.StudyRequest, expected int64) error
	List(ctx context.Context, f repository.StudyFilter) ([]domain.StudyRequest, error)
}

type userDirectory interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	SummariesByIDs(ctx context.Context, ids []string) (map[string]domain.UserSummary, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, title, message, category, actionRef string)
}

type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any)
}
