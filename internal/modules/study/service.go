// Package study runs asynchronous study requests through quote, client
// approval and delivery.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/validator"
	"jadwa/internal/repository"
)

type Service struct {
	studies  studyRepo
	users    userDirectory
	notifier Notifier
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(studies studyRepo, users userDirectory, notifier Notifier, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		studies:  studies,
		users:    users,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, actor *domain.Identity, req CreateRequest) (*domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.HasRole(domain.RoleClient) {
		return nil, fmt.Errorf("%w: only clients can request studies", domain.ErrForbidden)
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	details := datatypes.JSON("{}")
	if len(req.Details) > 0 && string(req.Details) != "null" {
		var obj map[string]any
		if err := json.Unmarshal(req.Details, &obj); err != nil {
			return nil, fmt.Errorf("%w: details must be a JSON object", domain.ErrValidation)
		}
		details = datatypes.JSON(req.Details)
	}

	sr := &domain.StudyRequest{
		ClientID:    actor.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Details:     details,
		Attachments: req.Attachments,
		Status:      domain.StudyPending,
	}
	if err := s.studies.Create(ctx, sr); err != nil {
		return nil, err
	}

	s.logger.Info("study request created", "study_id", sr.ID, "type", sr.Type, "client_id", sr.ClientID)
	return sr, nil
}

// Get returns a request to its client, its bound consultant, an
// administrator, or any active consultant while it is still unclaimed.
func (s *Service) Get(ctx context.Context, actor *domain.Identity, studyID string) (*domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	sr, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	if !s.canView(actor, sr) {
		return nil, fmt.Errorf("%w: not allowed to view study request %s", domain.ErrForbidden, studyID)
	}
	return s.withSummaries(ctx, sr)
}

// Quote prices a request. A consultant quoting an unclaimed request claims
// it; once claimed only that consultant or an administrator may re-quote.
func (s *Service) Quote(ctx context.Context, actor *domain.Identity, studyID string, req QuoteRequest) (*domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.IsAdmin() && actor.Role != domain.RoleConsultant {
		return nil, fmt.Errorf("%w: only consultants can quote", domain.ErrForbidden)
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}

	sr, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	expected := sr.Version

	claimed := false
	switch {
	case actor.IsAdmin():
		if !sr.HasConsultant() && req.ConsultantID != "" {
			if err := s.requireActiveConsultant(ctx, req.ConsultantID); err != nil {
				return nil, err
			}
			sr.ConsultantID = &req.ConsultantID
			claimed = true
		}
	case sr.HasConsultant():
		if *sr.ConsultantID != actor.UserID {
			return nil, fmt.Errorf("%w: study request is bound to another consultant", domain.ErrForbidden)
		}
	default:
		if actor.Status != domain.UserActive {
			return nil, fmt.Errorf("%w: consultant account is not active", domain.ErrForbidden)
		}
		id := actor.UserID
		sr.ConsultantID = &id
		claimed = true
	}

	if !canTransition(sr.Status, domain.StudyQuoted) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sr.Status, domain.StudyQuoted)
	}

	now := s.now()
	sr.Price = req.Price
	sr.DurationDays = req.DurationDays
	sr.Status = domain.StudyQuoted
	sr.QuotedAt = &now
	if err := s.studies.UpdateCAS(ctx, sr, expected); err != nil {
		return nil, err
	}

	s.logger.Info("study request quoted",
		"study_id", sr.ID,
		"price", *sr.Price,
		"duration_days", *sr.DurationDays,
		"claimed", claimed,
		"actor_id", actor.UserID,
	)

	s.notifier.Notify(ctx, sr.ClientID,
		"Study Quote Received",
		fmt.Sprintf("Your study request %q has been quoted at %.2f for %d days.", sr.Title, *sr.Price, *sr.DurationDays),
		domain.NotifyCategoryStudy,
		"/dashboard/client/studies",
	)
	s.recordAdmin(ctx, actor, sr, domain.StudyQuoted)
	return s.withSummaries(ctx, sr)
}

// Approve accepts the current quote.
func (s *Service) Approve(ctx context.Context, actor *domain.Identity, studyID string) (*domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	sr, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	expected := sr.Version

	if !actor.IsAdmin() && !(actor.Role == domain.RoleClient && sr.ClientID == actor.UserID) {
		return nil, fmt.Errorf("%w: only the requesting client can approve", domain.ErrForbidden)
	}
	if !canTransition(sr.Status, domain.StudyApproved) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sr.Status, domain.StudyApproved)
	}

	now := s.now()
	sr.Status = domain.StudyApproved
	sr.ApprovedAt = &now
	if err := s.studies.UpdateCAS(ctx, sr, expected); err != nil {
		return nil, err
	}

	s.logger.Info("study request approved", "study_id", sr.ID, "actor_id", actor.UserID)
	if sr.HasConsultant() {
		s.notifier.Notify(ctx, *sr.ConsultantID,
			"Study Quote Approved",
			fmt.Sprintf("Your quote for %q was approved. You can start working on it.", sr.Title),
			domain.NotifyCategoryStudy,
			"/dashboard/consultant/studies",
		)
	}
	s.recordAdmin(ctx, actor, sr, domain.StudyApproved)
	return s.withSummaries(ctx, sr)
}

// Complete delivers an approved study.
func (s *Service) Complete(ctx context.Context, actor *domain.Identity, studyID string, req CompleteRequest) (*domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	sr, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	expected := sr.Version

	if !actor.IsAdmin() && !s.isBoundConsultant(actor, sr) {
		return nil, fmt.Errorf("%w: only the bound consultant can complete", domain.ErrForbidden)
	}
	if !canTransition(sr.Status, domain.StudyCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sr.Status, domain.StudyCompleted)
	}

	now := s.now()
	sr.Status = domain.StudyCompleted
	sr.Deliverables = req.Deliverables
	sr.CompletedAt = &now
	if err := s.studies.UpdateCAS(ctx, sr, expected); err != nil {
		return nil, err
	}

	s.logger.Info("study request completed", "study_id", sr.ID, "deliverables", len(sr.Deliverables), "actor_id", actor.UserID)
	s.notifier.Notify(ctx, sr.ClientID,
		"Study Completed",
		fmt.Sprintf("Your study %q has been delivered.", sr.Title),
		domain.NotifyCategoryStudy,
		"/dashboard/client/studies",
	)
	s.recordAdmin(ctx, actor, sr, domain.StudyCompleted)
	return s.withSummaries(ctx, sr)
}

// Reject closes a request before approval. The client, the bound consultant
// or an administrator may reject.
func (s *Service) Reject(ctx context.Context, actor *domain.Identity, studyID string, req RejectRequest) (*domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	sr, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		return nil, err
	}
	expected := sr.Version

	isClient := actor.Role == domain.RoleClient && sr.ClientID == actor.UserID
	if !actor.IsAdmin() && !isClient && !s.isBoundConsultant(actor, sr) {
		return nil, fmt.Errorf("%w: not allowed to reject this study request", domain.ErrForbidden)
	}
	if !canTransition(sr.Status, domain.StudyRejected) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sr.Status, domain.StudyRejected)
	}

	sr.Status = domain.StudyRejected
	sr.RejectionReason = req.Reason
	if err := s.studies.UpdateCAS(ctx, sr, expected); err != nil {
		return nil, err
	}

	s.logger.Info("study request rejected", "study_id", sr.ID, "actor_id", actor.UserID)
	msg := fmt.Sprintf("Study request %q was rejected.", sr.Title)
	if !isClient {
		s.notifier.Notify(ctx, sr.ClientID, "Study Request Rejected", msg, domain.NotifyCategoryStudy, "/dashboard/client/studies")
	}
	if sr.HasConsultant() && !actor.Is(*sr.ConsultantID) {
		s.notifier.Notify(ctx, *sr.ConsultantID, "Study Request Rejected", msg, domain.NotifyCategoryStudy, "/dashboard/consultant/studies")
	}
	s.recordAdmin(ctx, actor, sr, domain.StudyRejected)
	return s.withSummaries(ctx, sr)
}

// List returns the caller's requests, newest first: the ones bound to a
// consultant, or the ones a client submitted.
func (s *Service) List(ctx context.Context, actor *domain.Identity, status domain.StudyStatus) ([]domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	var f repository.StudyFilter
	if actor.Role == domain.RoleConsultant {
		f.ConsultantID = actor.UserID
	} else {
		f.ClientID = actor.UserID
	}
	if status != "" {
		f.Statuses = []domain.StudyStatus{status}
	}

	rows, err := s.studies.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.attachSummaries(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOpen returns unclaimed pending requests a consultant can quote.
func (s *Service) ListOpen(ctx context.Context, actor *domain.Identity) ([]domain.StudyRequest, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !actor.IsAdmin() && !(actor.Role == domain.RoleConsultant && actor.Status == domain.UserActive) {
		return nil, fmt.Errorf("%w: only active consultants can browse open requests", domain.ErrForbidden)
	}

	rows, err := s.studies.List(ctx, repository.StudyFilter{
		Unclaimed: true,
		Statuses:  []domain.StudyStatus{domain.StudyPending},
	})
	if err != nil {
		return nil, err
	}
	if err := s.attachSummaries(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) canView(actor *domain.Identity, sr *domain.StudyRequest) bool {
	switch {
	case actor.IsAdmin(), sr.ClientID == actor.UserID, s.isBoundConsultant(actor, sr):
		return true
	case !sr.HasConsultant() && sr.Status == domain.StudyPending:
		return actor.Role == domain.RoleConsultant && actor.Status == domain.UserActive
	}
	return false
}

func (s *Service) isBoundConsultant(actor *domain.Identity, sr *domain.StudyRequest) bool {
	return actor.Role == domain.RoleConsultant && sr.HasConsultant() && *sr.ConsultantID == actor.UserID
}

func (s *Service) requireActiveConsultant(ctx context.Context, userID string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: consultant %s does not exist", domain.ErrValidation, userID)
		}
		return err
	}
	if u.Role != domain.RoleConsultant || u.Status != domain.UserActive {
		return fmt.Errorf("%w: invalid or inactive consultant", domain.ErrValidation)
	}
	return nil
}

func (s *Service) recordAdmin(ctx context.Context, actor *domain.Identity, sr *domain.StudyRequest, to domain.StudyStatus) {
	if !actor.IsAdmin() {
		return
	}
	s.audit.Record(ctx, actor.UserID, domain.AuditUpdateStudy, "study_request", sr.ID, map[string]any{
		"status": string(to),
	})
}

func (s *Service) withSummaries(ctx context.Context, sr *domain.StudyRequest) (*domain.StudyRequest, error) {
	rows := []domain.StudyRequest{*sr}
	if err := s.attachSummaries(ctx, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Service) attachSummaries(ctx context.Context, rows []domain.StudyRequest) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows)*2)
	for _, r := range rows {
		ids = append(ids, r.ClientID)
		if r.HasConsultant() {
			ids = append(ids, *r.ConsultantID)
		}
	}
	summaries, err := s.users.SummariesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if u, ok := summaries[rows[i].ClientID]; ok {
			rows[i].Client = &u
		}
		if rows[i].HasConsultant() {
			if u, ok := summaries[*rows[i].ConsultantID]; ok {
				rows[i].Consultant = &u
			}
		}
	}
	return nil
}
