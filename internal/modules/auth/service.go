package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"jadwa/internal/domain"
)

// Service issues and verifies bearer credentials for platform users.
type Service struct {
	users  UserRepository
	tokens TokenService
}

func NewService(users UserRepository, tokens TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

type LoginResult struct {
	User  *domain.User
	Token string
}

// Register creates a client or consultant account. Consultants start pending
// until an administrator activates them.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if req.Role != domain.RoleClient && req.Role != domain.RoleConsultant {
		return nil, fmt.Errorf("%w: role must be client or consultant", domain.ErrValidation)
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	status := domain.UserActive
	if req.Role == domain.RoleConsultant {
		status = domain.UserPending
	}
	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Status:       status,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status == domain.UserSuspended {
		return nil, ErrAccountSuspended
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: token}, nil
}

// Authenticate verifies credential and reloads the user so role and status
// reflect the current ledger rather than the token's claims.
func (s *Service) Authenticate(ctx context.Context, credential string) (*domain.Identity, error) {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		credential = strings.TrimSpace(credential[7:])
	}
	if credential == "" {
		return nil, fmt.Errorf("%w: missing credential", domain.ErrUnauthenticated)
	}

	claims, err := s.tokens.ValidateToken(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	if user.Status == domain.UserSuspended {
		return nil, fmt.Errorf("%w: account is suspended", domain.ErrUnauthenticated)
	}

	return &domain.Identity{
		UserID:   user.ID,
		Role:     user.Role,
		Status:   user.Status,
		FullName: user.FullName,
	}, nil
}

func (s *Service) IssueToken(user *domain.User) (string, error) {
	token, err := s.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateUserStatus lets an active administrator activate or suspend an
// account. Admins cannot change their own status.
func (s *Service) UpdateUserStatus(ctx context.Context, actor *domain.Identity, userID string, status domain.UserStatus) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only active administrators can change account status", domain.ErrForbidden)
	}
	if actor.Is(userID) {
		return nil, fmt.Errorf("%w: cannot change own status", domain.ErrValidation)
	}
	switch status {
	case domain.UserActive, domain.UserPending, domain.UserSuspended:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
