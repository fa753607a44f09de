package auth

import (
	"context"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/jwt"
)

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) error
}

type TokenService interface {
	GenerateToken(userID, role string) (string, error)
	ValidateToken(token string) (*jwt.Claims, error)
}
