package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/id"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = id.New()
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Status == "" {
		u.Status = domain.UserActive
	}
	return wrapErr(r.db.WithContext(ctx).Create(u).Error, "user")
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, wrapErr(err, "user")
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, wrapErr(err, "user")
	}
	return &u, nil
}

// SummariesByIDs loads the public projection for every known id. Unknown
// ids are absent from the result.
func (r *UserRepository) SummariesByIDs(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	out := make(map[string]domain.UserSummary, len(ids))
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return out, nil
	}

	var users []domain.User
	err := r.db.WithContext(ctx).
		Select("id", "full_name", "avatar_url").
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, wrapErr(err, "users")
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).Update("status", status)
	if res.Error != nil {
		return wrapErr(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return wrapErr(gorm.ErrRecordNotFound, "user")
	}
	return nil
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
