package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"jadwa/internal/config"
	"jadwa/internal/core"
	"jadwa/internal/database"
	"jadwa/internal/domain"
	jwtsvc "jadwa/internal/pkg/jwt"
	"jadwa/internal/repository"
)

type seedUser struct {
	email    string
	password string
	name     string
	role     domain.UserRole
	status   domain.UserStatus
}

var seedUsers = []seedUser{
	{"admin@jadwa.sa", "admin12345", "Jadwa Admin", domain.RoleAdmin, domain.UserActive},
	{"sara@client.sa", "client12345", "Sara Alharbi", domain.RoleClient, domain.UserActive},
	{"fahad@client.sa", "client12345", "Fahad Alotaibi", domain.RoleClient, domain.UserActive},
	{"noura@consult.sa", "consult12345", "Noura Alqahtani", domain.RoleConsultant, domain.UserActive},
	{"khalid@consult.sa", "consult12345", "Khalid Alshehri", domain.RoleConsultant, domain.UserPending},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := core.NewLogger(cfg, os.Stdout)

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}

	if err := seed(context.Background(), db, cfg, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed completed")
}

func seed(ctx context.Context, db *gorm.DB, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("cleaning old data")
	for _, table := range []string{"messages", "payments", "consultations", "study_requests", "notifications", "audit_logs", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	users := repository.NewUserRepository(db)
	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	created := make(map[string]*domain.User, len(seedUsers))
	for _, su := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u := &domain.User{
			Email:        su.email,
			PasswordHash: string(hash),
			FullName:     su.name,
			Role:         su.role,
			Status:       su.status,
		}
		if err := users.Create(ctx, u); err != nil {
			return err
		}
		created[su.email] = u

		token, err := tokens.GenerateToken(u.ID, string(u.Role))
		if err != nil {
			return err
		}
		logger.Info("user created", "email", su.email, "password", su.password, "role", su.role, "status", su.status, "token", token)
	}

	admin := created["admin@jadwa.sa"]
	sara := created["sara@client.sa"]
	fahad := created["fahad@client.sa"]
	noura := created["noura@consult.sa"]

	consultations := repository.NewConsultationRepository(db)
	payments := repository.NewPaymentRepository(db)
	now := time.Now().UTC()

	// A paid chat engagement with an open room.
	chat := &domain.Consultation{
		ClientID:        sara.ID,
		ConsultantID:    &noura.ID,
		Type:            domain.ConsultationChat,
		Status:          domain.ConsultationConfirmed,
		DurationMinutes: 60,
		Price:           250,
		Notes:           "Feasibility questions for a specialty coffee shop in Riyadh",
	}
	chatPayment := &domain.Payment{UserID: sara.ID, Amount: chat.Price, Currency: cfg.Currency, Status: domain.PaymentPending, PaymentMethod: "bank_transfer"}
	if err := consultations.CreateWithPayment(ctx, chat, chatPayment); err != nil {
		return err
	}
	if _, _, err := payments.MarkCompleted(ctx, chatPayment.ID, admin.ID, now); err != nil {
		return err
	}
	logger.Info("chat consultation seeded", "id", chat.ID, "payment_id", chatPayment.ID)

	// An unpaid video booking awaiting admin approval.
	scheduled := now.Add(72 * time.Hour).Truncate(time.Hour)
	video := &domain.Consultation{
		ClientID:        fahad.ID,
		Type:            domain.ConsultationVideo,
		Status:          domain.ConsultationPending,
		ScheduledAt:     &scheduled,
		DurationMinutes: 45,
		Price:           400,
	}
	videoPayment := &domain.Payment{UserID: fahad.ID, Amount: video.Price, Currency: cfg.Currency, Status: domain.PaymentPending}
	if err := consultations.CreateWithPayment(ctx, video, videoPayment); err != nil {
		return err
	}
	logger.Info("video consultation seeded", "id", video.ID, "payment_id", videoPayment.ID)

	studies := repository.NewStudyRequestRepository(db)
	study := &domain.StudyRequest{
		ClientID:    fahad.ID,
		Type:        domain.StudyFeasibility,
		Title:       "Logistics hub in Dammam",
		Description: "Market sizing and five-year cash flow for a regional logistics hub.",
		Details:     []byte(`{"budget":"2M SAR","horizon_years":5}`),
		Status:      domain.StudyPending,
	}
	if err := studies.Create(ctx, study); err != nil {
		return err
	}
	logger.Info("study request seeded", "id", study.ID)

	return nil
}
