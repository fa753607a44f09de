package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jadwa/internal/database"
	"jadwa/internal/domain"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory("repo_test_" + t.Name())
	require.NoError(t, err)
	return db
}

func newConsultation(clientID string) *domain.Consultation {
	return &domain.Consultation{
		ClientID:        clientID,
		Type:            domain.ConsultationChat,
		Status:          domain.ConsultationPending,
		DurationMinutes: 60,
		Price:           250,
	}
}

func TestConsultationRepository_CreateWithPayment(t *testing.T) {
	db := setupDB(t)
	repo := NewConsultationRepository(db)
	payments := NewPaymentRepository(db)
	ctx := context.Background()

	c := newConsultation("client-1")
	p := &domain.Payment{UserID: "client-1", Amount: 250, Currency: "SAR", Status: domain.PaymentPending}
	require.NoError(t, repo.CreateWithPayment(ctx, c, p))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, c.ID, p.RelatedID)
	assert.Equal(t, domain.RelatedConsultation, p.RelatedType)

	list, err := payments.ListByRelated(ctx, c.ID, domain.RelatedConsultation)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PaymentPending, list[0].Status)
}

func TestConsultationRepository_UpdateCAS(t *testing.T) {
	db := setupDB(t)
	repo := NewConsultationRepository(db)
	ctx := context.Background()

	c := newConsultation("client-1")
	require.NoError(t, repo.CreateWithPayment(ctx, c, &domain.Payment{UserID: "client-1", Currency: "SAR", Status: domain.PaymentPending}))

	stale, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)

	c.Status = domain.ConsultationConfirmed
	require.NoError(t, repo.UpdateCAS(ctx, c, c.Version))
	assert.Equal(t, int64(2), c.Version)

	stale.Status = domain.ConsultationCancelled
	err = repo.UpdateCAS(ctx, stale, stale.Version)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationConfirmed, got.Status)

	missing := newConsultation("client-1")
	missing.ID = "does-not-exist"
	assert.ErrorIs(t, repo.UpdateCAS(ctx, missing, 1), domain.ErrNotFound)
}

func TestConsultationRepository_ListFilters(t *testing.T) {
	db := setupDB(t)
	repo := NewConsultationRepository(db)
	ctx := context.Background()

	consultant := "consultant-1"
	video := newConsultation("client-1")
	video.Type = domain.ConsultationVideo
	video.ConsultantID = &consultant
	chat := newConsultation("client-1")
	other := newConsultation("client-2")

	for _, c := range []*domain.Consultation{video, chat, other} {
		require.NoError(t, repo.CreateWithPayment(ctx, c, &domain.Payment{UserID: c.ClientID, Currency: "SAR", Status: domain.PaymentPending}))
	}

	mine, err := repo.List(ctx, ConsultationFilter{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	chats, err := repo.List(ctx, ConsultationFilter{ClientID: "client-1", Type: domain.ConsultationChat})
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)

	assigned, err := repo.List(ctx, ConsultationFilter{ConsultantID: consultant})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, video.ID, assigned[0].ID)
}

func TestPaymentRepository_MarkCompleted(t *testing.T) {
	db := setupDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := &domain.Payment{UserID: "client-1", RelatedID: "c-1", RelatedType: domain.RelatedConsultation, Amount: 100, Currency: "SAR", Status: domain.PaymentPending}
	require.NoError(t, repo.Create(ctx, p))

	now := time.Now().UTC()
	got, changed, err := repo.MarkCompleted(ctx, p.ID, "admin-1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.PaymentCompleted, got.Status)
	require.NotNil(t, got.ConfirmedBy)
	assert.Equal(t, "admin-1", *got.ConfirmedBy)

	got, changed, err = repo.MarkCompleted(ctx, p.ID, "admin-2", now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "admin-1", *got.ConfirmedBy)

	refunded := &domain.Payment{UserID: "client-1", RelatedID: "c-1", RelatedType: domain.RelatedConsultation, Currency: "SAR", Status: domain.PaymentRefunded}
	require.NoError(t, repo.Create(ctx, refunded))
	_, _, err = repo.MarkCompleted(ctx, refunded.ID, "admin-1", now)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, _, err = repo.MarkCompleted(ctx, "missing", "admin-1", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentRepository_CompletedRelatedIDs(t *testing.T) {
	db := setupDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	for _, p := range []*domain.Payment{
		{UserID: "u", RelatedID: "paid", RelatedType: domain.RelatedConsultation, Currency: "SAR", Status: domain.PaymentFailed},
		{UserID: "u", RelatedID: "paid", RelatedType: domain.RelatedConsultation, Currency: "SAR", Status: domain.PaymentCompleted},
		{UserID: "u", RelatedID: "unpaid", RelatedType: domain.RelatedConsultation, Currency: "SAR", Status: domain.PaymentPending},
		{UserID: "u", RelatedID: "study", RelatedType: domain.RelatedStudy, Currency: "SAR", Status: domain.PaymentCompleted},
	} {
		require.NoError(t, repo.Create(ctx, p))
	}

	got, err := repo.CompletedRelatedIDs(ctx, []string{"paid", "unpaid", "study"}, domain.RelatedConsultation)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"paid": true}, got)

	latest, err := repo.LatestCompleted(ctx, "paid", domain.RelatedConsultation)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, latest.Status)

	_, err = repo.LatestCompleted(ctx, "unpaid", domain.RelatedConsultation)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMessageRepository_OrderingAndRead(t *testing.T) {
	db := setupDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	bodies := []string{"first", "second", "third"}
	for i, body := range bodies {
		require.NoError(t, repo.Create(ctx, &domain.Message{
			ConsultationID: "room-1",
			Seq:            int64(100 + i),
			SenderID:       "client-1",
			Body:           body,
			CreatedAt:      at,
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.Message{ConsultationID: "room-2", Seq: 1, SenderID: "x", Body: "elsewhere", CreatedAt: at}))

	all, err := repo.ListByConsultation(ctx, "room-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, m := range all {
		assert.Equal(t, bodies[i], m.Body)
	}

	page, err := repo.ListByConsultation(ctx, "room-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Body)
	assert.Equal(t, "third", page[1].Body)

	older, err := repo.ListByConsultation(ctx, "room-1", 2, page[0].Seq)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "first", older[0].Body)

	require.NoError(t, repo.MarkRead(ctx, all[0].ID))
	unread, err := repo.CountUnread(ctx, "room-1", "consultant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	n, err := repo.MarkRoomRead(ctx, "room-1", "consultant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.ErrorIs(t, repo.MarkRead(ctx, "missing"), domain.ErrNotFound)
}
