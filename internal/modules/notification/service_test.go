package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jadwa/internal/database"
	"jadwa/internal/domain"
	"jadwa/internal/pkg/dispatch"
	"jadwa/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_WritesAsynchronously(t *testing.T) {
	db, err := database.OpenInMemory("notification_" + t.Name())
	require.NoError(t, err)
	repo := repository.NewNotificationRepository(db)
	queue := dispatch.New("notifications", 16, 2, time.Second, quietLogger())
	svc := NewService(repo, queue, quietLogger())
	ctx := context.Background()

	svc.Notify(ctx, "user-1", "Consultation Approved", "Your consultation has been approved", domain.NotifyCategoryConsultation, "/dashboard/client/chat")
	svc.Notify(ctx, "user-1", "Payment Confirmed", "Your payment was confirmed", domain.NotifyCategoryPayment, "")
	svc.Notify(ctx, "", "ignored", "no recipient", domain.NotifyCategoryPayment, "")
	require.NoError(t, queue.Close(ctx))

	list, unread, err := svc.GetUserNotifications(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, svc.MarkAsRead(ctx, list[0].ID, "user-1"))
	assert.ErrorIs(t, svc.MarkAsRead(ctx, list[1].ID, "someone-else"), domain.ErrNotFound)

	require.NoError(t, svc.MarkAllAsRead(ctx, "user-1"))
	count, err := svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

type failingRepo struct {
	*repository.NotificationRepository
}

func (failingRepo) Create(ctx context.Context, n *domain.Notification) error {
	return errors.New("database is locked")
}

func TestNotify_FailedWriteLoggedOnce(t *testing.T) {
	db, err := database.OpenInMemory("notification_" + t.Name())
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	queue := dispatch.New("notifications", 4, 1, time.Second, logger)
	svc := NewService(failingRepo{repository.NewNotificationRepository(db)}, queue, logger)

	svc.Notify(context.Background(), "user-1", "Payment Confirmed", "Your payment was confirmed", domain.NotifyCategoryPayment, "")
	require.NoError(t, queue.Close(context.Background()))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "level=WARN"), out)
	assert.Contains(t, out, "user-1")
	assert.Contains(t, out, "database is locked")
}

func TestCleanup_RemovesExpired(t *testing.T) {
	db, err := database.OpenInMemory("notification_" + t.Name())
	require.NoError(t, err)
	repo := repository.NewNotificationRepository(db)
	ctx := context.Background()

	old := &domain.Notification{UserID: "u", Title: "old", CreatedAt: time.Now().UTC().Add(-100 * 24 * time.Hour)}
	fresh := &domain.Notification{UserID: "u", Title: "fresh"}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	cleanup := NewCleanupService(repo, 90*24*time.Hour, 0, quietLogger())
	deleted, err := cleanup.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	list, err := repo.ListByUser(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].Title)
}
