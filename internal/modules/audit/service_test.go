package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jadwa/internal/database"
	"jadwa/internal/domain"
	"jadwa/internal/pkg/dispatch"
	"jadwa/internal/repository"
)

func TestRecord_PersistsThroughQueue(t *testing.T) {
	db, err := database.OpenInMemory("audit_" + t.Name())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	queue := dispatch.New("audit", 16, 1, time.Second, logger)
	svc := NewService(repository.NewAuditLogRepository(db), queue, logger)

	svc.Record(context.Background(), "admin-1", domain.AuditConfirmPayment, "payment", "p-1", map[string]any{"amount": 150.0})
	require.NoError(t, queue.Close(context.Background()))

	admin := &domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin, Status: domain.UserActive}
	logs, err := svc.Trail(context.Background(), admin, "payment", "p-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditConfirmPayment, logs[0].Action)

	var details map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Details, &details))
	assert.Equal(t, 150.0, details["amount"])
}

func TestTrail_RequiresAdmin(t *testing.T) {
	db, err := database.OpenInMemory("audit_" + t.Name())
	require.NoError(t, err)
	svc := NewService(repository.NewAuditLogRepository(db), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	client := &domain.Identity{UserID: "c-1", Role: domain.RoleClient, Status: domain.UserActive}
	_, err = svc.Trail(context.Background(), client, "payment", "p-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
