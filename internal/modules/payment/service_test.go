package payment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jadwa/internal/domain"
)

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
	order    []string
	created  int
}

func newMockPaymentRepo(ps ...*domain.Payment) *mockPaymentRepo {
	m := &mockPaymentRepo{payments: map[string]*domain.Payment{}}
	for _, p := range ps {
		m.payments[p.ID] = p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	if p.ID == "" {
		p.ID = fmt.Sprintf("pay-%d", m.created)
	}
	m.payments[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) MarkCompleted(ctx context.Context, paymentID, confirmedBy string, at time.Time) (*domain.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	switch p.Status {
	case domain.PaymentCompleted:
		cp := *p
		return &cp, false, nil
	case domain.PaymentPending:
	default:
		return nil, false, fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
	}
	p.Status = domain.PaymentCompleted
	p.ConfirmedBy = &confirmedBy
	p.ConfirmedAt = &at
	cp := *p
	return &cp, true, nil
}

func (m *mockPaymentRepo) ListByRelated(ctx context.Context, relatedID string, t domain.RelatedType) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.payments[m.order[i]]
		if p.RelatedID == relatedID && p.RelatedType == t {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) LatestCompleted(ctx context.Context, relatedID string, t domain.RelatedType) (*domain.Payment, error) {
	list, _ := m.ListByRelated(ctx, relatedID, t)
	for _, p := range list {
		if p.Status == domain.PaymentCompleted {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) CompletedRelatedIDs(ctx context.Context, relatedIDs []string, t domain.RelatedType) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range relatedIDs {
		if p, _ := m.LatestCompleted(ctx, id, t); p != nil {
			out[id] = true
		}
	}
	return out, nil
}

type mockConsultations struct {
	byID map[string]*domain.Consultation
}

func (m *mockConsultations) GetByID(ctx context.Context, consultationID string) (*domain.Consultation, error) {
	c, ok := m.byID[consultationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

type recordingNotifier struct {
	userIDs []string
}

func (r *recordingNotifier) Notify(ctx context.Context, userID, title, message, category, actionRef string) {
	r.userIDs = append(r.userIDs, userID)
}

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) Record(ctx context.Context, actorID, action, targetType, targetID string, details map[string]any) {
	r.actions = append(r.actions, action)
}

var (
	admin  = &domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin, Status: domain.UserActive}
	client = &domain.Identity{UserID: "client-1", Role: domain.RoleClient, Status: domain.UserActive}
)

func newTestService(repo *mockPaymentRepo) (*Service, *recordingNotifier, *recordingAudit) {
	consultations := &mockConsultations{byID: map[string]*domain.Consultation{
		"cons-1": {ID: "cons-1", ClientID: "client-1", Type: domain.ConsultationChat, Status: domain.ConsultationPending},
	}}
	n, a := &recordingNotifier{}, &recordingAudit{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, consultations, n, a, "SAR", logger), n, a
}

func pendingPayment(id string) *domain.Payment {
	return &domain.Payment{
		ID: id, UserID: "client-1", RelatedID: "cons-1", RelatedType: domain.RelatedConsultation,
		Amount: 100, Currency: "SAR", Status: domain.PaymentPending,
	}
}

func TestConfirm_AdminCompletesPayment(t *testing.T) {
	repo := newMockPaymentRepo(pendingPayment("pay-a"))
	svc, n, a := newTestService(repo)

	p, err := svc.Confirm(context.Background(), admin, "pay-a")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	require.NotNil(t, p.ConfirmedBy)
	assert.Equal(t, "admin-1", *p.ConfirmedBy)
	assert.Equal(t, []string{domain.AuditConfirmPayment}, a.actions)
	assert.Equal(t, []string{"client-1"}, n.userIDs)
}

func TestConfirm_Idempotent(t *testing.T) {
	repo := newMockPaymentRepo(pendingPayment("pay-a"))
	svc, n, a := newTestService(repo)

	_, err := svc.Confirm(context.Background(), admin, "pay-a")
	require.NoError(t, err)
	p, err := svc.Confirm(context.Background(), admin, "pay-a")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	assert.Len(t, a.actions, 1)
	assert.Len(t, n.userIDs, 1)
}

func TestConfirm_Rejections(t *testing.T) {
	failed := pendingPayment("pay-f")
	failed.Status = domain.PaymentFailed
	repo := newMockPaymentRepo(pendingPayment("pay-a"), failed)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, client, "pay-a")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	suspendedAdmin := &domain.Identity{UserID: "admin-2", Role: domain.RoleAdmin, Status: domain.UserSuspended}
	_, err = svc.Confirm(ctx, suspendedAdmin, "pay-a")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Confirm(ctx, admin, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Confirm(ctx, admin, "pay-f")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Confirm(ctx, nil, "pay-a")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestCreate(t *testing.T) {
	repo := newMockPaymentRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, client, CreatePaymentRequest{ConsultationID: "cons-1", Amount: 50, PaymentMethod: "bank_transfer"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, p.Status)
	assert.Equal(t, "SAR", p.Currency)
	assert.Equal(t, domain.RelatedConsultation, p.RelatedType)

	other := &domain.Identity{UserID: "client-2", Role: domain.RoleClient, Status: domain.UserActive}
	_, err = svc.Create(ctx, other, CreatePaymentRequest{ConsultationID: "cons-1", Amount: 50})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Create(ctx, client, CreatePaymentRequest{ConsultationID: "cons-1", Amount: 0})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListForEngagement(t *testing.T) {
	repo := newMockPaymentRepo(pendingPayment("pay-a"), pendingPayment("pay-b"))
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	list, err := svc.ListForEngagement(ctx, client, "cons-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pay-b", list[0].ID)

	_, err = svc.ListForEngagement(ctx, admin, "cons-1")
	require.NoError(t, err)

	stranger := &domain.Identity{UserID: "client-9", Role: domain.RoleClient, Status: domain.UserActive}
	_, err = svc.ListForEngagement(ctx, stranger, "cons-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGate(t *testing.T) {
	repo := newMockPaymentRepo(pendingPayment("pay-a"))
	gate := NewGate(repo)
	ctx := context.Background()

	ok, err := gate.IsCompleted(ctx, "cons-1", domain.RelatedConsultation)
	require.NoError(t, err)
	assert.False(t, ok)

	eff, err := gate.Effective(ctx, "cons-1", domain.RelatedConsultation)
	require.NoError(t, err)
	assert.Nil(t, eff)

	_, _, err = repo.MarkCompleted(ctx, "pay-a", "admin-1", time.Now())
	require.NoError(t, err)

	ok, err = gate.IsCompleted(ctx, "cons-1", domain.RelatedConsultation)
	require.NoError(t, err)
	assert.True(t, ok)

	set, err := gate.CompletedSet(ctx, []string{"cons-1", "cons-2"}, domain.RelatedConsultation)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"cons-1": true}, set)
}
