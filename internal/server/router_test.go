package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jadwa/internal/config"
	"jadwa/internal/database"
	"jadwa/internal/domain"
	"jadwa/internal/modules/chat"
	"jadwa/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *apiError `json:"error"`
}

type testEnv struct {
	t     *testing.T
	app   *App
	srv   *httptest.Server
	users *repository.UserRepository
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		ServiceName:       "jadwa-test",
		JWTSecret:         "test-secret",
		JWTTTL:            time.Hour,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		RateLimitBurst:    1000,
		RelaySendRate:     50,
		RelaySendBurst:    50,
		RelayBufferSize:   64,
		Currency:          "SAR",
		NodeID:            1,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := New(context.Background(), testConfig(), db, nil, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	})

	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)

	return &testEnv{t: t, app: app, srv: srv, users: repository.NewUserRepository(db)}
}

func call[T any](e *testEnv, method, path, token string, body any) (int, envelope[T]) {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var out envelope[T]
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"user"`
}

func (e *testEnv) register(email string, role domain.UserRole) authData {
	e.t.Helper()
	status, res := call[authData](e, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":     email,
		"password":  "password123",
		"full_name": strings.Split(email, "@")[0],
		"role":      string(role),
	})
	require.Equal(e.t, http.StatusCreated, status, res.Error)
	return res.Data
}

func (e *testEnv) admin() string {
	e.t.Helper()
	u := &domain.User{Email: "admin@jadwa.test", FullName: "admin", Role: domain.RoleAdmin, Status: domain.UserActive}
	require.NoError(e.t, e.users.Create(context.Background(), u))
	token, err := e.app.Auth.IssueToken(u)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) activeConsultant(email, adminToken string) authData {
	e.t.Helper()
	consultant := e.register(email, domain.RoleConsultant)
	status, res := call[map[string]any](e, http.MethodPut, "/api/v1/admin/users/"+consultant.User.ID+"/status", adminToken,
		map[string]string{"status": "active"})
	require.Equal(e.t, http.StatusOK, status, res.Error)
	return consultant
}

type bookData struct {
	Consultation domain.Consultation `json:"consultation"`
	Payment      domain.Payment      `json:"payment"`
}

type consultationData struct {
	Consultation domain.Consultation `json:"consultation"`
}

type listData struct {
	Consultations []domain.Consultation `json:"consultations"`
}

func TestChatEngagementScenario(t *testing.T) {
	e := newTestEnv(t)
	adminToken := e.admin()
	client := e.register("client@jadwa.test", domain.RoleClient)
	consultant := e.register("consultant@jadwa.test", domain.RoleConsultant)
	assert.Equal(t, string(domain.UserPending), consultant.User.Status)

	status, _ := call[map[string]any](e, http.MethodPut, "/api/v1/admin/users/"+consultant.User.ID+"/status", adminToken,
		map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, status)

	// Booking creates the engagement and its pending payment.
	status, booked := call[bookData](e, http.MethodPost, "/api/v1/consultations/book", client.Token,
		map[string]any{"type": "chat", "price": 100})
	require.Equal(t, http.StatusCreated, status, booked.Error)
	consultationID := booked.Data.Consultation.ID
	assert.Equal(t, domain.ConsultationPending, booked.Data.Consultation.Status)
	assert.Equal(t, domain.PaymentPending, booked.Data.Payment.Status)
	assert.InDelta(t, 100, booked.Data.Payment.Amount, 0.001)

	// Unpaid chat engagements stay out of the client's list.
	status, mine := call[listData](e, http.MethodGet, "/api/v1/consultations/my", client.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, mine.Data.Consultations)

	status, confirmed := call[map[string]domain.Payment](e, http.MethodPut,
		"/api/v1/admin/payments/"+booked.Data.Payment.ID+"/confirm", adminToken, nil)
	require.Equal(t, http.StatusOK, status, confirmed.Error)
	assert.Equal(t, domain.PaymentCompleted, confirmed.Data["payment"].Status)

	status, approved := call[consultationData](e, http.MethodPut,
		"/api/v1/admin/consultations/"+consultationID+"/approve", adminToken,
		map[string]string{"consultant_id": consultant.User.ID})
	require.Equal(t, http.StatusOK, status, approved.Error)
	assert.Equal(t, domain.ConsultationConfirmed, approved.Data.Consultation.Status)
	require.NotNil(t, approved.Data.Consultation.ConsultantID)
	assert.Equal(t, consultant.User.ID, *approved.Data.Consultation.ConsultantID)

	// The consultant joins the room over the websocket.
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/ws/chat?token=" + consultant.Token
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(chat.ClientEvent{Type: chat.EventSubscribe, ConsultationID: consultationID}))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev chat.ServerEvent
	require.NoError(t, ws.ReadJSON(&ev))
	require.Equal(t, chat.EventSubscribed, ev.Type, ev.Error)

	status, sent := call[map[string]domain.Message](e, http.MethodPost,
		"/api/v1/consultations/"+consultationID+"/messages", client.Token, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusCreated, status, sent.Error)

	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, chat.EventNewMessage, ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hello", ev.Message.Body)
	assert.Equal(t, client.User.ID, ev.Message.SenderID)

	status, history := call[map[string][]domain.Message](e, http.MethodGet,
		"/api/v1/consultations/"+consultationID+"/messages", consultant.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, history.Data["messages"], 1)
	msg := history.Data["messages"][0]
	assert.Equal(t, "hello", msg.Body)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, client.User.ID, msg.Sender.ID)

	status, mine = call[listData](e, http.MethodGet, "/api/v1/consultations/my", client.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, mine.Data.Consultations, 1)
	assert.Equal(t, consultationID, mine.Data.Consultations[0].ID)
}

func TestRouter_AccessControl(t *testing.T) {
	e := newTestEnv(t)
	adminToken := e.admin()
	client := e.register("client@jadwa.test", domain.RoleClient)
	outsider := e.register("outsider@jadwa.test", domain.RoleClient)
	consultant := e.activeConsultant("consultant@jadwa.test", adminToken)

	status, res := call[map[string]any](e, http.MethodGet, "/api/v1/consultations/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "AUTH_HEADER_MISSING", res.Error.Code)

	status, _ = call[map[string]any](e, http.MethodGet, "/api/v1/admin/consultations", client.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, booked := call[bookData](e, http.MethodPost, "/api/v1/consultations/book", client.Token,
		map[string]any{"type": "video", "price": 50, "consultant_id": consultant.User.ID})
	require.Equal(t, http.StatusCreated, status, booked.Error)

	status, _ = call[consultationData](e, http.MethodGet,
		"/api/v1/consultations/"+booked.Data.Consultation.ID, consultant.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call[map[string]any](e, http.MethodGet,
		"/api/v1/consultations/"+booked.Data.Consultation.ID, outsider.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, res = call[map[string]any](e, http.MethodPost,
		"/api/v1/consultations/"+booked.Data.Consultation.ID+"/messages", outsider.Token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, res.Error)
	assert.Equal(t, string(domain.KindForbidden), res.Error.Code)
}

func TestRouter_ApproveReadsChunkedBody(t *testing.T) {
	e := newTestEnv(t)
	adminToken := e.admin()
	client := e.register("client@jadwa.test", domain.RoleClient)
	consultant := e.activeConsultant("consultant@jadwa.test", adminToken)

	status, booked := call[bookData](e, http.MethodPost, "/api/v1/consultations/book", client.Token,
		map[string]any{"type": "chat", "price": 80})
	require.Equal(t, http.StatusCreated, status, booked.Error)
	status, _ = call[map[string]any](e, http.MethodPut,
		"/api/v1/admin/payments/"+booked.Data.Payment.ID+"/confirm", adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	approvePath := "/api/v1/admin/consultations/" + booked.Data.Consultation.ID + "/approve"

	// No body at all still reaches the service.
	status, res := call[map[string]any](e, http.MethodPut, approvePath, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, res.Error)
	assert.Contains(t, res.Error.Message, "consultant_id is required")

	// Wrapping the reader hides its length, so the client sends it chunked.
	body := io.NopCloser(strings.NewReader(`{"consultant_id":"` + consultant.User.ID + `"}`))
	req, err := http.NewRequest(http.MethodPut, e.srv.URL+approvePath, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var approved envelope[consultationData]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&approved))
	require.NotNil(t, approved.Data.Consultation.ConsultantID)
	assert.Equal(t, consultant.User.ID, *approved.Data.Consultation.ConsultantID)
	assert.Equal(t, domain.ConsultationConfirmed, approved.Data.Consultation.Status)
}

func TestRouter_Health(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
