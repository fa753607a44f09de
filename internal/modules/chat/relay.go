// Package chat is the real-time message relay for consultation rooms. A
// message is persisted first and only then broadcast, one at a time per
// room, so live delivery order matches history order.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"jadwa/internal/domain"
)

const maxBodyRunes = 5000

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*domain.Identity, error)
}

// RoomAccess decides whether an identity may use a consultation's room.
type RoomAccess interface {
	CanAccessRoom(ctx context.Context, identity *domain.Identity, consultationID string) error
}

type messageStore interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, messageID string) (*domain.Message, error)
	ListByConsultation(ctx context.Context, consultationID string, limit int, beforeSeq int64) ([]domain.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkRoomRead(ctx context.Context, consultationID, readerID string) (int64, error)
	CountUnread(ctx context.Context, consultationID, userID string) (int64, error)
}

type userDirectory interface {
	SummariesByIDs(ctx context.Context, ids []string) (map[string]domain.UserSummary, error)
}

type sequencer interface {
	Next() int64
}

// RoomLocker is implemented by registries whose rooms span processes. The
// relay holds the returned lock from persist through broadcast.
type RoomLocker interface {
	LockRoom(ctx context.Context, roomID string) (func(), error)
}

type Options struct {
	// BufferSize is the per-connection outbound queue length.
	BufferSize int
	SendRate   rate.Limit
	SendBurst  int
}

type Deps struct {
	Auth     Authenticator
	Access   RoomAccess
	Messages messageStore
	Users    userDirectory
	Registry Registry
	Seq      sequencer
	Logger   *slog.Logger
	Options  Options
}

type SendInput struct {
	ConsultationID string
	Body           string
	FileURL        *string
	FileName       *string
}

type Relay struct {
	auth     Authenticator
	access   RoomAccess
	messages messageStore
	users    userDirectory
	registry Registry
	seq      sequencer
	logger   *slog.Logger
	opts     Options
	locks    *roomLocks
	nextConn atomic.Uint64
	now      func() time.Time
}

func NewRelay(d Deps) *Relay {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Options.BufferSize <= 0 {
		d.Options.BufferSize = 256
	}
	if d.Options.SendRate == 0 {
		d.Options.SendRate = rate.Limit(5)
	}
	if d.Options.SendBurst <= 0 {
		d.Options.SendBurst = 10
	}

	r := &Relay{
		auth:     d.Auth,
		access:   d.Access,
		messages: d.Messages,
		users:    d.Users,
		registry: d.Registry,
		seq:      d.Seq,
		logger:   d.Logger,
		opts:     d.Options,
		locks:    newRoomLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	r.registry.OnSlowConsumer(r.evict)
	return r
}

// NewConn creates an unauthenticated connection.
func (r *Relay) NewConn() *Conn {
	id := fmt.Sprintf("conn-%d", r.nextConn.Add(1))
	return newConn(id, r.opts.BufferSize, rate.NewLimiter(r.opts.SendRate, r.opts.SendBurst))
}

// Authenticate binds conn to the identity behind credential. A connection
// keeps its first identity; presenting another user's credential fails.
func (r *Relay) Authenticate(ctx context.Context, conn *Conn, credential string) (*domain.Identity, error) {
	identity, err := r.auth.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if err := r.Attach(conn, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Attach binds an already resolved identity to conn.
func (r *Relay) Attach(conn *Conn, identity *domain.Identity) error {
	if current := conn.Identity(); current != nil && current.UserID != identity.UserID {
		return fmt.Errorf("%w: connection is authenticated as another user", domain.ErrForbidden)
	}
	conn.setIdentity(identity)
	return nil
}

// Subscribe joins conn to a consultation room after re-checking that its
// identity may see the room.
func (r *Relay) Subscribe(ctx context.Context, conn *Conn, consultationID string) error {
	identity := conn.Identity()
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	if conn.Closed() {
		return fmt.Errorf("%w: connection closed", domain.ErrPrecondition)
	}
	if consultationID == "" {
		return fmt.Errorf("%w: consultation_id is required", domain.ErrValidation)
	}
	if err := r.access.CanAccessRoom(ctx, identity, consultationID); err != nil {
		return err
	}

	r.registry.Subscribe(consultationID, conn)
	r.logger.Debug("room subscribed", "conn_id", conn.ID(), "user_id", identity.UserID, "consultation_id", consultationID)
	return nil
}

func (r *Relay) Unsubscribe(conn *Conn, consultationID string) {
	r.registry.Unsubscribe(consultationID, conn)
}

// Send persists a message from conn's identity and broadcasts it to the
// room, sender included.
func (r *Relay) Send(ctx context.Context, conn *Conn, in SendInput) (*domain.Message, error) {
	identity := conn.Identity()
	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !conn.limiter.Allow() {
		return nil, fmt.Errorf("%w: slow down", domain.ErrRateLimited)
	}
	return r.send(ctx, identity, in)
}

// SendAs is Send for callers that authenticated outside the relay, such as
// the HTTP API.
func (r *Relay) SendAs(ctx context.Context, identity *domain.Identity, in SendInput) (*domain.Message, error) {
	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	return r.send(ctx, identity, in)
}

func (r *Relay) send(ctx context.Context, identity *domain.Identity, in SendInput) (*domain.Message, error) {
	if err := validateSend(&in); err != nil {
		return nil, err
	}
	if err := r.access.CanAccessRoom(ctx, identity, in.ConsultationID); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(in.ConsultationID)
	defer unlock()
	if locker, ok := r.registry.(RoomLocker); ok {
		release, err := locker.LockRoom(ctx, in.ConsultationID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		defer release()
	}

	msg := &domain.Message{
		ConsultationID: in.ConsultationID,
		Seq:            r.seq.Next(),
		SenderID:       identity.UserID,
		Body:           in.Body,
		FileURL:        in.FileURL,
		FileName:       in.FileName,
		CreatedAt:      r.now(),
	}
	if err := r.placeAfterLast(ctx, msg); err != nil {
		return nil, err
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		r.logger.Error("message persist failed",
			"consultation_id", in.ConsultationID,
			"sender_id", identity.UserID,
			"error", err,
		)
		if errors.Is(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	msg.Sender = r.senderSummary(ctx, identity)

	payload, err := json.Marshal(NewMessageEvent(msg))
	if err != nil {
		return nil, fmt.Errorf("encode message event: %w", err)
	}
	// The message is durable at this point; a failed fan-out is recovered
	// through History.
	if err := r.registry.Broadcast(ctx, in.ConsultationID, payload); err != nil {
		r.logger.Warn("message broadcast failed",
			"consultation_id", in.ConsultationID,
			"message_id", msg.ID,
			"error", err,
		)
	}
	return msg, nil
}

// placeAfterLast keeps (created_at, seq) ahead of the room's newest message
// when clocks or sequencers on different nodes disagree.
func (r *Relay) placeAfterLast(ctx context.Context, msg *domain.Message) error {
	last, err := r.messages.ListByConsultation(ctx, msg.ConsultationID, 1, 0)
	if err != nil {
		return err
	}
	if len(last) == 0 {
		return nil
	}
	prev := last[0]
	if msg.CreatedAt.Before(prev.CreatedAt) {
		msg.CreatedAt = prev.CreatedAt
	}
	if msg.CreatedAt.Equal(prev.CreatedAt) && msg.Seq <= prev.Seq {
		msg.Seq = prev.Seq + 1
	}
	return nil
}

func validateSend(in *SendInput) error {
	in.Body = strings.TrimSpace(in.Body)
	if in.ConsultationID == "" {
		return fmt.Errorf("%w: consultation_id is required", domain.ErrValidation)
	}
	hasFile := in.FileURL != nil && strings.TrimSpace(*in.FileURL) != ""
	if in.Body == "" && !hasFile {
		return fmt.Errorf("%w: message or file_url is required", domain.ErrValidation)
	}
	if in.FileName != nil && !hasFile {
		return fmt.Errorf("%w: file_name requires file_url", domain.ErrValidation)
	}
	if utf8.RuneCountInString(in.Body) > maxBodyRunes {
		return fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, maxBodyRunes)
	}
	return nil
}

func (r *Relay) senderSummary(ctx context.Context, identity *domain.Identity) *domain.UserSummary {
	summary := domain.UserSummary{ID: identity.UserID, FullName: identity.FullName}
	if r.users == nil {
		return &summary
	}
	found, err := r.users.SummariesByIDs(ctx, []string{identity.UserID})
	if err != nil {
		r.logger.Warn("sender lookup failed", "user_id", identity.UserID, "error", err)
		return &summary
	}
	if u, ok := found[identity.UserID]; ok {
		return &u
	}
	return &summary
}

// History returns a room's messages oldest first. limit <= 0 returns all of
// them; beforeSeq pages backwards.
func (r *Relay) History(ctx context.Context, identity *domain.Identity, consultationID string, limit int, beforeSeq int64) ([]domain.Message, error) {
	if err := r.access.CanAccessRoom(ctx, identity, consultationID); err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}
	messages, err := r.messages.ListByConsultation(ctx, consultationID, limit, beforeSeq)
	if err != nil {
		return nil, err
	}
	if err := r.attachSenders(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *Relay) attachSenders(ctx context.Context, messages []domain.Message) error {
	if len(messages) == 0 || r.users == nil {
		return nil
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.SenderID)
	}
	found, err := r.users.SummariesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range messages {
		if u, ok := found[messages[i].SenderID]; ok {
			messages[i].Sender = &u
		}
	}
	return nil
}

// MarkRead flags one message as read. Nothing is broadcast.
func (r *Relay) MarkRead(ctx context.Context, identity *domain.Identity, messageID string) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := r.access.CanAccessRoom(ctx, identity, msg.ConsultationID); err != nil {
		return err
	}
	return r.messages.MarkRead(ctx, messageID)
}

// MarkRoomRead flags every message in the room not sent by identity.
func (r *Relay) MarkRoomRead(ctx context.Context, identity *domain.Identity, consultationID string) (int64, error) {
	if err := r.access.CanAccessRoom(ctx, identity, consultationID); err != nil {
		return 0, err
	}
	return r.messages.MarkRoomRead(ctx, consultationID, identity.UserID)
}

func (r *Relay) UnreadCount(ctx context.Context, identity *domain.Identity, consultationID string) (int64, error) {
	if err := r.access.CanAccessRoom(ctx, identity, consultationID); err != nil {
		return 0, err
	}
	return r.messages.CountUnread(ctx, consultationID, identity.UserID)
}

// Disconnect removes conn from every room and closes it. Safe to call more
// than once.
func (r *Relay) Disconnect(conn *Conn) {
	r.registry.UnsubscribeAll(conn)
	conn.Close()
}

func (r *Relay) evict(sub Subscriber) {
	conn, ok := sub.(*Conn)
	if !ok {
		r.registry.UnsubscribeAll(sub)
		return
	}
	r.logger.Warn("evicting slow consumer", "conn_id", conn.ID())
	r.Disconnect(conn)
}
