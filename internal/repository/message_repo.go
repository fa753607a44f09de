package repository

import (
	"context"

	"gorm.io/gorm"

	"jadwa/internal/domain"
	"jadwa/internal/pkg/id"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = id.New()
	}
	return wrapErr(r.db.WithContext(ctx).Create(msg).Error, "message")
}

func (r *MessageRepository) GetByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	if err := r.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error; err != nil {
		return nil, wrapErr(err, "message")
	}
	return &msg, nil
}

// ListByConsultation returns a room's messages oldest first. With limit > 0
// only the newest limit messages older than beforeSeq (when set) are
// returned, still oldest first.
func (r *MessageRepository) ListByConsultation(ctx context.Context, consultationID string, limit int, beforeSeq int64) ([]domain.Message, error) {
	query := r.db.WithContext(ctx).Where("consultation_id = ?", consultationID)
	if beforeSeq > 0 {
		query = query.Where("seq < ?", beforeSeq)
	}

	var messages []domain.Message
	if limit <= 0 {
		err := query.Order("created_at ASC").Order("seq ASC").Find(&messages).Error
		return messages, wrapErr(err, "messages")
	}

	err := query.Order("created_at DESC").Order("seq DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, wrapErr(err, "messages")
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, messageID string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true)
	if res.Error != nil {
		return wrapErr(res.Error, "message")
	}
	if res.RowsAffected == 0 {
		return wrapErr(gorm.ErrRecordNotFound, "message")
	}
	return nil
}

// MarkRoomRead flags every unread message in a room not sent by readerID.
func (r *MessageRepository) MarkRoomRead(ctx context.Context, consultationID, readerID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("consultation_id = ?", consultationID).
		Where("sender_id <> ?", readerID).
		Where("is_read = ?", false).
		Update("is_read", true)
	return res.RowsAffected, wrapErr(res.Error, "messages")
}

// CountUnread counts messages in a room that userID has not read yet.
func (r *MessageRepository) CountUnread(ctx context.Context, consultationID, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("consultation_id = ?", consultationID).
		Where("sender_id <> ?", userID).
		Where("is_read = ?", false).
		Count(&count).Error
	return count, wrapErr(err, "messages")
}
