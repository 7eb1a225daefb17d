package chatstorage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type messageRecord struct {
	ID        int64             `gorm:"primaryKey;autoIncrement:false"`
	ChatID    string            `gorm:"index;size:128"`
	GroupID   string            `gorm:"index;size:64"`
	Text      string            `gorm:"type:text"`
	ReplyText string            `gorm:"type:text"`
	IsOut     bool              `gorm:"not null;default:false"`
	Date      time.Time         `gorm:"index"`
	Photo     *media.Descriptor `gorm:"serializer:json"`
	Document  *media.Descriptor `gorm:"serializer:json"`
	PollID    string            `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (messageRecord) TableName() string { return "messages" }

func toRecord(m domainMessage.Message) messageRecord {
	rec := messageRecord{
		ID:        m.ID,
		ChatID:    m.ChatID,
		GroupID:   strings.TrimSpace(m.GroupID),
		Text:      m.Text,
		ReplyText: m.ReplyText,
		IsOut:     m.IsOut,
		Date:      m.Date,
	}
	if m.Media != nil {
		rec.Photo = m.Media.Photo
		rec.Document = m.Media.Document
		rec.PollID = m.Media.PollID
	}
	return rec
}

func (r messageRecord) toDomain() domainMessage.Message {
	m := domainMessage.Message{
		ID:        r.ID,
		ChatID:    r.ChatID,
		GroupID:   r.GroupID,
		Text:      r.Text,
		ReplyText: r.ReplyText,
		IsOut:     r.IsOut,
		Date:      r.Date,
	}
	if r.Photo != nil || r.Document != nil || r.PollID != "" {
		m.Media = &domainMessage.Media{Photo: r.Photo, Document: r.Document, PollID: r.PollID}
	}
	return m
}

// GormRepository stores messages and answers album membership queries.
type GormRepository struct {
	db *gorm.DB
}

var _ domainMessage.IGroupedStorage = (*GormRepository)(nil)

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the messages table.
func (r *GormRepository) Migrate() error {
	if err := r.db.AutoMigrate(&messageRecord{}); err != nil {
		return fmt.Errorf("failed to migrate messages: %w", err)
	}
	return nil
}

func (r *GormRepository) GetGroupedMessageIDs(ctx context.Context, groupID string) ([]int64, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, nil
	}
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("group_id = ?", groupID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list group %s: %w", groupID, err)
	}
	return ids, nil
}

func (r *GormRepository) GetMessage(ctx context.Context, id int64) (domainMessage.Message, error) {
	var rec messageRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainMessage.Message{}, fmt.Errorf("%w: %d", domainMessage.ErrMessageNotFound, id)
	}
	if err != nil {
		return domainMessage.Message{}, fmt.Errorf("failed to get message %d: %w", id, err)
	}
	return rec.toDomain(), nil
}

func (r *GormRepository) SaveMessage(ctx context.Context, m domainMessage.Message) error {
	rec := toRecord(m)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save message %d: %w", m.ID, err)
	}
	return nil
}

// CountMessages returns the number of stored messages.
func (r *GormRepository) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&messageRecord{}).Count(&n).Error
	return n, err
}
