package message

import (
	"context"
	"errors"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/preloader"
)

var ErrMessageNotFound = errors.New("message not found")

// Media is the attachment part of a message.
type Media struct {
	Photo    *media.Descriptor `json:"photo,omitempty"`
	Document *media.Descriptor `json:"document,omitempty"`
	PollID   string            `json:"poll_id,omitempty"`
	// Upload is set while the media is being sent from this client.
	Upload *preloader.Preloader `json:"-"`
}

// Descriptor returns the photo or document carried by the media.
func (m *Media) Descriptor() (media.Descriptor, bool) {
	switch {
	case m == nil:
		return media.Descriptor{}, false
	case m.Photo != nil:
		return *m.Photo, true
	case m.Document != nil:
		return *m.Document, true
	default:
		return media.Descriptor{}, false
	}
}

// Message is the slice of a chat message the attachment renderers read.
type Message struct {
	ID      int64     `json:"id"`
	ChatID  string    `json:"chat_id"`
	GroupID string    `json:"group_id,omitempty"`
	Text    string    `json:"text,omitempty"`
	IsOut   bool      `json:"is_out"`
	Date    time.Time `json:"date"`
	Media   *Media    `json:"media,omitempty"`
	// ReplyText is the HTML summary shown when the message is quoted.
	ReplyText string `json:"reply_text,omitempty"`
}

// IGroupedStorage resolves album members.
type IGroupedStorage interface {
	// GetGroupedMessageIDs returns the ids of a group in ascending order.
	GetGroupedMessageIDs(ctx context.Context, groupID string) ([]int64, error)
	GetMessage(ctx context.Context, id int64) (Message, error)
	SaveMessage(ctx context.Context, m Message) error
}
