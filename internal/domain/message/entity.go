package message

import (
	"encoding/json"
	"fmt"
	"time"

	chaterrors "alumnet-chat/pkg/errors"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText   Type = "TEXT"
	TypeImage  Type = "IMAGE"
	TypeFile   Type = "FILE"
	TypeLink   Type = "LINK"
	TypeSystem Type = "SYSTEM"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeLink, TypeSystem:
		return true
	}
	return false
}

// Message represents the messages table
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       int64
	Content        string
	Type           Type
	MediaURL       *string
	MediaMetadata  json.RawMessage
	ReplyToID      *uuid.UUID
	EditedAt       *time.Time
	DeletedAt      *time.Time
	CreatedAt      time.Time
}

func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Validate checks content and media shape for the message type. Media
// is carried exactly by non-TEXT messages.
func (m *Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", chaterrors.ErrInvalidInput, m.Type)
	}
	switch m.Type {
	case TypeText:
		if m.Content == "" {
			return fmt.Errorf("%w: text message requires content", chaterrors.ErrInvalidInput)
		}
		if m.MediaURL != nil {
			return fmt.Errorf("%w: text message cannot carry media", chaterrors.ErrInvalidInput)
		}
	case TypeImage, TypeFile, TypeLink, TypeSystem:
		if m.MediaURL == nil || *m.MediaURL == "" {
			return fmt.Errorf("%w: %s message requires a media url", chaterrors.ErrInvalidInput, m.Type)
		}
	}
	return nil
}

// Window selects a page of messages by keyset cursor. At most one of
// BeforeID/AfterID is set; both nil means "newest page".
type Window struct {
	BeforeID *uuid.UUID
	AfterID  *uuid.UUID
	Limit    int
}

// Reaction represents the message_reactions table. The composite key
// (message_id, user_id, emoji) makes re-reacting idempotent.
type Reaction struct {
	MessageID uuid.UUID
	UserID    int64
	Emoji     string
	CreatedAt time.Time
}
