package conversation

import (
	"fmt"
	"time"

	chaterrors "alumnet-chat/pkg/errors"

	"github.com/google/uuid"
)

// Type is the conversation kind. Creation and validation switch over it
// exhaustively; adding a kind without updating those switches is a
// compile-visible change, not a silent fall-through.
type Type string

const (
	TypeDirect     Type = "DIRECT"
	TypeGroup      Type = "GROUP"
	TypePostLinked Type = "POST_LINKED"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDirect, TypeGroup, TypePostLinked:
		return true
	}
	return false
}

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Conversation represents the conversations table
type Conversation struct {
	ID              uuid.UUID
	Type            Type
	Name            *string
	DirectKey       *string
	LinkedPostingID *int64
	IsArchived      bool
	LastMessageAt   *time.Time
	CreatedAt       time.Time

	Participants []Participant
}

// Participant represents the participants table
type Participant struct {
	ConversationID    uuid.UUID
	UserID            int64
	Role              Role
	JoinedAt          time.Time
	LastReadMessageID *uuid.UUID
}

// DirectKey normalizes an unordered user pair into the dedup key the
// DIRECT uniqueness constraint is built on, so (a,b) and (b,a) collide.
func DirectKey(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Validate checks the per-type structural invariants.
func (c *Conversation) Validate() error {
	switch c.Type {
	case TypeDirect:
		if c.DirectKey == nil || *c.DirectKey == "" {
			return fmt.Errorf("%w: direct conversation requires a pair key", chaterrors.ErrInvalidInput)
		}
		if c.LinkedPostingID != nil {
			return fmt.Errorf("%w: direct conversation cannot reference a posting", chaterrors.ErrInvalidInput)
		}
	case TypeGroup:
		if c.Name == nil || *c.Name == "" {
			return fmt.Errorf("%w: group conversation requires a name", chaterrors.ErrInvalidInput)
		}
	case TypePostLinked:
		if c.LinkedPostingID == nil {
			return fmt.Errorf("%w: post-linked conversation requires a posting id", chaterrors.ErrInvalidInput)
		}
		if c.Name == nil || *c.Name == "" {
			return fmt.Errorf("%w: post-linked conversation requires a name", chaterrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown conversation type %q", chaterrors.ErrInvalidInput, c.Type)
	}
	return nil
}

// CanModerate reports whether the role may remove participants or
// delete other members' messages.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleAdmin
}
