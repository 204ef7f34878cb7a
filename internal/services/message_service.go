package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"alumnet-chat/internal/domain/message"
	"alumnet-chat/internal/domain/outbox"
	"alumnet-chat/internal/repository"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"
	"alumnet-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SendInput is the caller-supplied part of a new message.
type SendInput struct {
	Content       string
	Type          message.Type
	MediaURL      *string
	MediaMetadata json.RawMessage
	ReplyToID     *uuid.UUID
}

// MessageView couples a message with its batch-fetched reactions.
type MessageView struct {
	message.Message
	Reactions []message.Reaction
}

type MessageService struct {
	db            database.Handle
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	reactions     repository.ReactionRepository
	aggregates    repository.AggregateRepository
	outbox        repository.OutboxRepository
	log           *logger.Logger
}

func NewMessageService(
	db database.Handle,
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	reactions repository.ReactionRepository,
	aggregates repository.AggregateRepository,
	outboxRepo repository.OutboxRepository,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		db:            db,
		messages:      messages,
		conversations: conversations,
		reactions:     reactions,
		aggregates:    aggregates,
		outbox:        outboxRepo,
		log:           log,
	}
}

// Send appends a message. The participant check, the insert, the
// conversation activity bump and the outbox event are one transaction.
func (s *MessageService) Send(ctx context.Context, conversationID uuid.UUID, senderID int64, in SendInput) (message.Message, error) {
	var m message.Message
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		sent, err := s.SendTx(ctx, tx, conversationID, senderID, in)
		if err != nil {
			return err
		}
		m = sent
		return nil
	})
	return m, err
}

// SendTx is the composition entry point for callers that already hold a
// transaction (e.g. a posting workflow seeding a discussion group with
// a SYSTEM message).
func (s *MessageService) SendTx(ctx context.Context, q database.DBTX, conversationID uuid.UUID, senderID int64, in SendInput) (message.Message, error) {
	conv, err := s.conversations.GetByID(ctx, q, conversationID)
	if err != nil {
		return message.Message{}, err
	}
	if conv.IsArchived {
		return message.Message{}, fmt.Errorf("%w: conversation is archived", chaterrors.ErrInvalidInput)
	}
	if _, err := s.conversations.GetParticipant(ctx, q, conversationID, senderID); err != nil {
		if errors.Is(err, chaterrors.ErrNotFound) {
			return message.Message{}, chaterrors.ErrForbidden
		}
		return message.Message{}, err
	}

	now := time.Now()
	m := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        in.Content,
		Type:           in.Type,
		MediaURL:       in.MediaURL,
		MediaMetadata:  in.MediaMetadata,
		ReplyToID:      in.ReplyToID,
		CreatedAt:      now,
	}
	if m.Type == "" {
		m.Type = message.TypeText
	}
	if err := m.Validate(); err != nil {
		return message.Message{}, err
	}

	if in.ReplyToID != nil {
		parent, err := s.messages.GetByID(ctx, q, *in.ReplyToID)
		if err != nil {
			return message.Message{}, err
		}
		if parent.ConversationID != conversationID {
			return message.Message{}, fmt.Errorf("%w: reply target belongs to another conversation", chaterrors.ErrInvalidInput)
		}
	}

	if err := s.messages.Insert(ctx, q, &m); err != nil {
		return message.Message{}, err
	}
	if err := s.conversations.TouchLastMessage(ctx, q, conversationID, now); err != nil {
		return message.Message{}, err
	}
	if err := recordOutboxEvent(ctx, q, s.outbox, outbox.EventMessageSent, "message", conversationID.String(), m); err != nil {
		return message.Message{}, err
	}
	return m, nil
}

// Edit rewrites a message's content. Only the original sender may edit;
// id and created_at never change.
func (s *MessageService) Edit(ctx context.Context, messageID uuid.UUID, editorID int64, newContent string) (message.Message, error) {
	if newContent == "" {
		return message.Message{}, fmt.Errorf("%w: content is required", chaterrors.ErrInvalidInput)
	}
	var edited message.Message
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		m, err := s.messages.GetByID(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if m.Deleted() {
			return chaterrors.ErrNotFound
		}
		if m.SenderID != editorID {
			return chaterrors.ErrForbidden
		}
		now := time.Now()
		if err := s.messages.Edit(ctx, tx, messageID, newContent, now); err != nil {
			return err
		}
		m.Content = newContent
		m.EditedAt = &now
		edited = m
		return nil
	})
	return edited, err
}

// SoftDelete hides a message's content but keeps the row and its
// reactions for audit counts. Sender, OWNER and ADMIN may delete;
// deleting an already-deleted message is a no-op.
func (s *MessageService) SoftDelete(ctx context.Context, messageID uuid.UUID, requesterID int64) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		m, err := s.messages.GetByID(ctx, tx, messageID)
		if err != nil {
			return err
		}
		if m.Deleted() {
			return nil
		}
		if m.SenderID != requesterID {
			p, err := s.conversations.GetParticipant(ctx, tx, m.ConversationID, requesterID)
			if err != nil {
				if errors.Is(err, chaterrors.ErrNotFound) {
					return chaterrors.ErrForbidden
				}
				return err
			}
			if !p.Role.CanModerate() {
				return chaterrors.ErrForbidden
			}
		}
		if err := s.messages.SoftDelete(ctx, tx, messageID, time.Now()); err != nil {
			return err
		}
		return recordOutboxEvent(ctx, tx, s.outbox, outbox.EventMessageDeleted, "message", m.ConversationID.String(), map[string]any{
			"message_id":      messageID,
			"conversation_id": m.ConversationID,
			"deleted_by":      requesterID,
		})
	})
}

// List pages a conversation's history with reactions attached from one
// batch query; it never issues a per-message reaction lookup.
func (s *MessageService) List(ctx context.Context, conversationID uuid.UUID, requesterID int64, w message.Window) ([]MessageView, error) {
	if _, err := s.conversations.GetParticipant(ctx, s.db, conversationID, requesterID); err != nil {
		if errors.Is(err, chaterrors.ErrNotFound) {
			return nil, chaterrors.ErrForbidden
		}
		return nil, err
	}

	msgs, err := s.messages.ListWindow(ctx, s.db, conversationID, w)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	reactions, err := s.aggregates.ReactionsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = MessageView{Message: m, Reactions: reactions[m.ID]}
	}
	return views, nil
}

// AddReaction records the (message, user, emoji) triple; repeating it
// is a no-op. Reacting to a deleted message is rejected.
func (s *MessageService) AddReaction(ctx context.Context, messageID uuid.UUID, userID int64, emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is required", chaterrors.ErrInvalidInput)
	}
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		m, err := s.reactionTarget(ctx, tx, messageID, userID)
		if err != nil {
			return err
		}
		inserted, err := s.reactions.Add(ctx, tx, &message.Reaction{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		if inserted {
			return recordOutboxEvent(ctx, tx, s.outbox, outbox.EventReactionAdded, "message", m.ConversationID.String(), map[string]any{
				"message_id": messageID,
				"user_id":    userID,
				"emoji":      emoji,
			})
		}
		return nil
	})
}

func (s *MessageService) RemoveReaction(ctx context.Context, messageID uuid.UUID, userID int64, emoji string) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.reactionTarget(ctx, tx, messageID, userID); err != nil {
			return err
		}
		return s.reactions.Remove(ctx, tx, messageID, userID, emoji)
	})
}

func (s *MessageService) reactionTarget(ctx context.Context, q database.DBTX, messageID uuid.UUID, userID int64) (message.Message, error) {
	m, err := s.messages.GetByID(ctx, q, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if m.Deleted() {
		return message.Message{}, fmt.Errorf("%w: message is deleted", chaterrors.ErrInvalidInput)
	}
	if _, err := s.conversations.GetParticipant(ctx, q, m.ConversationID, userID); err != nil {
		if errors.Is(err, chaterrors.ErrNotFound) {
			return message.Message{}, chaterrors.ErrForbidden
		}
		return message.Message{}, err
	}
	return m, nil
}

// MarkRead moves the participant's read marker to the given message, or
// to the conversation's newest message when none is given. Marking an
// empty conversation read is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, conversationID uuid.UUID, userID int64, messageID *uuid.UUID) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := s.conversations.GetParticipant(ctx, tx, conversationID, userID); err != nil {
			if errors.Is(err, chaterrors.ErrNotFound) {
				return chaterrors.ErrForbidden
			}
			return err
		}

		target := uuid.Nil
		if messageID != nil {
			m, err := s.messages.GetByID(ctx, tx, *messageID)
			if err != nil {
				return err
			}
			if m.ConversationID != conversationID {
				return fmt.Errorf("%w: message belongs to another conversation", chaterrors.ErrInvalidInput)
			}
			target = *messageID
		} else {
			latest, err := s.messages.LatestID(ctx, tx, conversationID)
			if err != nil {
				if errors.Is(err, chaterrors.ErrNotFound) {
					return nil
				}
				return err
			}
			target = latest
		}
		return s.conversations.SetLastRead(ctx, tx, conversationID, userID, target)
	})
}
