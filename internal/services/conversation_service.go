package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/domain/message"
	"alumnet-chat/internal/domain/outbox"
	"alumnet-chat/internal/repository"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"
	"alumnet-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConversationView is a conversation with the batch-fetched derived
// data the list/detail endpoints render. MemberNames maps participant
// user ids to display names.
type ConversationView struct {
	conversation.Conversation
	LastMessage *message.Message
	MemberNames map[int64]string
}

type ConversationService struct {
	db            database.Handle
	conversations repository.ConversationRepository
	users         repository.UserRepository
	postings      repository.PostingRepository
	aggregates    repository.AggregateRepository
	outbox        repository.OutboxRepository
	log           *logger.Logger
}

func NewConversationService(
	db database.Handle,
	conversations repository.ConversationRepository,
	users repository.UserRepository,
	postings repository.PostingRepository,
	aggregates repository.AggregateRepository,
	outboxRepo repository.OutboxRepository,
	log *logger.Logger,
) *ConversationService {
	return &ConversationService{
		db:            db,
		conversations: conversations,
		users:         users,
		postings:      postings,
		aggregates:    aggregates,
		outbox:        outboxRepo,
		log:           log,
	}
}

// requireActive validates candidate user ids before the first insert.
// A failed validation rejects the whole write with the missing ids
// named, so a bad id never turns into a foreign-key abort mid-way
// through a transaction.
func (s *ConversationService) requireActive(ctx context.Context, q database.DBTX, ids []int64) error {
	active, err := s.users.FilterActive(ctx, q, ids)
	if err != nil {
		return err
	}
	if len(active) == len(ids) {
		return nil
	}
	activeSet := make(map[int64]struct{}, len(active))
	for _, id := range active {
		activeSet[id] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := activeSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	return &chaterrors.ValidationError{Missing: missing}
}

// CreateOrFindDirect returns the one DIRECT conversation for the pair,
// creating it when absent. The pair key is normalized so argument order
// never matters. A concurrent creator losing the insert race adopts the
// winner's row on the retry pass.
func (s *ConversationService) CreateOrFindDirect(ctx context.Context, userA, userB int64) (conversation.Conversation, error) {
	var conv conversation.Conversation
	for attempt := 0; attempt < 2; attempt++ {
		err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
			c, err := s.CreateOrFindDirectTx(ctx, tx, userA, userB)
			if err != nil {
				return err
			}
			conv = c
			return nil
		})
		if errors.Is(err, chaterrors.ErrAlreadyExists) && attempt == 0 {
			continue
		}
		return conv, err
	}
	return conv, nil
}

// CreateOrFindDirectTx is the composition entry point: it runs against
// a caller-supplied handle and surfaces ErrAlreadyExists when the
// structural dedup constraint rejects the insert.
func (s *ConversationService) CreateOrFindDirectTx(ctx context.Context, q database.DBTX, userA, userB int64) (conversation.Conversation, error) {
	if userA == userB {
		return conversation.Conversation{}, fmt.Errorf("%w: direct conversation requires two distinct users", chaterrors.ErrInvalidInput)
	}
	if err := s.requireActive(ctx, q, []int64{userA, userB}); err != nil {
		return conversation.Conversation{}, err
	}

	key := conversation.DirectKey(userA, userB)
	existing, err := s.conversations.GetByDirectKey(ctx, q, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, chaterrors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeDirect,
		DirectKey: &key,
		CreatedAt: now,
	}
	if err := conv.Validate(); err != nil {
		return conversation.Conversation{}, err
	}
	if err := s.conversations.Create(ctx, q, &conv); err != nil {
		return conversation.Conversation{}, err
	}

	for _, userID := range []int64{userA, userB} {
		p := conversation.Participant{
			ConversationID: conv.ID,
			UserID:         userID,
			Role:           conversation.RoleMember,
			JoinedAt:       now,
		}
		if _, err := s.conversations.AddParticipant(ctx, q, &p); err != nil {
			return conversation.Conversation{}, err
		}
		conv.Participants = append(conv.Participants, p)
	}

	if err := recordOutboxEvent(ctx, q, s.outbox, outbox.EventConversationCreated, "conversation", conv.ID.String(), conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

// CreateGroup creates an explicit multi-party conversation. The creator
// is always a participant and owns the group.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID int64, name string, participantIDs []int64) (conversation.Conversation, error) {
	var conv conversation.Conversation
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		c, err := s.CreateGroupTx(ctx, tx, creatorID, name, participantIDs)
		if err != nil {
			return err
		}
		conv = c
		return nil
	})
	return conv, err
}

func (s *ConversationService) CreateGroupTx(ctx context.Context, q database.DBTX, creatorID int64, name string, participantIDs []int64) (conversation.Conversation, error) {
	if name == "" {
		return conversation.Conversation{}, fmt.Errorf("%w: group name is required", chaterrors.ErrInvalidInput)
	}

	ids := dedupeIDs(append([]int64{creatorID}, participantIDs...))
	if len(ids) < 2 {
		return conversation.Conversation{}, fmt.Errorf("%w: group requires at least two participants", chaterrors.ErrInvalidInput)
	}
	if err := s.requireActive(ctx, q, ids); err != nil {
		return conversation.Conversation{}, err
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeGroup,
		Name:      &name,
		CreatedAt: now,
	}
	if err := conv.Validate(); err != nil {
		return conversation.Conversation{}, err
	}
	if err := s.conversations.Create(ctx, q, &conv); err != nil {
		return conversation.Conversation{}, err
	}

	for _, userID := range ids {
		role := conversation.RoleMember
		if userID == creatorID {
			role = conversation.RoleOwner
		}
		p := conversation.Participant{
			ConversationID: conv.ID,
			UserID:         userID,
			Role:           role,
			JoinedAt:       now,
		}
		if _, err := s.conversations.AddParticipant(ctx, q, &p); err != nil {
			return conversation.Conversation{}, err
		}
		conv.Participants = append(conv.Participants, p)
	}

	if err := recordOutboxEvent(ctx, q, s.outbox, outbox.EventConversationCreated, "conversation", conv.ID.String(), conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

// CreateOrFindGroupForPosting returns the single discussion group for a
// posting, creating it on first call and joining the caller to it on
// every later call. The unique index on linked_posting_id guarantees at
// most one group per posting under concurrency.
func (s *ConversationService) CreateOrFindGroupForPosting(ctx context.Context, postingID, initiatorID int64) (conversation.Conversation, error) {
	var conv conversation.Conversation
	for attempt := 0; attempt < 2; attempt++ {
		err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
			c, err := s.CreateOrFindGroupForPostingTx(ctx, tx, postingID, initiatorID)
			if err != nil {
				return err
			}
			conv = c
			return nil
		})
		if errors.Is(err, chaterrors.ErrAlreadyExists) && attempt == 0 {
			// lost the creation race; the next pass finds the winner's
			// row and joins it instead
			continue
		}
		return conv, err
	}
	return conv, nil
}

func (s *ConversationService) CreateOrFindGroupForPostingTx(ctx context.Context, q database.DBTX, postingID, initiatorID int64) (conversation.Conversation, error) {
	if err := s.requireActive(ctx, q, []int64{initiatorID}); err != nil {
		return conversation.Conversation{}, err
	}

	existing, err := s.conversations.GetByPostingID(ctx, q, postingID)
	if err == nil {
		return s.joinExistingGroup(ctx, q, existing, initiatorID)
	}
	if !errors.Is(err, chaterrors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	post, err := s.postings.GetByID(ctx, q, postingID)
	if err != nil {
		if errors.Is(err, chaterrors.ErrNotFound) {
			return conversation.Conversation{}, fmt.Errorf("%w: posting %d", chaterrors.ErrNotFound, postingID)
		}
		return conversation.Conversation{}, err
	}

	now := time.Now()
	name := post.Title
	conv := conversation.Conversation{
		ID:              uuid.New(),
		Type:            conversation.TypePostLinked,
		Name:            &name,
		LinkedPostingID: &postingID,
		CreatedAt:       now,
	}
	if err := conv.Validate(); err != nil {
		return conversation.Conversation{}, err
	}
	if err := s.conversations.Create(ctx, q, &conv); err != nil {
		return conversation.Conversation{}, err
	}

	p := conversation.Participant{
		ConversationID: conv.ID,
		UserID:         initiatorID,
		Role:           conversation.RoleOwner,
		JoinedAt:       now,
	}
	if _, err := s.conversations.AddParticipant(ctx, q, &p); err != nil {
		return conversation.Conversation{}, err
	}
	conv.Participants = []conversation.Participant{p}

	if err := recordOutboxEvent(ctx, q, s.outbox, outbox.EventConversationCreated, "conversation", conv.ID.String(), conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationService) joinExistingGroup(ctx context.Context, q database.DBTX, conv conversation.Conversation, userID int64) (conversation.Conversation, error) {
	p := conversation.Participant{
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           conversation.RoleMember,
		JoinedAt:       time.Now(),
	}
	inserted, err := s.conversations.AddParticipant(ctx, q, &p)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if inserted {
		if err := recordOutboxEvent(ctx, q, s.outbox, outbox.EventParticipantAdded, "conversation", conv.ID.String(), p); err != nil {
			return conversation.Conversation{}, err
		}
	}
	parts, err := s.conversations.GetParticipants(ctx, q, conv.ID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	conv.Participants = parts
	return conv, nil
}

// FindGroupForPosting is the find-or-none read used by the posting UI.
func (s *ConversationService) FindGroupForPosting(ctx context.Context, postingID int64) (ConversationView, error) {
	conv, err := s.conversations.GetByPostingID(ctx, s.db, postingID)
	if err != nil {
		return ConversationView{}, err
	}
	return s.attachDerived(ctx, conv)
}

// GetByID returns the conversation with participants. Only current
// participants may read it.
func (s *ConversationService) GetByID(ctx context.Context, requesterID int64, id uuid.UUID) (ConversationView, error) {
	conv, err := s.conversations.GetByID(ctx, s.db, id)
	if err != nil {
		return ConversationView{}, err
	}
	view, err := s.attachDerived(ctx, conv)
	if err != nil {
		return ConversationView{}, err
	}
	if !isParticipant(view.Participants, requesterID) {
		return ConversationView{}, chaterrors.ErrForbidden
	}
	return view, nil
}

func (s *ConversationService) attachDerived(ctx context.Context, conv conversation.Conversation) (ConversationView, error) {
	views, err := s.assembleViews(ctx, []conversation.Conversation{conv})
	if err != nil {
		return ConversationView{}, err
	}
	return views[0], nil
}

// ListForUser pages the caller's conversations. Participants and last
// messages are fetched in two batch queries regardless of page size.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64, page, limit int) ([]ConversationView, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	convs, total, err := s.conversations.ListForUser(ctx, s.db, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.assembleViews(ctx, convs)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *ConversationService) assembleViews(ctx context.Context, convs []conversation.Conversation) ([]ConversationView, error) {
	ids := make([]uuid.UUID, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	participants, err := s.aggregates.ParticipantsFor(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	lastMessages, err := s.aggregates.LastMessages(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	var userIDs []int64
	seen := make(map[int64]struct{})
	for _, parts := range participants {
		for _, p := range parts {
			if _, ok := seen[p.UserID]; ok {
				continue
			}
			seen[p.UserID] = struct{}{}
			userIDs = append(userIDs, p.UserID)
		}
	}
	names := make(map[int64]string, len(userIDs))
	if len(userIDs) > 0 {
		members, err := s.users.GetByIDs(ctx, s.db, userIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range members {
			names[u.ID] = u.FullName
		}
	}

	views := make([]ConversationView, len(convs))
	for i, c := range convs {
		c.Participants = participants[c.ID]
		view := ConversationView{Conversation: c, MemberNames: names}
		if last, ok := lastMessages[c.ID]; ok {
			lastCopy := last
			view.LastMessage = &lastCopy
		}
		views[i] = view
	}
	return views, nil
}

// Archive marks the conversation archived; rows are never deleted.
func (s *ConversationService) Archive(ctx context.Context, requesterID int64, id uuid.UUID) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.conversations.GetParticipant(ctx, tx, id, requesterID)
		if err != nil {
			if errors.Is(err, chaterrors.ErrNotFound) {
				return chaterrors.ErrForbidden
			}
			return err
		}
		if !p.Role.CanModerate() {
			return chaterrors.ErrForbidden
		}
		return s.conversations.SetArchived(ctx, tx, id, true)
	})
}

// Rename changes a GROUP or POST_LINKED conversation's name.
func (s *ConversationService) Rename(ctx context.Context, requesterID int64, id uuid.UUID, name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", chaterrors.ErrInvalidInput)
	}
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		conv, err := s.conversations.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if conv.Type == conversation.TypeDirect {
			return fmt.Errorf("%w: direct conversations have no name", chaterrors.ErrInvalidInput)
		}
		p, err := s.conversations.GetParticipant(ctx, tx, id, requesterID)
		if err != nil {
			if errors.Is(err, chaterrors.ErrNotFound) {
				return chaterrors.ErrForbidden
			}
			return err
		}
		if !p.Role.CanModerate() {
			return chaterrors.ErrForbidden
		}
		return s.conversations.Rename(ctx, tx, id, name)
	})
}

// AddParticipant adds a user to a GROUP/POST_LINKED conversation.
// Re-adding an existing member is a no-op.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID uuid.UUID, requesterID, userID int64) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		conv, err := s.conversations.GetByID(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if conv.Type == conversation.TypeDirect {
			return fmt.Errorf("%w: direct conversations have a fixed pair of participants", chaterrors.ErrInvalidInput)
		}
		requester, err := s.conversations.GetParticipant(ctx, tx, conversationID, requesterID)
		if err != nil {
			if errors.Is(err, chaterrors.ErrNotFound) {
				return chaterrors.ErrForbidden
			}
			return err
		}
		if !requester.Role.CanModerate() {
			return chaterrors.ErrForbidden
		}
		if err := s.requireActive(ctx, tx, []int64{userID}); err != nil {
			return err
		}

		p := conversation.Participant{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           conversation.RoleMember,
			JoinedAt:       time.Now(),
		}
		inserted, err := s.conversations.AddParticipant(ctx, tx, &p)
		if err != nil {
			return err
		}
		if inserted {
			return recordOutboxEvent(ctx, tx, s.outbox, outbox.EventParticipantAdded, "conversation", conversationID.String(), p)
		}
		return nil
	})
}

// SetParticipantRole promotes or demotes a member between ADMIN and
// MEMBER. Only the owner may change roles, and the OWNER role itself
// never moves.
func (s *ConversationService) SetParticipantRole(ctx context.Context, conversationID uuid.UUID, requesterID, userID int64, role conversation.Role) error {
	if role != conversation.RoleAdmin && role != conversation.RoleMember {
		return fmt.Errorf("%w: role must be ADMIN or MEMBER", chaterrors.ErrInvalidInput)
	}
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		conv, err := s.conversations.GetByID(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if conv.Type == conversation.TypeDirect {
			return fmt.Errorf("%w: direct conversations have no roles to assign", chaterrors.ErrInvalidInput)
		}
		requester, err := s.conversations.GetParticipant(ctx, tx, conversationID, requesterID)
		if err != nil {
			if errors.Is(err, chaterrors.ErrNotFound) {
				return chaterrors.ErrForbidden
			}
			return err
		}
		if requester.Role != conversation.RoleOwner {
			return chaterrors.ErrForbidden
		}
		target, err := s.conversations.GetParticipant(ctx, tx, conversationID, userID)
		if err != nil {
			return err
		}
		if target.Role == conversation.RoleOwner {
			return fmt.Errorf("%w: the owner role cannot be reassigned", chaterrors.ErrInvalidInput)
		}
		if target.Role == role {
			return nil
		}
		if err := s.conversations.UpdateParticipantRole(ctx, tx, conversationID, userID, role); err != nil {
			return err
		}
		return recordOutboxEvent(ctx, tx, s.outbox, outbox.EventParticipantRole, "conversation", conversationID.String(), map[string]any{
			"conversation_id": conversationID,
			"user_id":         userID,
			"role":            role,
		})
	})
}

// RemoveParticipant removes a member (self-leave, or kick by a
// moderator). Removing the last participant archives the conversation
// instead of orphaning it.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID uuid.UUID, requesterID, userID int64) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		conv, err := s.conversations.GetByID(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if conv.Type == conversation.TypeDirect {
			return fmt.Errorf("%w: direct conversations have a fixed pair of participants", chaterrors.ErrInvalidInput)
		}
		if requesterID != userID {
			requester, err := s.conversations.GetParticipant(ctx, tx, conversationID, requesterID)
			if err != nil {
				if errors.Is(err, chaterrors.ErrNotFound) {
					return chaterrors.ErrForbidden
				}
				return err
			}
			if !requester.Role.CanModerate() {
				return chaterrors.ErrForbidden
			}
		}

		if err := s.conversations.RemoveParticipant(ctx, tx, conversationID, userID); err != nil {
			return err
		}
		count, err := s.conversations.CountParticipants(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := s.conversations.SetArchived(ctx, tx, conversationID, true); err != nil {
				return err
			}
		}
		return recordOutboxEvent(ctx, tx, s.outbox, outbox.EventParticipantRemoved, "conversation", conversationID.String(), map[string]any{
			"conversation_id": conversationID,
			"user_id":         userID,
		})
	})
}

func isParticipant(participants []conversation.Participant, userID int64) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
