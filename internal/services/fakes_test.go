package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/domain/message"
	"alumnet-chat/internal/domain/outbox"
	"alumnet-chat/internal/domain/posting"
	"alumnet-chat/internal/domain/user"
	"alumnet-chat/pkg/database"
	chaterrors "alumnet-chat/pkg/errors"
	"alumnet-chat/pkg/logger"
)

// fakeTx satisfies pgx.Tx for transaction plumbing. Only Commit and
// Rollback are ever reached; the store fakes ignore the handle they are
// given, so the embedded nil interface is never dereferenced.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// fakeHandle satisfies database.Handle.
type fakeHandle struct {
	database.DBTX
}

func (fakeHandle) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func newFakeHandle() database.Handle { return fakeHandle{} }

type reactionKey struct {
	messageID uuid.UUID
	userID    int64
	emoji     string
}

// fakeStore is an in-memory stand-in for every repository interface,
// mirroring the constraint behavior of the real schema: the partial
// unique indexes surface as ErrAlreadyExists, ON CONFLICT DO NOTHING
// surfaces as inserted=false.
type fakeStore struct {
	conversations map[uuid.UUID]conversation.Conversation
	byDirectKey   map[string]uuid.UUID
	byPostingID   map[int64]uuid.UUID
	participants  map[uuid.UUID]map[int64]conversation.Participant
	messages      map[uuid.UUID]message.Message
	reactions     map[reactionKey]message.Reaction
	events        []outbox.OutboxEvent
	activeUsers   map[int64]bool
	userNames     map[int64]string
	postings      map[int64]posting.Posting
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		byDirectKey:   make(map[string]uuid.UUID),
		byPostingID:   make(map[int64]uuid.UUID),
		participants:  make(map[uuid.UUID]map[int64]conversation.Participant),
		messages:      make(map[uuid.UUID]message.Message),
		reactions:     make(map[reactionKey]message.Reaction),
		activeUsers:   make(map[int64]bool),
		userNames:     make(map[int64]string),
		postings:      make(map[int64]posting.Posting),
	}
}

func (f *fakeStore) addUser(id int64, active bool) {
	f.activeUsers[id] = active
}

func (f *fakeStore) nameUser(id int64, name string) {
	f.userNames[id] = name
}

func (f *fakeStore) addPosting(id int64, title string, authorID int64) {
	f.postings[id] = posting.Posting{ID: id, Title: title, AuthorID: authorID}
}

func (f *fakeStore) eventTypes() []string {
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.EventType
	}
	return out
}

// --- ConversationRepository ---

func (f *fakeStore) Create(ctx context.Context, db database.DBTX, c *conversation.Conversation) error {
	if c.DirectKey != nil {
		if _, ok := f.byDirectKey[*c.DirectKey]; ok {
			return chaterrors.ErrAlreadyExists
		}
	}
	if c.LinkedPostingID != nil {
		if _, ok := f.byPostingID[*c.LinkedPostingID]; ok {
			return chaterrors.ErrAlreadyExists
		}
	}
	stored := *c
	stored.Participants = nil
	f.conversations[c.ID] = stored
	if c.DirectKey != nil {
		f.byDirectKey[*c.DirectKey] = c.ID
	}
	if c.LinkedPostingID != nil {
		f.byPostingID[*c.LinkedPostingID] = c.ID
	}
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, db database.DBTX, id uuid.UUID) (conversation.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return conversation.Conversation{}, chaterrors.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) GetByDirectKey(ctx context.Context, db database.DBTX, key string) (conversation.Conversation, error) {
	id, ok := f.byDirectKey[key]
	if !ok {
		return conversation.Conversation{}, chaterrors.ErrNotFound
	}
	return f.conversations[id], nil
}

func (f *fakeStore) GetByPostingID(ctx context.Context, db database.DBTX, postingID int64) (conversation.Conversation, error) {
	id, ok := f.byPostingID[postingID]
	if !ok {
		return conversation.Conversation{}, chaterrors.ErrNotFound
	}
	return f.conversations[id], nil
}

func (f *fakeStore) ListForUser(ctx context.Context, db database.DBTX, userID int64, limit, offset int) ([]conversation.Conversation, int64, error) {
	var out []conversation.Conversation
	for id, members := range f.participants {
		if _, ok := members[userID]; ok {
			out = append(out, f.conversations[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeStore) SetArchived(ctx context.Context, db database.DBTX, id uuid.UUID, archived bool) error {
	c, ok := f.conversations[id]
	if !ok {
		return chaterrors.ErrNotFound
	}
	c.IsArchived = archived
	f.conversations[id] = c
	return nil
}

func (f *fakeStore) Rename(ctx context.Context, db database.DBTX, id uuid.UUID, name string) error {
	c, ok := f.conversations[id]
	if !ok {
		return chaterrors.ErrNotFound
	}
	c.Name = &name
	f.conversations[id] = c
	return nil
}

func (f *fakeStore) TouchLastMessage(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error {
	c, ok := f.conversations[id]
	if !ok {
		return chaterrors.ErrNotFound
	}
	c.LastMessageAt = &at
	f.conversations[id] = c
	return nil
}

func (f *fakeStore) AddParticipant(ctx context.Context, db database.DBTX, p *conversation.Participant) (bool, error) {
	members, ok := f.participants[p.ConversationID]
	if !ok {
		members = make(map[int64]conversation.Participant)
		f.participants[p.ConversationID] = members
	}
	if _, exists := members[p.UserID]; exists {
		return false, nil
	}
	members[p.UserID] = *p
	return true, nil
}

func (f *fakeStore) RemoveParticipant(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64) error {
	members := f.participants[conversationID]
	if _, ok := members[userID]; !ok {
		return chaterrors.ErrNotFound
	}
	delete(members, userID)
	return nil
}

func (f *fakeStore) GetParticipant(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64) (conversation.Participant, error) {
	p, ok := f.participants[conversationID][userID]
	if !ok {
		return conversation.Participant{}, chaterrors.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetParticipants(ctx context.Context, db database.DBTX, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var out []conversation.Participant
	for _, p := range f.participants[conversationID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeStore) UpdateParticipantRole(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64, role conversation.Role) error {
	p, ok := f.participants[conversationID][userID]
	if !ok {
		return chaterrors.ErrNotFound
	}
	p.Role = role
	f.participants[conversationID][userID] = p
	return nil
}

func (f *fakeStore) CountParticipants(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (int64, error) {
	return int64(len(f.participants[conversationID])), nil
}

func (f *fakeStore) SetLastRead(ctx context.Context, db database.DBTX, conversationID uuid.UUID, userID int64, messageID uuid.UUID) error {
	p, ok := f.participants[conversationID][userID]
	if !ok {
		return chaterrors.ErrNotFound
	}
	id := messageID
	p.LastReadMessageID = &id
	f.participants[conversationID][userID] = p
	return nil
}

// --- MessageRepository ---

func (f *fakeStore) Insert(ctx context.Context, db database.DBTX, m *message.Message) error {
	f.messages[m.ID] = *m
	return nil
}

func (f *fakeStore) GetMessageByID(ctx context.Context, db database.DBTX, id uuid.UUID) (message.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return message.Message{}, chaterrors.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) ListWindow(ctx context.Context, db database.DBTX, conversationID uuid.UUID, w message.Window) ([]message.Message, error) {
	var out []message.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if w.Limit > 0 && len(out) > w.Limit {
		out = out[:w.Limit]
	}
	return out, nil
}

func (f *fakeStore) Edit(ctx context.Context, db database.DBTX, id uuid.UUID, content string, editedAt time.Time) error {
	m, ok := f.messages[id]
	if !ok || m.Deleted() {
		return chaterrors.ErrNotFound
	}
	m.Content = content
	at := editedAt
	m.EditedAt = &at
	f.messages[id] = m
	return nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error {
	m, ok := f.messages[id]
	if !ok {
		return chaterrors.ErrNotFound
	}
	when := at
	m.DeletedAt = &when
	m.Content = ""
	m.MediaURL = nil
	m.MediaMetadata = nil
	f.messages[id] = m
	return nil
}

func (f *fakeStore) LatestID(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (uuid.UUID, error) {
	var latest *message.Message
	for id := range f.messages {
		m := f.messages[id]
		if m.ConversationID != conversationID {
			continue
		}
		if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
			latest = &m
		}
	}
	if latest == nil {
		return uuid.Nil, chaterrors.ErrNotFound
	}
	return latest.ID, nil
}

// --- ReactionRepository ---

func (f *fakeStore) Add(ctx context.Context, db database.DBTX, r *message.Reaction) (bool, error) {
	key := reactionKey{r.MessageID, r.UserID, r.Emoji}
	if _, ok := f.reactions[key]; ok {
		return false, nil
	}
	f.reactions[key] = *r
	return true, nil
}

func (f *fakeStore) Remove(ctx context.Context, db database.DBTX, messageID uuid.UUID, userID int64, emoji string) error {
	key := reactionKey{messageID, userID, emoji}
	if _, ok := f.reactions[key]; !ok {
		return chaterrors.ErrNotFound
	}
	delete(f.reactions, key)
	return nil
}

// --- AggregateRepository ---

func (f *fakeStore) LastMessages(ctx context.Context, db database.DBTX, conversationIDs []uuid.UUID) (map[uuid.UUID]message.Message, error) {
	out := make(map[uuid.UUID]message.Message)
	for _, cid := range conversationIDs {
		id, err := f.LatestID(ctx, db, cid)
		if err != nil {
			continue
		}
		out[cid] = f.messages[id]
	}
	return out, nil
}

func (f *fakeStore) ParticipantsFor(ctx context.Context, db database.DBTX, conversationIDs []uuid.UUID) (map[uuid.UUID][]conversation.Participant, error) {
	out := make(map[uuid.UUID][]conversation.Participant)
	for _, cid := range conversationIDs {
		parts, _ := f.GetParticipants(ctx, db, cid)
		if len(parts) > 0 {
			out[cid] = parts
		}
	}
	return out, nil
}

func (f *fakeStore) ReactionsFor(ctx context.Context, db database.DBTX, messageIDs []uuid.UUID) (map[uuid.UUID][]message.Reaction, error) {
	out := make(map[uuid.UUID][]message.Reaction)
	for _, mid := range messageIDs {
		for key, r := range f.reactions {
			if key.messageID == mid {
				out[mid] = append(out[mid], r)
			}
		}
	}
	return out, nil
}

// --- OutboxRepository ---

func (f *fakeStore) CreateEvent(ctx context.Context, db database.DBTX, event *outbox.OutboxEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeStore) ClaimPending(ctx context.Context, db database.DBTX, limit, maxRetries int) ([]outbox.OutboxEvent, error) {
	var out []outbox.OutboxEvent
	for i := range f.events {
		if f.events[i].Status == outbox.StatusPending && f.events[i].RetryCount < maxRetries {
			f.events[i].Status = outbox.StatusProcessing
			out = append(out, f.events[i])
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, db database.DBTX, id uuid.UUID) error {
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Status = outbox.StatusCompleted
		}
	}
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, db database.DBTX, id uuid.UUID, errorMsg string) error {
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Status = outbox.StatusFailed
			f.events[i].RetryCount++
			msg := errorMsg
			f.events[i].Error = &msg
		}
	}
	return nil
}

func (f *fakeStore) Requeue(ctx context.Context, db database.DBTX, maxRetries int) error {
	for i := range f.events {
		if f.events[i].Status == outbox.StatusFailed && f.events[i].RetryCount < maxRetries {
			f.events[i].Status = outbox.StatusPending
		}
	}
	return nil
}

// --- UserRepository ---

func (f *fakeStore) FilterActive(ctx context.Context, db database.DBTX, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		if f.activeUsers[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByIDs(ctx context.Context, db database.DBTX, ids []int64) ([]user.User, error) {
	var out []user.User
	for _, id := range ids {
		if active, ok := f.activeUsers[id]; ok {
			out = append(out, user.User{ID: id, FullName: f.userNames[id], IsActive: active})
		}
	}
	return out, nil
}

// --- PostingRepository ---

func (f *fakeStore) GetPostingByID(ctx context.Context, db database.DBTX, id int64) (posting.Posting, error) {
	p, ok := f.postings[id]
	if !ok {
		return posting.Posting{}, chaterrors.ErrNotFound
	}
	return p, nil
}

// Adapters around the store where method names collide across the
// repository interfaces (GetByID, Create).

type fakeMessageRepo struct{ s *fakeStore }

func (r fakeMessageRepo) Insert(ctx context.Context, db database.DBTX, m *message.Message) error {
	return r.s.Insert(ctx, db, m)
}

func (r fakeMessageRepo) GetByID(ctx context.Context, db database.DBTX, id uuid.UUID) (message.Message, error) {
	return r.s.GetMessageByID(ctx, db, id)
}

func (r fakeMessageRepo) ListWindow(ctx context.Context, db database.DBTX, conversationID uuid.UUID, w message.Window) ([]message.Message, error) {
	return r.s.ListWindow(ctx, db, conversationID, w)
}

func (r fakeMessageRepo) Edit(ctx context.Context, db database.DBTX, id uuid.UUID, content string, editedAt time.Time) error {
	return r.s.Edit(ctx, db, id, content, editedAt)
}

func (r fakeMessageRepo) SoftDelete(ctx context.Context, db database.DBTX, id uuid.UUID, at time.Time) error {
	return r.s.SoftDelete(ctx, db, id, at)
}

func (r fakeMessageRepo) LatestID(ctx context.Context, db database.DBTX, conversationID uuid.UUID) (uuid.UUID, error) {
	return r.s.LatestID(ctx, db, conversationID)
}

type fakeOutboxRepo struct{ s *fakeStore }

func (r fakeOutboxRepo) Create(ctx context.Context, db database.DBTX, event *outbox.OutboxEvent) error {
	return r.s.CreateEvent(ctx, db, event)
}

func (r fakeOutboxRepo) ClaimPending(ctx context.Context, db database.DBTX, limit, maxRetries int) ([]outbox.OutboxEvent, error) {
	return r.s.ClaimPending(ctx, db, limit, maxRetries)
}

func (r fakeOutboxRepo) MarkCompleted(ctx context.Context, db database.DBTX, id uuid.UUID) error {
	return r.s.MarkCompleted(ctx, db, id)
}

func (r fakeOutboxRepo) MarkFailed(ctx context.Context, db database.DBTX, id uuid.UUID, errorMsg string) error {
	return r.s.MarkFailed(ctx, db, id, errorMsg)
}

func (r fakeOutboxRepo) Requeue(ctx context.Context, db database.DBTX, maxRetries int) error {
	return r.s.Requeue(ctx, db, maxRetries)
}

type fakePostingRepo struct{ s *fakeStore }

func (r fakePostingRepo) GetByID(ctx context.Context, db database.DBTX, id int64) (posting.Posting, error) {
	return r.s.GetPostingByID(ctx, db, id)
}

// newTestServices wires both services over a shared in-memory store.
func newTestServices(store *fakeStore) (*ConversationService, *MessageService) {
	db := newFakeHandle()
	log := logger.NewNop()
	convs := NewConversationService(db, store, store, fakePostingRepo{store}, store, fakeOutboxRepo{store}, log)
	msgs := NewMessageService(db, fakeMessageRepo{store}, store, store, store, fakeOutboxRepo{store}, log)
	return convs, msgs
}
