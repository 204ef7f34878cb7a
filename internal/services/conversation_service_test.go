package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/domain/outbox"
	chaterrors "alumnet-chat/pkg/errors"
)

func seedGroup(store *fakeStore, name string, roles map[int64]conversation.Role) uuid.UUID {
	id := uuid.New()
	store.conversations[id] = conversation.Conversation{
		ID:        id,
		Type:      conversation.TypeGroup,
		Name:      &name,
		CreatedAt: time.Now(),
	}
	members := make(map[int64]conversation.Participant)
	for userID, role := range roles {
		members[userID] = conversation.Participant{
			ConversationID: id,
			UserID:         userID,
			Role:           role,
			JoinedAt:       time.Now(),
		}
	}
	store.participants[id] = members
	return id
}

func TestCreateOrFindDirect_Dedupes(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	svc, _ := newTestServices(store)
	ctx := context.Background()

	first, err := svc.CreateOrFindDirect(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, conversation.TypeDirect, first.Type)
	require.Len(t, first.Participants, 2)
	for _, p := range first.Participants {
		assert.Equal(t, conversation.RoleMember, p.Role)
	}

	// Reversed argument order finds the same conversation.
	second, err := svc.CreateOrFindDirect(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Len(t, store.conversations, 1)
	assert.Equal(t, []string{outbox.EventConversationCreated}, store.eventTypes())
}

func TestCreateOrFindDirect_RejectsSelfPair(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	svc, _ := newTestServices(store)

	_, err := svc.CreateOrFindDirect(context.Background(), 1, 1)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput)
}

func TestCreateOrFindDirect_NamesMissingUsers(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(3, false) // deactivated
	svc, _ := newTestServices(store)

	_, err := svc.CreateOrFindDirect(context.Background(), 1, 999999)
	var verr *chaterrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []int64{999999}, verr.Missing)
	assert.Empty(t, store.conversations, "failed validation must persist nothing")

	_, err = svc.CreateOrFindDirect(context.Background(), 1, 3)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []int64{3}, verr.Missing)
}

func TestCreateGroup(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	store.addUser(3, true)
	svc, _ := newTestServices(store)
	ctx := context.Background()

	conv, err := svc.CreateGroup(ctx, 1, "Class of 2015", []int64{2, 3, 2})
	require.NoError(t, err)
	require.Len(t, conv.Participants, 3, "duplicate ids collapse")

	roles := make(map[int64]conversation.Role)
	for _, p := range conv.Participants {
		roles[p.UserID] = p.Role
	}
	assert.Equal(t, conversation.RoleOwner, roles[1])
	assert.Equal(t, conversation.RoleMember, roles[2])
	assert.Equal(t, conversation.RoleMember, roles[3])
}

func TestCreateGroup_RequiresNameAndMembers(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	svc, _ := newTestServices(store)
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, 1, "", []int64{2})
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput)

	_, err = svc.CreateGroup(ctx, 1, "Solo", nil)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput)
}

func TestCreateOrFindGroupForPosting(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	store.addPosting(77, "Hiring: backend engineer", 1)
	svc, _ := newTestServices(store)
	ctx := context.Background()

	created, err := svc.CreateOrFindGroupForPosting(ctx, 77, 1)
	require.NoError(t, err)
	require.Equal(t, conversation.TypePostLinked, created.Type)
	require.NotNil(t, created.Name)
	assert.Equal(t, "Hiring: backend engineer", *created.Name)
	require.Len(t, created.Participants, 1)
	assert.Equal(t, conversation.RoleOwner, created.Participants[0].Role)

	// A second caller joins the existing group instead of creating one.
	joined, err := svc.CreateOrFindGroupForPosting(ctx, 77, 2)
	require.NoError(t, err)
	assert.Equal(t, created.ID, joined.ID)
	require.Len(t, joined.Participants, 2)
	assert.Len(t, store.conversations, 1)
	assert.Contains(t, store.eventTypes(), outbox.EventParticipantAdded)

	// Re-joining is a no-op and emits nothing new.
	before := len(store.events)
	again, err := svc.CreateOrFindGroupForPosting(ctx, 77, 2)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Len(t, store.events, before)
}

func TestCreateOrFindGroupForPosting_UnknownPosting(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	svc, _ := newTestServices(store)

	_, err := svc.CreateOrFindGroupForPosting(context.Background(), 404, 1)
	assert.ErrorIs(t, err, chaterrors.ErrNotFound)
}

func TestGetByID_OnlyParticipants(t *testing.T) {
	store := newFakeStore()
	id := seedGroup(store, "Mentors", map[int64]conversation.Role{1: conversation.RoleOwner})
	svc, _ := newTestServices(store)
	ctx := context.Background()

	view, err := svc.GetByID(ctx, 1, id)
	require.NoError(t, err)
	assert.Equal(t, id, view.ID)

	_, err = svc.GetByID(ctx, 2, id)
	assert.ErrorIs(t, err, chaterrors.ErrForbidden)
}

func TestListForUser_AttachesLastMessage(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	store.nameUser(1, "Ada Jensen")
	store.nameUser(2, "Bo Larsen")
	id := seedGroup(store, "Reunion", map[int64]conversation.Role{
		1: conversation.RoleOwner,
		2: conversation.RoleMember,
	})
	convSvc, msgSvc := newTestServices(store)
	ctx := context.Background()

	sent, err := msgSvc.Send(ctx, id, 2, SendInput{Content: "see you there"})
	require.NoError(t, err)

	views, total, err := convSvc.ListForUser(ctx, 1, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].LastMessage)
	assert.Equal(t, sent.ID, views[0].LastMessage.ID)
	assert.Len(t, views[0].Participants, 2)
	assert.Equal(t, map[int64]string{1: "Ada Jensen", 2: "Bo Larsen"}, views[0].MemberNames)
}

func TestArchive_RequiresModerator(t *testing.T) {
	store := newFakeStore()
	id := seedGroup(store, "Archived soon", map[int64]conversation.Role{
		1: conversation.RoleOwner,
		2: conversation.RoleMember,
	})
	svc, _ := newTestServices(store)
	ctx := context.Background()

	err := svc.Archive(ctx, 2, id)
	assert.ErrorIs(t, err, chaterrors.ErrForbidden)

	require.NoError(t, svc.Archive(ctx, 1, id))
	assert.True(t, store.conversations[id].IsArchived)
}

func TestRename(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	svc, _ := newTestServices(store)
	ctx := context.Background()

	direct, err := svc.CreateOrFindDirect(ctx, 1, 2)
	require.NoError(t, err)
	err = svc.Rename(ctx, 1, direct.ID, "nope")
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput, "direct conversations have no name")

	group := seedGroup(store, "Old name", map[int64]conversation.Role{1: conversation.RoleAdmin})
	require.NoError(t, svc.Rename(ctx, 1, group, "New name"))
	assert.Equal(t, "New name", *store.conversations[group].Name)
}

func TestAddParticipant(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	store.addUser(3, true)
	id := seedGroup(store, "Committee", map[int64]conversation.Role{
		1: conversation.RoleOwner,
		2: conversation.RoleMember,
	})
	svc, _ := newTestServices(store)
	ctx := context.Background()

	err := svc.AddParticipant(ctx, id, 2, 3)
	assert.ErrorIs(t, err, chaterrors.ErrForbidden, "members cannot invite")

	require.NoError(t, svc.AddParticipant(ctx, id, 1, 3))
	assert.Len(t, store.participants[id], 3)

	// Re-adding is a no-op with no second event.
	before := len(store.events)
	require.NoError(t, svc.AddParticipant(ctx, id, 1, 3))
	assert.Len(t, store.events, before)
}

func TestAddParticipant_DirectIsFixed(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	store.addUser(3, true)
	svc, _ := newTestServices(store)
	ctx := context.Background()

	direct, err := svc.CreateOrFindDirect(ctx, 1, 2)
	require.NoError(t, err)

	err = svc.AddParticipant(ctx, direct.ID, 1, 3)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput)
}

func TestSetParticipantRole(t *testing.T) {
	store := newFakeStore()
	id := seedGroup(store, "Board", map[int64]conversation.Role{
		1: conversation.RoleOwner,
		2: conversation.RoleMember,
		3: conversation.RoleMember,
	})
	svc, _ := newTestServices(store)
	ctx := context.Background()

	err := svc.SetParticipantRole(ctx, id, 3, 2, conversation.RoleAdmin)
	assert.ErrorIs(t, err, chaterrors.ErrForbidden, "only the owner assigns roles")

	require.NoError(t, svc.SetParticipantRole(ctx, id, 1, 2, conversation.RoleAdmin))
	assert.Equal(t, conversation.RoleAdmin, store.participants[id][2].Role)
	assert.Equal(t, []string{outbox.EventParticipantRole}, store.eventTypes())

	// Demotion back to member.
	require.NoError(t, svc.SetParticipantRole(ctx, id, 1, 2, conversation.RoleMember))
	assert.Equal(t, conversation.RoleMember, store.participants[id][2].Role)
}

func TestSetParticipantRole_Rejections(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, true)
	store.addUser(2, true)
	id := seedGroup(store, "Board", map[int64]conversation.Role{
		1: conversation.RoleOwner,
		2: conversation.RoleMember,
	})
	svc, _ := newTestServices(store)
	ctx := context.Background()

	err := svc.SetParticipantRole(ctx, id, 1, 1, conversation.RoleMember)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput, "the owner role never moves")

	err = svc.SetParticipantRole(ctx, id, 1, 2, conversation.RoleOwner)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput, "only ADMIN and MEMBER are assignable")

	direct, err := svc.CreateOrFindDirect(ctx, 1, 2)
	require.NoError(t, err)
	err = svc.SetParticipantRole(ctx, direct.ID, 1, 2, conversation.RoleAdmin)
	assert.ErrorIs(t, err, chaterrors.ErrInvalidInput, "direct conversations have no roles")
}

func TestRemoveParticipant(t *testing.T) {
	store := newFakeStore()
	id := seedGroup(store, "Shrinking", map[int64]conversation.Role{
		1: conversation.RoleOwner,
		2: conversation.RoleMember,
		3: conversation.RoleMember,
	})
	svc, _ := newTestServices(store)
	ctx := context.Background()

	err := svc.RemoveParticipant(ctx, id, 2, 3)
	assert.ErrorIs(t, err, chaterrors.ErrForbidden, "members cannot kick others")

	// Self-leave always works.
	require.NoError(t, svc.RemoveParticipant(ctx, id, 3, 3))
	// Moderator kick works.
	require.NoError(t, svc.RemoveParticipant(ctx, id, 1, 2))
	assert.False(t, store.conversations[id].IsArchived)

	// Last participant leaving archives the conversation.
	require.NoError(t, svc.RemoveParticipant(ctx, id, 1, 1))
	assert.True(t, store.conversations[id].IsArchived)
}
