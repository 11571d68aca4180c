package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

func TestLoginEnrollsIntoDefaultRoom(t *testing.T) {
	svc, sender, _, _ := newTestService(t)

	user := mustLogin(t, svc, "c1", "alice")
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, []string{DefaultRoomID}, user.Rooms)

	rooms, err := svc.Rooms("c1")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, DefaultRoomID, rooms[0].ID)
	assert.True(t, rooms[0].IsCreator)
	assert.Equal(t, 1, rooms[0].MemberCount)

	// The new user receives its initial room, friend-request, and friend lists.
	_, ok := sender.lastFor("c1", EventRoomList)
	assert.True(t, ok)
	_, ok = sender.lastFor("c1", EventFriendRequests)
	assert.True(t, ok)
	_, ok = sender.lastFor("c1", EventFriendList)
	assert.True(t, ok)
}

func TestLoginRejectsShortName(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Login("c1", "x")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestLoginSanitizesName(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	user := mustLogin(t, svc, "c1", "  <b>alice</b>  ")
	assert.Equal(t, "alice", user.Name)
}

func TestLoginTruncatesOverlongName(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	user := mustLogin(t, svc, "c1", strings.Repeat("a", 80))
	assert.Len(t, []rune(user.Name), svc.cfg.MaxNameLength)
}

func TestLoginRejectsTakenNameUntilDisconnect(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	_, err := svc.Login("c2", "alice")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAlreadyExists, apperrors.CodeOf(err))

	svc.Disconnect("c1")

	_, err = svc.Login("c2", "alice")
	assert.NoError(t, err)
}

func TestLoginRejectsSecondLoginOnSameConnection(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	_, err := svc.Login("c1", "other")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAlreadyExists, apperrors.CodeOf(err))
}

func TestSetPublicKey(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	err := svc.SetPublicKey("c1", "too-short")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	require.NoError(t, svc.SetPublicKey("c1", strings.Repeat("k", 128)))

	users := svc.ActiveUsers()
	require.Len(t, users, 1)
	assert.True(t, users[0].HasPublicKey)
}

func TestSetPublicKeyRequiresLogin(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	err := svc.SetPublicKey("ghost", strings.Repeat("k", 128))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
}

func TestDisconnectTransfersRoomOwnership(t *testing.T) {
	svc, sender, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	mustLogin(t, svc, "c2", "bob")

	room, err := svc.CreateRoom("c1", "lounge")
	require.NoError(t, err)
	joinRoom(t, svc, "c1", "c2", room.ID)

	svc.Disconnect("c1")

	rooms, err := svc.Rooms("c2")
	require.NoError(t, err)
	var lounge *RoomEntry
	for i := range rooms {
		if rooms[i].ID == room.ID {
			lounge = &rooms[i]
		}
	}
	require.NotNil(t, lounge)
	assert.True(t, lounge.IsCreator)
	assert.Equal(t, 1, lounge.MemberCount)

	var texts []string
	for _, e := range sender.eventsFor("c2", EventSystemMessage) {
		texts = append(texts, e.Data.(SystemNotice).Text)
	}
	assert.Contains(t, texts, "alice left the room")
	assert.Contains(t, texts, "bob is the new room admin")
}

func TestDisconnectDropsFriendshipBothWays(t *testing.T) {
	svc, sender, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	mustLogin(t, svc, "c2", "bob")
	makeFriends(t, svc, "c1", "c2")

	sender.reset()
	svc.Disconnect("c1")

	friends, err := svc.Friends("c2")
	require.NoError(t, err)
	assert.Empty(t, friends)

	_, notified := sender.lastFor("c2", EventFriendList)
	assert.True(t, notified)
}

func TestDisconnectWithdrawsPendingFriendRequests(t *testing.T) {
	svc, sender, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")
	mustLogin(t, svc, "c2", "bob")

	_, err := svc.SendFriendRequest("c1", "c2")
	require.NoError(t, err)

	sender.reset()
	svc.Disconnect("c1")

	last, ok := sender.lastFor("c2", EventFriendRequests)
	require.True(t, ok)
	assert.Empty(t, last.Data.([]*FriendRequest))
}

func TestDisconnectDropsOwnedTransfers(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "notes.txt", Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)

	svc.Disconnect("c1")
	mustLogin(t, svc, "c1", "alice")

	_, err = svc.UpdateUploadProgress("c1", transfer.ID, 50)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestDisconnectDiscardsUnfinishedUploadBlob(t *testing.T) {
	svc, _, store, _ := newTestService(t)
	mustLogin(t, svc, "c1", "alice")

	transfer, err := svc.InitFileUpload("c1", InitUploadInput{
		Name: "draft.bin", Size: 100, Target: Target{RoomID: DefaultRoomID},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AttachUploadBlob(transfer.ID, StoredBlob{URL: "/uploads/draft.bin", Size: 100}))

	// Bytes of a completed upload belong to its file record and must survive.
	completeUpload(t, svc, "c1",
		InitUploadInput{Name: "kept.bin", Size: 50, Target: Target{RoomID: DefaultRoomID}},
		StoredBlob{URL: "/uploads/kept.bin", Size: 50})

	svc.Disconnect("c1")

	assert.Contains(t, store.deletedURLs(), "/uploads/draft.bin")
	assert.NotContains(t, store.deletedURLs(), "/uploads/kept.bin")
}

func TestDisconnectUnknownConnectionIsNoop(t *testing.T) {
	svc, sender, _, _ := newTestService(t)
	svc.Disconnect("ghost")
	assert.Empty(t, sender.broadcasts)
}
