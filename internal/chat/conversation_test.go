package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

func TestConversationIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
	assert.Equal(t, "alice-bob", ConversationID("bob", "alice"))
}

func TestConversationRecordsParticipants(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	// Connection ids contain hyphens in production, so the pair must come
	// from the stored conversation, not from splitting the id.
	a := "6a1f09d3-58c2-4f7e-9a44-1b8e5c27d9f0"
	b := "0d47be91-3e6a-4c05-b7aa-92f14d68c3e5"
	c := svc.conversation(a, b)

	assert.True(t, c.isParticipant(a))
	assert.True(t, c.isParticipant(b))
	assert.False(t, c.isParticipant("6a1f09d3"))
	assert.Same(t, c, svc.conversation(b, a))
}

func TestHistoryUnknownRoom(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.History(KindRoom, "nope")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestHistoryUnknownKind(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.History(ConversationKind("group"), "x")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
}

func TestHistoryUnknownPrivateReadsEmpty(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	msgs, files, err := svc.History(KindPrivate, ConversationID("a", "b"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, files)
}
