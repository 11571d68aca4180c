package chat

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// newID mints the identifier used for rooms, messages, requests, transfers,
// and files.
func newID() string { return uuid.New().String() }

// ConversationID derives the canonical identifier of a private conversation.
// The participant ids are sorted first, so ConversationID(a, b) and
// ConversationID(b, a) always agree.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

// conversation returns the private conversation between two connections,
// creating it lazily with the participant pair recorded. Caller holds the
// lock.
func (s *Service) conversation(a, b string) *Conversation {
	id := ConversationID(a, b)
	c, ok := s.conversations[id]
	if !ok {
		pair := []string{a, b}
		sort.Strings(pair)
		c = &Conversation{Participants: [2]string{pair[0], pair[1]}}
		s.conversations[id] = c
	}
	return c
}

// isParticipant reports whether connID is one of a conversation's two parties.
func (c *Conversation) isParticipant(connID string) bool {
	return c.Participants[0] == connID || c.Participants[1] == connID
}

// History returns the message and file logs of a conversation. A private
// conversation that has not started yet reads as empty.
func (s *Service) History(kind ConversationKind, id string) ([]*Message, []*FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindRoom:
		room, ok := s.rooms[id]
		if !ok {
			return nil, nil, apperrors.NotFound("room does not exist")
		}
		return room.Messages, room.Files, nil
	case KindPrivate:
		c, ok := s.conversations[id]
		if !ok {
			return nil, nil, nil
		}
		return c.Messages, c.Files, nil
	default:
		return nil, nil, apperrors.InvalidArg("unknown conversation kind")
	}
}
