package chat

import (
	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// SendMessageInput is the payload of a sendMessage request. Exactly one of
// RoomID and TargetUserID must be set.
type SendMessageInput struct {
	RoomID       string `json:"roomId"`
	TargetUserID string `json:"targetUserId"`
	Text         string `json:"text"`
	Encrypted    bool   `json:"encrypted"`
}

// SendMessage validates, stamps, stores, and fans out a chat message.
//
// Validation order: sender logged in, body non-empty, target well-formed and
// resolvable. Plaintext is sanitized and length-capped before storage;
// encrypted bodies are stored and relayed byte-for-byte. The message is
// appended to its conversation log before any delivery, so history queries
// are race-free with concurrent sends.
func (s *Service) SendMessage(connID string, in SendMessageInput) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	if in.Text == "" {
		return nil, apperrors.InvalidArg("message body is empty")
	}
	if (in.RoomID == "") == (in.TargetUserID == "") {
		return nil, apperrors.InvalidArg("exactly one of roomId and targetUserId must be set")
	}

	body := in.Text
	if !in.Encrypted {
		body = sanitizeText(body, s.cfg.MaxMessageLength)
		if body == "" {
			return nil, apperrors.InvalidArg("message body is empty")
		}
	}

	msg := &Message{
		ID:           newID(),
		Kind:         MessageText,
		Text:         body,
		Encrypted:    in.Encrypted,
		SenderName:   user.Name,
		SenderID:     connID,
		RoomID:       in.RoomID,
		TargetUserID: in.TargetUserID,
		Time:         s.clockStamp(),
		sentAt:       s.now(),
	}

	if in.RoomID != "" {
		room, ok := s.rooms[in.RoomID]
		if !ok {
			return nil, apperrors.NotFound("room does not exist")
		}
		if !isMember(room, connID) {
			return nil, apperrors.Forbidden("not a member of this room")
		}
		if in.Encrypted && !s.cfg.AllowRoomEncryption {
			return nil, apperrors.InvalidArg("encrypted messages are not enabled for rooms")
		}

		room.Messages = append(room.Messages, msg)
		s.archiveMessage(msg, KindRoom, room.ID)
		for _, member := range room.Members {
			s.sender.Send(member, EventNewMessage, msg)
		}
		s.log.Info("room message routed", "room", room.Name, "sender", user.Name)
		return msg, nil
	}

	if !s.areFriends(connID, in.TargetUserID) {
		return nil, apperrors.Forbidden("target is not a friend")
	}

	conversationID := ConversationID(connID, in.TargetUserID)
	c := s.conversation(connID, in.TargetUserID)
	c.Messages = append(c.Messages, msg)
	s.archiveMessage(msg, KindPrivate, conversationID)

	// Deliver to the target and echo to the sender; the sender's client waits
	// for this confirmation instead of rendering locally.
	s.sender.Send(in.TargetUserID, EventNewMessage, msg)
	s.sender.Send(connID, EventNewMessage, msg)
	s.log.Info("private message routed", "sender", user.Name, "conversation", conversationID)
	return msg, nil
}

// archiveMessage mirrors an accepted message best-effort. Caller holds the
// lock.
func (s *Service) archiveMessage(msg *Message, kind ConversationKind, conversationID string) {
	if err := s.archive.SaveMessage(msg, kind, conversationID); err != nil {
		s.log.Warn("message archive failed", "message", msg.ID, "err", err)
	}
}
