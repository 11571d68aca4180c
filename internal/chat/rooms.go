package chat

import (
	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// CreateRoom registers a new room owned by the caller and announces it.
func (s *Service) CreateRoom(connID, rawName string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	name := sanitizeText(rawName, s.cfg.MaxNameLength)
	if name == "" {
		return nil, apperrors.InvalidArg("invalid room name")
	}

	room := &Room{
		ID:      newID(),
		Name:    name,
		Creator: user.Name,
		Members: []string{connID},
	}
	s.rooms[room.ID] = room
	user.Rooms = append(user.Rooms, room.ID)

	s.publishRoomLists()
	s.sender.Send(connID, EventRoomCreated, RoomCreated{ID: room.ID, Name: name})
	s.sender.Send(connID, EventSystemMessage, SystemNotice{
		Text:   "created room: " + name,
		Time:   s.clockStamp(),
		RoomID: room.ID,
	})

	s.log.Info("room created", "room", name, "id", room.ID, "creator", user.Name)
	return room, nil
}

// RequestJoinRoom files a join request with the room's creator. The request is
// tracked by id so the later approval resolves this exact requester.
func (s *Service) RequestJoinRoom(connID, roomID string) (*JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, apperrors.NotFound("room does not exist")
	}
	for _, member := range room.Members {
		if member == connID {
			return nil, apperrors.AlreadyExists("already a member of this room")
		}
	}

	creatorID := s.connIDByName(room.Creator)
	if creatorID == "" {
		return nil, apperrors.NotFound("room creator is not connected")
	}

	req := &JoinRequest{
		ID:       newID(),
		RoomID:   roomID,
		From:     connID,
		FromName: user.Name,
		Time:     s.clockStamp(),
	}
	s.joinRequests[req.ID] = req

	s.sender.Send(creatorID, EventRoomJoinRequest, JoinRequestNotice{
		RequestID: req.ID,
		RoomID:    roomID,
		RoomName:  room.Name,
		From:      connID,
		FromName:  user.Name,
		Time:      req.Time,
	})
	s.sender.Send(connID, EventRequestSent, RequestAck{Type: "room", Target: room.Name})

	s.log.Info("join request filed", "room", room.Name, "from", user.Name)
	return req, nil
}

// RespondJoinRoom lets the room creator accept or reject a pending join
// request. Identity is verified by name, not connection id, because ownership
// may have transferred to a different connection. Responding to a request that
// no longer exists is a no-op.
func (s *Service) RespondJoinRoom(connID, requestID, roomID string, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	approver, ok := s.users[connID]
	if !ok {
		return apperrors.Unauthenticated("not logged in")
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return apperrors.NotFound("room does not exist")
	}
	if room.Creator != approver.Name {
		return apperrors.Forbidden("only the room creator can approve join requests")
	}

	req, ok := s.joinRequests[requestID]
	if !ok || req.RoomID != roomID {
		return nil
	}
	delete(s.joinRequests, requestID)

	requester, ok := s.users[req.From]
	if !ok {
		// Requester disconnected while the request was pending.
		return nil
	}

	if !accepted {
		s.sender.Send(req.From, EventRoomRequestResponse, JoinResponse{
			Accepted: false, RoomID: roomID, RoomName: room.Name,
		})
		s.log.Info("join request rejected", "room", room.Name, "requester", requester.Name)
		return nil
	}

	room.Members = append(room.Members, req.From)
	requester.Rooms = append(requester.Rooms, roomID)

	s.sender.Send(req.From, EventRoomRequestResponse, JoinResponse{
		Accepted: true, RoomID: roomID, RoomName: room.Name,
	})
	s.notifyRoom(room, requester.Name+" joined the room")
	s.publishRoomLists()

	s.log.Info("join request accepted", "room", room.Name, "requester", requester.Name)
	return nil
}

// Rooms returns the roster as seen by the given connection.
func (s *Service) Rooms(connID string) ([]RoomEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	return s.roomListFor(user.Name), nil
}

// connIDByName resolves a display name to its connection id, or "" when the
// holder is not connected. Caller holds the lock.
func (s *Service) connIDByName(name string) string {
	for id, u := range s.users {
		if u.Name == name {
			return id
		}
	}
	return ""
}

// isMember reports room membership. Caller holds the lock.
func isMember(room *Room, connID string) bool {
	for _, id := range room.Members {
		if id == connID {
			return true
		}
	}
	return false
}
