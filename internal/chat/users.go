package chat

import (
	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// Login binds a connection to a display name and enrolls it into the default
// room. Name uniqueness is checked against currently active users only, so a
// name vacated by a disconnect may be reused immediately.
func (s *Service) Login(connID, rawName string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; ok {
		return nil, apperrors.AlreadyExists("connection is already logged in")
	}

	name := sanitizeText(rawName, s.cfg.MaxNameLength)
	if len([]rune(name)) < s.cfg.MinNameLength {
		return nil, apperrors.InvalidArg("invalid username")
	}
	for _, u := range s.users {
		if u.Name == name {
			return nil, apperrors.AlreadyExists("username is already taken")
		}
	}

	user := &User{ID: connID, Name: name}
	s.users[connID] = user

	room, ok := s.rooms[DefaultRoomID]
	if !ok {
		room = &Room{
			ID:      DefaultRoomID,
			Name:    s.cfg.DefaultRoomName,
			Creator: name,
			Members: []string{connID},
		}
		s.rooms[DefaultRoomID] = room
		s.log.Info("created default room", "room", DefaultRoomID)
	} else {
		room.Members = append(room.Members, connID)
	}
	user.Rooms = append(user.Rooms, DefaultRoomID)

	s.publishUserList()
	s.sender.Send(connID, EventRoomList, s.roomListFor(name))
	s.sender.Send(connID, EventFriendRequests, s.requestsOf(connID))
	s.sender.Send(connID, EventFriendList, s.friendListFor(connID))
	s.notifyRoom(room, name+" joined the chat")

	s.log.Info("user logged in", "name", name, "conn", connID)
	return user, nil
}

// SetPublicKey stores a user's public key as an opaque blob and republishes
// the roster so peers learn the key is available.
func (s *Service) SetPublicKey(connID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return apperrors.Unauthenticated("not logged in")
	}
	if len(key) < s.cfg.MinPublicKeyLength {
		return apperrors.InvalidArg("invalid public key")
	}

	user.PublicKey = key
	s.publishUserList()
	s.log.Info("public key updated", "name", user.Name)
	return nil
}

// Disconnect tears down every trace of a connection: room memberships (with
// ownership transfer), friend edges, pending requests in both directions, and
// in-flight transfers it owns. The registry must never keep a reference to a
// connection that no longer exists.
func (s *Service) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return
	}

	for _, room := range s.rooms {
		if !removeMember(room, connID) {
			continue
		}
		s.notifyRoom(room, user.Name+" left the room")
		if room.Creator == user.Name && len(room.Members) > 0 {
			if heir, ok := s.users[room.Members[0]]; ok {
				room.Creator = heir.Name
				s.notifyRoom(room, heir.Name+" is the new room admin")
				s.log.Info("room ownership transferred", "room", room.Name, "to", heir.Name)
			}
		}
	}

	delete(s.users, connID)
	delete(s.friendRequests, connID)

	// Withdraw pending requests this connection sent.
	for recipient, requests := range s.friendRequests {
		filtered := requests[:0]
		changed := false
		for _, r := range requests {
			if r.From == connID {
				changed = true
				continue
			}
			filtered = append(filtered, r)
		}
		if changed {
			s.friendRequests[recipient] = filtered
			s.sender.Send(recipient, EventFriendRequests, s.requestsOf(recipient))
		}
	}
	for id, jr := range s.joinRequests {
		if jr.From == connID {
			delete(s.joinRequests, id)
		}
	}

	// Drop both directions of every friendship edge.
	delete(s.friends, connID)
	for friendID, ids := range s.friends {
		filtered := ids[:0]
		changed := false
		for _, id := range ids {
			if id == connID {
				changed = true
				continue
			}
			filtered = append(filtered, id)
		}
		if changed {
			s.friends[friendID] = filtered
			s.sender.Send(friendID, EventFriendList, s.friendListFor(friendID))
		}
	}

	// Abort transfers the connection owned so no record outlives its owner.
	// Bytes already stored for an unfinished upload have no file record yet,
	// so they are reclaimed here or never.
	for id, t := range s.transfers {
		if t.OwnerID == connID {
			if t.Direction == DirectionUpload && !t.done {
				s.discardBlob(t.Blob)
			}
			delete(s.transfers, id)
		}
	}

	s.publishUserList()
	s.publishRoomLists()
	s.log.Info("user disconnected", "name", user.Name, "conn", connID)
}

// ActiveUsers returns the current roster snapshot.
func (s *Service) ActiveUsers() []UserEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userList()
}

func removeMember(room *Room, connID string) bool {
	for i, id := range room.Members {
		if id == connID {
			room.Members = append(room.Members[:i], room.Members[i+1:]...)
			return true
		}
	}
	return false
}
