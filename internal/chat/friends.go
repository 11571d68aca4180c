package chat

import (
	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// SendFriendRequest files a pending friend request with the target user.
func (s *Service) SendFriendRequest(connID, targetID string) (*FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	target, ok := s.users[targetID]
	if !ok {
		return nil, apperrors.NotFound("target user does not exist")
	}
	if connID == targetID {
		return nil, apperrors.InvalidArg("cannot add yourself as a friend")
	}
	if s.areFriends(connID, targetID) {
		return nil, apperrors.AlreadyExists("already friends")
	}
	for _, r := range s.friendRequests[targetID] {
		if r.From == connID && r.Status == requestPending {
			return nil, apperrors.AlreadyExists("friend request already sent")
		}
	}

	req := &FriendRequest{
		ID:       newID(),
		From:     connID,
		FromName: user.Name,
		Status:   requestPending,
		Time:     s.clockStamp(),
	}
	s.friendRequests[targetID] = append(s.friendRequests[targetID], req)

	s.sender.Send(targetID, EventNewFriendRequest, req)
	s.sender.Send(connID, EventRequestSent, RequestAck{Type: "friend", Target: target.Name})

	s.log.Info("friend request sent", "from", user.Name, "to", target.Name)
	return req, nil
}

// RespondFriendRequest resolves a pending request addressed to the caller.
// On accept, both directions of the adjacency are added under the registry
// lock and the private conversation is created lazily, so friendship is never
// observable half-formed.
func (s *Service) RespondFriendRequest(connID, requestID string, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[connID]
	if !ok {
		return apperrors.Unauthenticated("not logged in")
	}

	requests := s.friendRequests[connID]
	var req *FriendRequest
	for _, r := range requests {
		if r.ID == requestID {
			req = r
			break
		}
	}
	if req == nil || req.Status != requestPending {
		return apperrors.NotFound("friend request does not exist")
	}

	if accepted {
		req.Status = requestAccepted
	} else {
		req.Status = requestRejected
	}

	s.sender.Send(req.From, EventFriendRequestResponse, FriendResponse{
		RequestID:  requestID,
		Accepted:   accepted,
		TargetName: user.Name,
	})

	if accepted {
		if _, stillHere := s.users[req.From]; stillHere {
			s.friends[req.From] = append(s.friends[req.From], connID)
			s.friends[connID] = append(s.friends[connID], req.From)
			s.conversation(connID, req.From)

			s.sender.Send(req.From, EventFriendList, s.friendListFor(req.From))
			s.sender.Send(connID, EventFriendList, s.friendListFor(connID))
			s.log.Info("friendship established", "a", user.Name, "b", req.FromName)
		}
	} else {
		s.log.Info("friend request rejected", "by", user.Name, "from", req.FromName)
	}

	s.sender.Send(connID, EventFriendRequests, s.requestsOf(connID))
	return nil
}

// Friends returns the caller's friend roster.
func (s *Service) Friends(connID string) ([]FriendEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	return s.friendListFor(connID), nil
}

// requestsOf returns the requests addressed to a connection. Caller holds the
// lock.
func (s *Service) requestsOf(connID string) []*FriendRequest {
	requests := s.friendRequests[connID]
	if requests == nil {
		return []*FriendRequest{}
	}
	return requests
}

// areFriends reports whether an adjacency exists. The graph is kept symmetric,
// so checking one direction suffices. Caller holds the lock.
func (s *Service) areFriends(a, b string) bool {
	for _, id := range s.friends[a] {
		if id == b {
			return true
		}
	}
	return false
}
