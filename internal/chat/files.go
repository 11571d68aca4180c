package chat

import (
	"fmt"
	"time"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// CompleteUploadInput is the payload of a completeFileUpload request.
type CompleteUploadInput struct {
	UploadID     string `json:"uploadId"`
	SendOriginal bool   `json:"sendOriginal"`
	Encrypted    bool   `json:"encrypted"`
}

// CompleteFileUpload registers the stored blob of a finished upload as a
// FileRecord, appends the file message to its conversation, and fans it out.
// The transfer must have a blob attached by the upload handler; completion
// without one means no bytes ever arrived.
func (s *Service) CompleteFileUpload(connID string, in CompleteUploadInput) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.activeTransfer(connID, in.UploadID, DirectionUpload)
	if err != nil {
		return nil, err
	}
	if t.Kind != MessageFile {
		return nil, apperrors.NotFound("unknown transfer")
	}
	if t.Blob == nil {
		return nil, apperrors.NotFound("no uploaded data for this transfer")
	}
	if err := s.checkTarget(connID, t.Target); err != nil {
		// The target vanished mid-upload; drop the record and the orphaned
		// bytes so nothing references a dead destination.
		delete(s.transfers, t.ID)
		s.discardBlob(t.Blob)
		return nil, err
	}
	user := s.users[connID]

	thumbnailURL := ""
	if t.Blob.IsImage {
		thumbnailURL = s.thumbnailFor(t.Blob.URL)
	}

	file := &FileRecord{
		ID:           newID(),
		Name:         t.FileName,
		URL:          t.Blob.URL,
		ThumbnailURL: thumbnailURL,
		Size:         t.Blob.Size,
		OwnerID:      connID,
		Kind:         MessageFile,
		IsImage:      t.Blob.IsImage,
		UploadedAt:   s.now(),
		ExpiresAt:    t.ExpiresAt,
	}

	deliveryURL := file.URL
	if t.Blob.IsImage && !in.SendOriginal {
		deliveryURL = thumbnailURL
	}
	msg := &Message{
		ID:              newID(),
		Kind:            MessageFile,
		Encrypted:       in.Encrypted,
		SenderName:      user.Name,
		SenderID:        connID,
		RoomID:          t.Target.RoomID,
		TargetUserID:    t.Target.UserID,
		Time:            s.clockStamp(),
		FileID:          file.ID,
		FileName:        file.Name,
		FileURL:         deliveryURL,
		FileSize:        file.Size,
		IsImage:         file.IsImage,
		ExpiryMillis:    expiryMillis(file.ExpiresAt),
		ExpiryFormatted: formatExpiry(expiryMillis(file.ExpiresAt)),
		sentAt:          s.now(),
	}
	if file.IsImage {
		msg.OriginalURL = file.URL
		msg.ThumbnailURL = thumbnailURL
	}

	s.registerFile(file, msg)
	s.finishTransfer(t)

	s.sender.Send(connID, EventUploadComplete, UploadComplete{
		UploadID: t.ID, FileURL: deliveryURL, FileID: file.ID,
	})
	s.deliver(msg, file)
	s.log.Info("file upload completed", "file", file.Name, "id", file.ID, "owner", user.Name)
	return msg, nil
}

// CompleteVoiceUpload registers a finished voice upload and routes the voice
// message. Voice files never expire by default.
func (s *Service) CompleteVoiceUpload(connID, uploadID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.activeTransfer(connID, uploadID, DirectionUpload)
	if err != nil {
		return nil, err
	}
	if t.Kind != MessageVoice {
		return nil, apperrors.NotFound("unknown transfer")
	}
	if t.Blob == nil {
		return nil, apperrors.NotFound("no uploaded data for this transfer")
	}
	if err := s.checkTarget(connID, t.Target); err != nil {
		delete(s.transfers, t.ID)
		s.discardBlob(t.Blob)
		return nil, err
	}
	user := s.users[connID]

	file := &FileRecord{
		ID:             newID(),
		Name:           fmt.Sprintf("voice-%s.webm", s.now().Format("20060102-150405")),
		URL:            t.Blob.URL,
		Size:           t.Blob.Size,
		OwnerID:        connID,
		Kind:           MessageVoice,
		DurationMillis: t.DurationMillis,
		UploadedAt:     s.now(),
	}
	msg := &Message{
		ID:             newID(),
		Kind:           MessageVoice,
		SenderName:     user.Name,
		SenderID:       connID,
		RoomID:         t.Target.RoomID,
		TargetUserID:   t.Target.UserID,
		Time:           s.clockStamp(),
		FileID:         file.ID,
		FileName:       fmt.Sprintf("Voice message (%ds)", t.DurationMillis/1000),
		FileURL:        file.URL,
		FileSize:       file.Size,
		DurationMillis: t.DurationMillis,
		sentAt:         s.now(),
	}

	s.registerFile(file, msg)
	s.finishTransfer(t)

	s.sender.Send(connID, EventVoiceComplete, UploadComplete{
		UploadID: t.ID, FileURL: file.URL, FileID: file.ID,
	})
	s.deliver(msg, file)
	s.log.Info("voice upload completed", "id", file.ID, "owner", user.Name)
	return msg, nil
}

// UpdateFileExpiry lets a file's owner change or clear its expiry after the
// fact. Clearing means the file never expires.
func (s *Service) UpdateFileExpiry(connID, fileID string, newExpiryMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; !ok {
		return apperrors.Unauthenticated("not logged in")
	}
	file, ok := s.files[fileID]
	if !ok {
		return apperrors.NotFound("file does not exist")
	}
	if file.OwnerID != connID {
		return apperrors.Forbidden("not the owner of this file")
	}

	file.ExpiresAt = nil
	if newExpiryMillis > 0 {
		t := s.now().Add(time.Duration(newExpiryMillis) * time.Millisecond)
		file.ExpiresAt = &t
	}
	s.archiveFile(file)

	ms := expiryMillis(file.ExpiresAt)
	update := FileExpiryUpdated{FileID: fileID, ExpiryMillis: ms, ExpiryFormatted: formatExpiry(ms)}
	for _, entry := range s.conversationFileLog(file) {
		if entry.ID == fileID {
			entry.ExpiryMillis = ms
			entry.ExpiryFormatted = update.ExpiryFormatted
		}
	}
	for _, recipient := range s.conversationAudience(file) {
		s.sender.Send(recipient, EventFileExpiryUpdated, update)
	}
	s.sender.Send(connID, EventFileExpiryUpdated, update)

	s.log.Info("file expiry updated", "file", fileID, "expiry", update.ExpiryFormatted)
	return nil
}

// ConversationFiles lists the file log of a conversation the caller belongs to.
func (s *Service) ConversationFiles(connID string, kind ConversationKind, conversationID string) ([]*FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}

	var entries []*FileEntry
	switch kind {
	case KindRoom:
		room, ok := s.rooms[conversationID]
		if !ok {
			return nil, apperrors.NotFound("conversation does not exist")
		}
		if !isMember(room, connID) {
			return nil, apperrors.Forbidden("not a member of this room")
		}
		entries = room.Files
	case KindPrivate:
		c, ok := s.conversations[conversationID]
		if !ok {
			return nil, apperrors.NotFound("conversation does not exist")
		}
		if !c.isParticipant(connID) {
			return nil, apperrors.Forbidden("not a participant of this conversation")
		}
		entries = c.Files
	default:
		return nil, apperrors.InvalidArg("unknown conversation kind")
	}

	listed := make([]*FileEntry, len(entries))
	for i, e := range entries {
		withSize := *e
		withSize.SizeFormatted = formatBytes(e.Size)
		listed[i] = &withSize
	}
	s.sender.Send(connID, EventConversationFiles, ConversationFilesList{
		Conversation:   kind,
		ConversationID: conversationID,
		Files:          listed,
	})
	return listed, nil
}

// SweepExpiredFiles removes every file whose expiry has passed: the global
// record, the conversation log entry, the backing bytes, and the archive
// mirror. Each file is handled in isolation so one failure cannot abort the
// rest of the sweep. The owner, if still connected, is notified once.
func (s *Service) SweepExpiredFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []*FileRecord
	for _, f := range s.files {
		if f.ExpiresAt != nil && !f.ExpiresAt.After(now) {
			expired = append(expired, f)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	for _, f := range expired {
		s.removeExpiredFile(f)
	}
	s.log.Info("expiry sweep removed files", "count", len(expired))
	return len(expired)
}

// removeExpiredFile deletes one expired file end to end. Caller holds the lock.
func (s *Service) removeExpiredFile(f *FileRecord) {
	delete(s.files, f.ID)
	delete(s.filesByURL, f.URL)

	log := s.conversationFileLog(f)
	for i, entry := range log {
		if entry.ID == f.ID {
			s.setConversationFileLog(f, append(log[:i], log[i+1:]...))
			break
		}
	}

	// Blob deletion is best-effort: bytes already gone is not an error worth
	// keeping the record alive for.
	if err := s.store.Delete(f.URL); err != nil {
		s.log.Warn("expired blob delete failed", "file", f.ID, "url", f.URL, "err", err)
	}
	if f.ThumbnailURL != "" && f.ThumbnailURL != f.URL {
		if err := s.store.Delete(f.ThumbnailURL); err != nil {
			s.log.Warn("expired thumbnail delete failed", "file", f.ID, "err", err)
		}
	}
	if err := s.archive.DeleteFile(f.ID); err != nil {
		s.log.Warn("file archive delete failed", "file", f.ID, "err", err)
	}

	if _, connected := s.users[f.OwnerID]; connected {
		s.sender.Send(f.OwnerID, EventFileExpired, FileExpired{FileID: f.ID, FileName: f.Name})
	}
}

// registerFile stores the record globally, resolves its conversation from the
// message target, and appends both the message and the file entry to the
// conversation log before anything is delivered. Caller holds the lock.
func (s *Service) registerFile(file *FileRecord, msg *Message) {
	if msg.RoomID != "" {
		file.Conversation = KindRoom
		file.ConversationID = msg.RoomID
	} else {
		file.Conversation = KindPrivate
		file.ConversationID = ConversationID(msg.SenderID, msg.TargetUserID)
	}
	s.files[file.ID] = file
	s.filesByURL[file.URL] = file.ID

	entry := &FileEntry{
		ID:              file.ID,
		Name:            msg.FileName,
		Size:            file.Size,
		Time:            msg.Time,
		User:            msg.SenderName,
		UserID:          msg.SenderID,
		Kind:            file.Kind,
		IsImage:         file.IsImage,
		DurationMillis:  file.DurationMillis,
		ExpiryMillis:    expiryMillis(file.ExpiresAt),
		ExpiryFormatted: formatExpiry(expiryMillis(file.ExpiresAt)),
	}

	if file.Conversation == KindRoom {
		room := s.rooms[file.ConversationID]
		room.Messages = append(room.Messages, msg)
		room.Files = append(room.Files, entry)
	} else {
		c := s.conversation(msg.SenderID, msg.TargetUserID)
		c.Messages = append(c.Messages, msg)
		c.Files = append(c.Files, entry)
	}

	s.archiveMessage(msg, file.Conversation, file.ConversationID)
	s.archiveFile(file)
}

// deliver fans a stored file or voice message out to its conversation.
// Caller holds the lock; the message is already logged.
func (s *Service) deliver(msg *Message, file *FileRecord) {
	if file.Conversation == KindRoom {
		for _, member := range s.rooms[file.ConversationID].Members {
			s.sender.Send(member, EventNewMessage, msg)
		}
		return
	}
	s.sender.Send(msg.TargetUserID, EventNewMessage, msg)
	s.sender.Send(msg.SenderID, EventNewMessage, msg)
}

// conversationAudience lists the connections that should hear about changes
// to a file: room members, or both private participants. Caller holds the lock.
func (s *Service) conversationAudience(f *FileRecord) []string {
	if f.Conversation == KindRoom {
		if room, ok := s.rooms[f.ConversationID]; ok {
			return room.Members
		}
		return nil
	}
	if c, ok := s.conversations[f.ConversationID]; ok {
		return c.Participants[:]
	}
	return nil
}

// conversationFileLog returns the file log holding a record's entry.
// Caller holds the lock.
func (s *Service) conversationFileLog(f *FileRecord) []*FileEntry {
	if f.Conversation == KindRoom {
		if room, ok := s.rooms[f.ConversationID]; ok {
			return room.Files
		}
		return nil
	}
	if c, ok := s.conversations[f.ConversationID]; ok {
		return c.Files
	}
	return nil
}

func (s *Service) setConversationFileLog(f *FileRecord, log []*FileEntry) {
	if f.Conversation == KindRoom {
		if room, ok := s.rooms[f.ConversationID]; ok {
			room.Files = log
		}
		return
	}
	if c, ok := s.conversations[f.ConversationID]; ok {
		c.Files = log
	}
}

// thumbnailFor asks the thumbnail collaborator for a derived image, falling
// back to the original URL on failure.
func (s *Service) thumbnailFor(url string) string {
	thumb, err := s.thumbs.Thumbnail(url)
	if err != nil {
		s.log.Warn("thumbnail generation failed", "url", url, "err", err)
		return url
	}
	return thumb
}

// discardBlob deletes orphaned bytes best-effort. Caller holds the lock.
func (s *Service) discardBlob(blob *StoredBlob) {
	if blob == nil {
		return
	}
	if err := s.store.Delete(blob.URL); err != nil {
		s.log.Warn("orphaned blob delete failed", "url", blob.URL, "err", err)
	}
}

// archiveFile mirrors a file record best-effort. Caller holds the lock.
func (s *Service) archiveFile(f *FileRecord) {
	if err := s.archive.SaveFile(f); err != nil {
		s.log.Warn("file archive failed", "file", f.ID, "err", err)
	}
}
