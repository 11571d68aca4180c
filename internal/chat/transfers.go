package chat

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/NeuronPulse/ChatPlus/pkg/errors"
)

// InitUploadInput is the payload of an initFileUpload request. ExpiryMillis
// is a duration from now; zero or negative means the file never expires.
type InitUploadInput struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Target       Target `json:"target"`
	ExpiryMillis int64  `json:"expiryTime"`
}

// InitVoiceInput is the payload of an initVoiceUpload request.
type InitVoiceInput struct {
	DurationMillis int64  `json:"duration"`
	Size           int64  `json:"size"`
	Target         Target `json:"target"`
}

// InitFileUpload validates an upload request and opens a transfer record.
// Free storage is checked before any bytes are accepted.
func (s *Service) InitFileUpload(connID string, in InitUploadInput) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	name := sanitizeText(in.Name, 0)
	if name == "" || in.Size <= 0 {
		return nil, apperrors.InvalidArg("file name and size are required")
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, blocked := range s.cfg.BlockedExtensions {
		if ext == blocked {
			return nil, apperrors.InvalidArg("file type is not allowed: " + ext)
		}
	}
	if in.Size > s.cfg.MaxUploadBytes {
		return nil, apperrors.InvalidArg("file exceeds the maximum size of " + formatBytes(s.cfg.MaxUploadBytes))
	}
	if err := s.checkTarget(connID, in.Target); err != nil {
		return nil, err
	}
	if free := s.store.FreeBytes(); free < in.Size {
		return nil, apperrors.ResourceExhausted(
			"insufficient storage: need " + formatBytes(in.Size) + ", " + formatBytes(free) + " free")
	}

	var expiresAt *time.Time
	if in.ExpiryMillis > 0 {
		t := s.now().Add(time.Duration(in.ExpiryMillis) * time.Millisecond)
		expiresAt = &t
	}

	t := &Transfer{
		ID:         newID(),
		Direction:  DirectionUpload,
		Kind:       MessageFile,
		OwnerID:    connID,
		FileName:   name,
		TotalBytes: in.Size,
		Target:     in.Target,
		ExpiresAt:  expiresAt,
		StartedAt:  s.now(),
	}
	s.transfers[t.ID] = t

	s.sender.Send(connID, EventUploadInitialized, UploadInitialized{
		UploadID:     t.ID,
		FileName:     name,
		FileSize:     in.Size,
		ExpiryMillis: expiryMillis(expiresAt),
	})
	s.log.Info("upload initialized", "upload", t.ID, "file", name, "size", in.Size)
	return t, nil
}

// InitVoiceUpload opens a transfer record for a voice message. Voice support
// is a configuration gate, not a separate server variant.
func (s *Service) InitVoiceUpload(connID string, in InitVoiceInput) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	if !s.cfg.EnableVoice {
		return nil, apperrors.InvalidArg("voice messages are disabled")
	}
	if in.DurationMillis <= 0 || in.Size <= 0 {
		return nil, apperrors.InvalidArg("voice duration and size are required")
	}
	if in.Size > s.cfg.MaxVoiceUploadBytes {
		return nil, apperrors.InvalidArg("voice message exceeds " + formatBytes(s.cfg.MaxVoiceUploadBytes))
	}
	if err := s.checkTarget(connID, in.Target); err != nil {
		return nil, err
	}
	if free := s.store.FreeBytes(); free < in.Size {
		return nil, apperrors.ResourceExhausted(
			"insufficient storage: need " + formatBytes(in.Size) + ", " + formatBytes(free) + " free")
	}

	t := &Transfer{
		ID:             newID(),
		Direction:      DirectionUpload,
		Kind:           MessageVoice,
		OwnerID:        connID,
		TotalBytes:     in.Size,
		Target:         in.Target,
		DurationMillis: in.DurationMillis,
		StartedAt:      s.now(),
	}
	s.transfers[t.ID] = t

	s.sender.Send(connID, EventVoiceInitialized, UploadInitialized{UploadID: t.ID, FileSize: in.Size})
	s.log.Info("voice upload initialized", "upload", t.ID, "size", in.Size)
	return t, nil
}

// UpdateUploadProgress records bytes moved for an in-flight upload and pushes
// a stats snapshot to the owner. Progress on an unknown, completed, or
// aborted transfer is rejected rather than resurrecting a record.
func (s *Service) UpdateUploadProgress(connID, uploadID string, uploaded int64) (*TransferStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.activeTransfer(connID, uploadID, DirectionUpload)
	if err != nil {
		return nil, err
	}

	t.BytesMoved = uploaded
	stats := s.transferStats(t)
	event := EventUploadProgress
	if t.Kind == MessageVoice {
		event = EventVoiceProgress
	}
	s.sender.Send(connID, event, TransferProgress{TransferID: t.ID, TransferStats: *stats})
	return stats, nil
}

// AttachUploadBlob binds stored bytes to an open upload. The upload HTTP
// handler calls this after the storage collaborator accepts the bytes, so
// completion resolves an exact blob instead of scanning for the newest file.
func (s *Service) AttachUploadBlob(uploadID string, blob StoredBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transfers[uploadID]
	if !ok || t.done || t.Direction != DirectionUpload {
		return apperrors.NotFound("unknown upload")
	}
	t.Blob = &blob
	return nil
}

// InitFileDownload opens a download transfer for a registered file.
func (s *Service) InitFileDownload(connID, fileURL string) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[connID]; !ok {
		return nil, apperrors.Unauthenticated("not logged in")
	}
	if fileURL == "" {
		return nil, apperrors.InvalidArg("file url is required")
	}
	fileID, ok := s.filesByURL[fileURL]
	if !ok {
		return nil, apperrors.NotFound("file does not exist")
	}
	file := s.files[fileID]

	t := &Transfer{
		ID:         newID(),
		Direction:  DirectionDownload,
		Kind:       file.Kind,
		OwnerID:    connID,
		FileName:   file.Name,
		TotalBytes: file.Size,
		StartedAt:  s.now(),
	}
	s.transfers[t.ID] = t

	s.sender.Send(connID, EventDownloadInitialized, DownloadInitialized{
		DownloadID: t.ID,
		FileName:   file.Name,
		FileSize:   file.Size,
		FileURL:    fileURL,
	})
	s.log.Info("download initialized", "download", t.ID, "file", file.Name)
	return t, nil
}

// UpdateDownloadProgress records bytes moved for an in-flight download. A
// finished download is retained for the grace window and then purged.
func (s *Service) UpdateDownloadProgress(connID, downloadID string, downloaded int64) (*TransferStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.activeTransfer(connID, downloadID, DirectionDownload)
	if err != nil {
		return nil, err
	}

	t.BytesMoved = downloaded
	stats := s.transferStats(t)
	s.sender.Send(connID, EventDownloadProgress, TransferProgress{DownloadID: t.ID, TransferStats: *stats})

	if stats.Percent == 100 {
		s.finishTransfer(t)
	}
	return stats, nil
}

// AbortTransfer cancels a transfer immediately. Abort is terminal: the record
// is removed and later progress events for the id are rejected.
func (s *Service) AbortTransfer(connID, transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transfers[transferID]
	if !ok {
		return apperrors.NotFound("unknown transfer")
	}
	if t.OwnerID != connID {
		return apperrors.Forbidden("not the owner of this transfer")
	}
	// An unfinished upload may already have stored bytes attached; without a
	// file record the sweep would never reclaim them.
	if t.Direction == DirectionUpload && !t.done {
		s.discardBlob(t.Blob)
	}
	delete(s.transfers, transferID)
	s.log.Info("transfer aborted", "transfer", transferID)
	return nil
}

// PurgeTransfers drops completed transfers whose grace window has elapsed.
// The window keeps the id reserved so late duplicate progress events fail
// with an unknown-transfer error instead of opening a fresh record.
func (s *Service) PurgeTransfers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for id, t := range s.transfers {
		if t.done && now.Sub(t.endedAt) >= s.cfg.TransferGrace {
			delete(s.transfers, id)
			purged++
		}
	}
	return purged
}

// activeTransfer resolves an in-flight transfer owned by connID. Caller holds
// the lock.
func (s *Service) activeTransfer(connID, id string, dir TransferDirection) (*Transfer, error) {
	t, ok := s.transfers[id]
	if !ok || t.done || t.Direction != dir {
		return nil, apperrors.NotFound("unknown transfer")
	}
	if t.OwnerID != connID {
		return nil, apperrors.Forbidden("not the owner of this transfer")
	}
	return t, nil
}

// finishTransfer marks a transfer complete and starts its grace window.
// Caller holds the lock.
func (s *Service) finishTransfer(t *Transfer) {
	t.done = true
	t.endedAt = s.now()
}

// transferStats computes the progress snapshot from elapsed wall time.
// Caller holds the lock.
func (s *Service) transferStats(t *Transfer) *TransferStats {
	elapsed := s.now().Sub(t.StartedAt).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(t.BytesMoved) / elapsed
	}
	var remaining int64
	if t.TotalBytes > t.BytesMoved {
		remaining = t.TotalBytes - t.BytesMoved
	}
	eta := 0
	if speed > 0 {
		eta = int(math.Round(float64(remaining) / speed))
	}
	percent := 0
	if t.TotalBytes > 0 {
		percent = int(math.Round(float64(t.BytesMoved) / float64(t.TotalBytes) * 100))
		if percent > 100 {
			percent = 100
		}
		if percent < 0 {
			percent = 0
		}
	}
	return &TransferStats{
		Percent:            percent,
		BytesMoved:         t.BytesMoved,
		TotalBytes:         t.TotalBytes,
		BytesPerSecond:     speed,
		SpeedFormatted:     formatBytes(int64(speed)) + "/s",
		Remaining:          remaining,
		RemainingFormatted: formatBytes(remaining),
		ETASeconds:         eta,
		ETAFormatted:       formatSeconds(eta),
	}
}

// checkTarget validates a transfer destination the same way the message
// router does: the room must exist with the sender as a member, or the target
// user must be a mutual friend. Caller holds the lock.
func (s *Service) checkTarget(connID string, target Target) error {
	if (target.RoomID == "") == (target.UserID == "") {
		return apperrors.InvalidArg("exactly one of roomId and userId must be set")
	}
	if target.RoomID != "" {
		room, ok := s.rooms[target.RoomID]
		if !ok {
			return apperrors.NotFound("room does not exist")
		}
		if !isMember(room, connID) {
			return apperrors.Forbidden("not a member of this room")
		}
		return nil
	}
	if !s.areFriends(connID, target.UserID) {
		return apperrors.Forbidden("target is not a friend")
	}
	return nil
}
