// Package chat implements the session and conversation coordination core: the
// registry of connected users, rooms, friendships, and private conversations,
// the message router, the transfer tracker, and the file lifecycle manager.
//
// All registry state is owned by a single Service instance and mutated under
// one lock, so every operation runs as a short non-preemptible step. The core
// never touches a socket or a filesystem path; it talks to the transport
// through the Sender interface and to byte storage through BlobStore.
package chat

import (
	"log/slog"
	"sync"
	"time"
)

// BlobStore is the byte-storage collaborator. Storing bytes happens outside
// the core (the upload handler attaches stored blobs to transfer records);
// the core only deletes blobs and queries capacity.
type BlobStore interface {
	Delete(url string) error
	FreeBytes() int64
	TotalBytes() int64
}

// Thumbnailer produces a thumbnail URL for a stored image. A failed or
// pass-through thumbnailer falls back to the original URL.
type Thumbnailer interface {
	Thumbnail(url string) (string, error)
}

// Archive mirrors accepted messages and registered files to a durable store.
// The in-memory registry stays the source of truth; archive failures are
// logged and never fail the operation.
type Archive interface {
	SaveMessage(m *Message, kind ConversationKind, conversationID string) error
	SaveFile(f *FileRecord) error
	DeleteFile(fileID string) error
}

// Config carries the tunables of the coordination core.
type Config struct {
	DefaultRoomName     string
	MinNameLength       int
	MaxNameLength       int
	MinPublicKeyLength  int
	MaxMessageLength    int
	MaxUploadBytes      int64
	MaxVoiceUploadBytes int64
	BlockedExtensions   []string
	EnableVoice         bool
	AllowRoomEncryption bool
	TransferGrace       time.Duration
	SweepInterval       time.Duration
	StoragePushInterval time.Duration
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		DefaultRoomName:     "Public Chat",
		MinNameLength:       2,
		MaxNameLength:       50,
		MinPublicKeyLength:  100,
		MaxMessageLength:    5000,
		MaxUploadBytes:      100 << 20,
		MaxVoiceUploadBytes: 10 << 20,
		BlockedExtensions:   []string{".exe", ".bat", ".cmd", ".sh", ".msi", ".dll"},
		EnableVoice:         true,
		AllowRoomEncryption: false,
		TransferGrace:       30 * time.Second,
		SweepInterval:       60 * time.Second,
		StoragePushInterval: 30 * time.Second,
	}
}

// DefaultRoomID is the id of the lazily created default room.
const DefaultRoomID = "default"

// Service owns the registry and implements every coordination operation.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	log     *slog.Logger
	sender  Sender
	store   BlobStore
	thumbs  Thumbnailer
	archive Archive
	now     func() time.Time

	users          map[string]*User
	rooms          map[string]*Room
	conversations  map[string]*Conversation
	friendRequests map[string][]*FriendRequest
	friends        map[string][]string
	joinRequests   map[string]*JoinRequest
	transfers      map[string]*Transfer
	files          map[string]*FileRecord
	filesByURL     map[string]string
}

// NewService builds a Service around its collaborators. A nil logger falls
// back to slog.Default; a nil archive disables mirroring.
func NewService(cfg Config, sender Sender, store BlobStore, thumbs Thumbnailer, archive Archive, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if archive == nil {
		archive = nopArchive{}
	}
	return &Service{
		cfg:            cfg,
		log:            log,
		sender:         sender,
		store:          store,
		thumbs:         thumbs,
		archive:        archive,
		now:            time.Now,
		users:          make(map[string]*User),
		rooms:          make(map[string]*Room),
		conversations:  make(map[string]*Conversation),
		friendRequests: make(map[string][]*FriendRequest),
		friends:        make(map[string][]string),
		joinRequests:   make(map[string]*JoinRequest),
		transfers:      make(map[string]*Transfer),
		files:          make(map[string]*FileRecord),
		filesByURL:     make(map[string]string),
	}
}

type nopArchive struct{}

func (nopArchive) SaveMessage(*Message, ConversationKind, string) error { return nil }
func (nopArchive) SaveFile(*FileRecord) error                          { return nil }
func (nopArchive) DeleteFile(string) error                             { return nil }

// StorageSnapshot reports the storage collaborator's capacity in the shape
// pushed to clients as a storageInfo event.
func (s *Service) StorageSnapshot() StorageInfo {
	total := s.store.TotalBytes()
	free := s.store.FreeBytes()
	used := 0
	if total > 0 {
		used = int(float64(total-free)/float64(total)*100 + 0.5)
	}
	return StorageInfo{
		Total:          total,
		Free:           free,
		TotalFormatted: formatBytes(total),
		FreeFormatted:  formatBytes(free),
		UsedPercentage: used,
	}
}

// PushStorageInfo broadcasts the current storage snapshot to all connections.
func (s *Service) PushStorageInfo() {
	s.sender.Broadcast(EventStorageInfo, s.StorageSnapshot())
}

// clockStamp renders a wall-clock timestamp the way history entries carry it.
func (s *Service) clockStamp() string {
	return s.now().Format("15:04:05")
}

// userList builds the active-user roster. Caller holds the lock.
func (s *Service) userList() []UserEntry {
	list := make([]UserEntry, 0, len(s.users))
	for id, u := range s.users {
		list = append(list, UserEntry{ID: id, Name: u.Name, HasPublicKey: u.PublicKey != ""})
	}
	return list
}

// roomListFor builds the room roster as seen by one user. Caller holds the lock.
func (s *Service) roomListFor(viewerName string) []RoomEntry {
	list := make([]RoomEntry, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, RoomEntry{
			ID:          r.ID,
			Name:        r.Name,
			MemberCount: len(r.Members),
			IsCreator:   r.Creator == viewerName,
		})
	}
	return list
}

// publishUserList broadcasts the roster to every connection. Caller holds the lock.
func (s *Service) publishUserList() {
	s.sender.Broadcast(EventUserList, s.userList())
}

// publishRoomLists sends each logged-in user its own view of the room roster,
// since the IsCreator flag differs per viewer. Caller holds the lock.
func (s *Service) publishRoomLists() {
	for id, u := range s.users {
		s.sender.Send(id, EventRoomList, s.roomListFor(u.Name))
	}
}

// notifyRoom sends a system message to every member of a room and appends it
// to the room log. Caller holds the lock.
func (s *Service) notifyRoom(room *Room, text string) {
	notice := SystemNotice{Text: text, Time: s.clockStamp(), RoomID: room.ID}
	msg := &Message{
		ID:         newID(),
		Kind:       MessageSystem,
		Text:       text,
		SenderName: "system",
		RoomID:     room.ID,
		Time:       notice.Time,
		sentAt:     s.now(),
	}
	room.Messages = append(room.Messages, msg)
	for _, member := range room.Members {
		s.sender.Send(member, EventSystemMessage, notice)
	}
}

// friendListFor builds a user's friend roster. Caller holds the lock.
func (s *Service) friendListFor(connID string) []FriendEntry {
	ids := s.friends[connID]
	list := make([]FriendEntry, 0, len(ids))
	for _, id := range ids {
		name := "unknown"
		if friend, ok := s.users[id]; ok {
			name = friend.Name
		}
		list = append(list, FriendEntry{ID: id, Name: name})
	}
	return list
}
