package chat

import "time"

// ConversationKind distinguishes room history from private two-party history.
type ConversationKind string

const (
	KindRoom    ConversationKind = "room"
	KindPrivate ConversationKind = "private"
)

// MessageKind classifies entries in a conversation log.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageFile   MessageKind = "file"
	MessageVoice  MessageKind = "voice"
	MessageSystem MessageKind = "system"
)

// TransferDirection marks a transfer record as an upload or a download.
type TransferDirection string

const (
	DirectionUpload   TransferDirection = "upload"
	DirectionDownload TransferDirection = "download"
)

// User is an active connection bound to a display name. The connection id is
// the primary key; a name vacated by disconnect may be reused.
type User struct {
	ID        string
	Name      string
	PublicKey string
	Rooms     []string
}

// Room holds membership and the append-only message/file history of a room.
// Creator is tracked by display name so ownership survives the creator's
// connection id changing hands.
type Room struct {
	ID       string
	Name     string
	Creator  string
	Members  []string
	Messages []*Message
	Files    []*FileEntry
}

// Conversation is the history of a private two-party exchange. Participants
// holds the two connection ids in sorted order; connection ids are opaque (and
// may contain the id separator), so the pair is stored rather than re-derived
// from the conversation id.
type Conversation struct {
	Participants [2]string
	Messages     []*Message
	Files        []*FileEntry
}

// Target names the destination of a message or file: exactly one of RoomID
// and UserID must be set.
type Target struct {
	RoomID string `json:"roomId,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// Message is an immutable entry in a conversation log. JSON field names match
// the wire payload delivered as a newMessage event.
type Message struct {
	ID           string      `json:"id"`
	Kind         MessageKind `json:"type"`
	Text         string      `json:"text,omitempty"`
	Encrypted    bool        `json:"isEncrypted,omitempty"`
	SenderName   string      `json:"user"`
	SenderID     string      `json:"userId"`
	RoomID       string      `json:"roomId,omitempty"`
	TargetUserID string      `json:"targetUserId,omitempty"`
	Time         string      `json:"time"`

	// File and voice payloads.
	FileID          string `json:"fileId,omitempty"`
	FileName        string `json:"fileName,omitempty"`
	FileURL         string `json:"fileUrl,omitempty"`
	OriginalURL     string `json:"originalUrl,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	FileSize        int64  `json:"fileSize,omitempty"`
	IsImage         bool   `json:"isImage,omitempty"`
	DurationMillis  int64  `json:"duration,omitempty"`
	ExpiryMillis    *int64 `json:"expiryTime,omitempty"`
	ExpiryFormatted string `json:"expiryTimeFormatted,omitempty"`

	sentAt time.Time
}

// SentAt reports when the message was accepted by the router.
func (m *Message) SentAt() time.Time { return m.sentAt }

// FriendRequest is a directed pending edge stored under the recipient's
// connection id.
type FriendRequest struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	Status   string `json:"status"`
	Time     string `json:"time"`
}

const (
	requestPending  = "pending"
	requestAccepted = "accepted"
	requestRejected = "rejected"
)

// JoinRequest tracks a pending room-join request by id, so approvals resolve
// the exact requester instead of guessing.
type JoinRequest struct {
	ID       string
	RoomID   string
	From     string
	FromName string
	Time     string
}

// StoredBlob describes bytes the storage collaborator accepted for an upload.
type StoredBlob struct {
	URL     string
	Size    int64
	IsImage bool
}

// Transfer is the ephemeral progress record of one upload or download.
type Transfer struct {
	ID             string
	Direction      TransferDirection
	Kind           MessageKind // MessageFile or MessageVoice
	OwnerID        string
	FileName       string
	TotalBytes     int64
	BytesMoved     int64
	Target         Target
	DurationMillis int64
	ExpiresAt      *time.Time
	Blob           *StoredBlob
	StartedAt      time.Time

	done    bool
	endedAt time.Time
}

// TransferStats is the progress snapshot computed on each progress update.
// JSON field names match the wire payload of the progress events.
type TransferStats struct {
	Percent            int     `json:"progress"`
	BytesMoved         int64   `json:"uploaded"`
	TotalBytes         int64   `json:"total"`
	BytesPerSecond     float64 `json:"speed"`
	SpeedFormatted     string  `json:"speedFormatted"`
	Remaining          int64   `json:"remaining"`
	RemainingFormatted string  `json:"remainingFormatted"`
	ETASeconds         int     `json:"timeRemaining"`
	ETAFormatted       string  `json:"timeRemainingFormatted"`
}

// FileRecord is the global registration of an uploaded file. Deleting it owns
// the backing bytes: the sweep removes the blob and the conversation entry.
type FileRecord struct {
	ID             string
	Name           string
	URL            string
	ThumbnailURL   string
	Size           int64
	OwnerID        string
	Kind           MessageKind
	IsImage        bool
	Conversation   ConversationKind
	ConversationID string
	DurationMillis int64
	UploadedAt     time.Time
	ExpiresAt      *time.Time
}

// FileEntry is the per-conversation file log entry shown in file listings.
type FileEntry struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Size            int64       `json:"size"`
	SizeFormatted   string      `json:"sizeFormatted,omitempty"`
	Time            string      `json:"time"`
	User            string      `json:"user"`
	UserID          string      `json:"userId"`
	Kind            MessageKind `json:"type"`
	IsImage         bool        `json:"isImage,omitempty"`
	DurationMillis  int64       `json:"duration,omitempty"`
	ExpiryMillis    *int64      `json:"expiryTime"`
	ExpiryFormatted string      `json:"expiryTimeFormatted"`
}
