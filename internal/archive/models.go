package archive

import "time"

// ArchivedMessage mirrors one accepted chat message.
type ArchivedMessage struct {
	ID               string `gorm:"primaryKey"`
	ConversationKind string `gorm:"index:idx_messages_conversation"`
	ConversationID   string `gorm:"index:idx_messages_conversation"`
	SenderID         string
	SenderName       string
	Kind             string
	Body             string
	Encrypted        bool
	SentAt           time.Time
}

// ArchivedFile mirrors one registered file record. Rows are upserted when the
// expiry changes and deleted when the sweep removes the file.
type ArchivedFile struct {
	ID               string `gorm:"primaryKey"`
	Name             string
	URL              string
	ThumbnailURL     string
	Size             int64
	OwnerID          string
	Kind             string
	ConversationKind string `gorm:"index:idx_files_conversation"`
	ConversationID   string `gorm:"index:idx_files_conversation"`
	UploadedAt       time.Time
	ExpiresAt        *time.Time
}
