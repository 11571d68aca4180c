// Package archive mirrors accepted messages and registered files to a sqlite
// database through GORM. The in-memory registry remains the source of truth;
// the archive is an optional durable trail enabled by configuring a DSN.
package archive

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/NeuronPulse/ChatPlus/internal/chat"
)

// Store is the GORM-backed implementation of chat.Archive.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.AutoMigrate(&ArchivedMessage{}, &ArchivedFile{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveMessage(m *chat.Message, kind chat.ConversationKind, conversationID string) error {
	row := &ArchivedMessage{
		ID:               m.ID,
		ConversationKind: string(kind),
		ConversationID:   conversationID,
		SenderID:         m.SenderID,
		SenderName:       m.SenderName,
		Kind:             string(m.Kind),
		Body:             m.Text,
		Encrypted:        m.Encrypted,
		SentAt:           m.SentAt(),
	}
	return s.db.Create(row).Error
}

func (s *Store) SaveFile(f *chat.FileRecord) error {
	row := &ArchivedFile{
		ID:               f.ID,
		Name:             f.Name,
		URL:              f.URL,
		ThumbnailURL:     f.ThumbnailURL,
		Size:             f.Size,
		OwnerID:          f.OwnerID,
		Kind:             string(f.Kind),
		ConversationKind: string(f.Conversation),
		ConversationID:   f.ConversationID,
		UploadedAt:       f.UploadedAt,
		ExpiresAt:        f.ExpiresAt,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (s *Store) DeleteFile(fileID string) error {
	return s.db.Delete(&ArchivedFile{}, "id = ?", fileID).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
