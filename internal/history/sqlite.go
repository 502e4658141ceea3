package history

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go.klb.dev/clipstash/internal/clip"
)

// clipRecord is one history row. Position 0 is the most recent clip.
type clipRecord struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	Position          int    `gorm:"not null;index"`
	Data              []byte `gorm:"not null"`
	Kind              string `gorm:"size:16;not null"`
	TimestampUnixNano int64  `gorm:"not null"`
}

func (clipRecord) TableName() string { return "clips" }

// SQLiteStore keeps the history in a SQLite database. Save replaces the
// table contents inside one transaction.
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// NewSQLite opens or creates the database at path and migrates its schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&clipRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("history: migrate %s: %w", path, err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path implements Store.
func (s *SQLiteStore) Path() string { return s.path }

// Load implements Store.
func (s *SQLiteStore) Load() ([]clip.Clip, error) {
	var records []clipRecord
	if err := s.db.Order("position asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("history: query %s: %w", s.path, err)
	}
	clips := make([]clip.Clip, 0, len(records))
	for _, r := range records {
		kind, err := clip.ParseKind(r.Kind)
		if err != nil {
			return nil, corrupt(fmt.Errorf("row %d: %w", r.ID, err))
		}
		if len(r.Data) == 0 {
			return nil, corrupt(fmt.Errorf("row %d: clip without data", r.ID))
		}
		c := clip.Clip{Data: r.Data, Kind: kind}
		if r.TimestampUnixNano != 0 {
			c.Timestamp = time.Unix(0, r.TimestampUnixNano)
		}
		clips = append(clips, c)
	}
	return clips, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(clips []clip.Clip) error {
	records := make([]clipRecord, len(clips))
	for i, c := range clips {
		records[i] = clipRecord{
			Position: i,
			Data:     c.Data,
			Kind:     c.Kind.String(),
		}
		if !c.Timestamp.IsZero() {
			records[i].TimestampUnixNano = c.Timestamp.UnixNano()
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&clipRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
	if err != nil {
		return fmt.Errorf("history: save %s: %w", s.path, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
