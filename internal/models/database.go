package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Database wraps the gorm connection holding resolution records
type Database struct {
	db *gorm.DB
}

// NewDatabase opens (or creates) the sqlite database and migrates the schema
func NewDatabase(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&ResolutionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetRecord retrieves the record stored under exactly this key
func (d *Database) GetRecord(ctx context.Context, key ResolutionKey) (*ResolutionRecord, error) {
	var record ResolutionRecord
	err := d.db.WithContext(ctx).
		Where("info_hash = ? AND media_type = ? AND media_id = ?", strings.ToLower(key.InfoHash), key.MediaType, key.MediaID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindCompatible retrieves every record of the same torrent and content type,
// most recently used first
func (d *Database) FindCompatible(ctx context.Context, infoHash string, mediaType MediaType) ([]*ResolutionRecord, error) {
	var records []*ResolutionRecord
	err := d.db.WithContext(ctx).
		Where("info_hash = ? AND media_type = ?", strings.ToLower(infoHash), mediaType).
		Order("last_used_at DESC").
		Find(&records).Error
	return records, err
}

// UpsertRecord inserts the record or replaces the one stored under the same key
func (d *Database) UpsertRecord(ctx context.Context, record *ResolutionRecord) error {
	now := time.Now()
	record.InfoHash = strings.ToLower(record.InfoHash)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.LastUsedAt = now

	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "info_hash"}, {Name: "media_type"}, {Name: "media_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_torrent_id",
			"selected_files",
			"file_index",
			"file_path",
			"direct_link",
			"provider_info",
			"language",
			"quality",
			"seeders",
			"last_used_at",
		}),
	}).Create(record).Error
}

// TouchRecord bumps the last-used timestamp
func (d *Database) TouchRecord(ctx context.Context, id uint) error {
	return d.db.WithContext(ctx).
		Model(&ResolutionRecord{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now()).Error
}

// CountRecords returns the number of persisted records
func (d *Database) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&ResolutionRecord{}).Count(&count).Error
	return count, err
}

// CountByMediaType returns persisted record counts per media type
func (d *Database) CountByMediaType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		MediaType string
		Count     int64
	}
	err := d.db.WithContext(ctx).
		Model(&ResolutionRecord{}).
		Select("media_type, count(*) as count").
		Group("media_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.MediaType] = row.Count
	}
	return counts, nil
}
