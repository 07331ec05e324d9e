package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"equireach/models"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("history record not found")

// HistoryStore is the append-only outreach log backed by GORM
type HistoryStore struct {
	DB *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{DB: db}
}

// Append inserts a new record. Records are never deduplicated.
func (hs *HistoryStore) Append(ctx context.Context, record *models.OutreachRecord) error {
	if record.Status == "" {
		record.Status = models.StatusSent
	}
	record.Seq = 0
	if err := hs.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// QueryRecent returns the most recent n records, most recent first
func (hs *HistoryStore) QueryRecent(ctx context.Context, n int) ([]models.OutreachRecord, error) {
	var records []models.OutreachRecord
	err := hs.DB.WithContext(ctx).
		Order("date DESC").
		Order("seq DESC").
		Limit(n).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	return records, nil
}

// QueryAll returns every record in append order
func (hs *HistoryStore) QueryAll(ctx context.Context) ([]models.OutreachRecord, error) {
	var records []models.OutreachRecord
	if err := hs.DB.WithContext(ctx).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return records, nil
}

// UpdateStatus is the out-of-band status change for a single record
func (hs *HistoryStore) UpdateStatus(ctx context.Context, seq uint, status models.OutreachStatus) (*models.OutreachRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	var record models.OutreachRecord
	if err := hs.DB.WithContext(ctx).First(&record, seq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if err := hs.DB.WithContext(ctx).Model(&record).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("update history status: %w", err)
	}
	record.Status = status
	return &record, nil
}

// LatestByEmail finds the newest record sent to an address, case-insensitively
func (hs *HistoryStore) LatestByEmail(ctx context.Context, email string) (*models.OutreachRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrRecordNotFound
	}

	var record models.OutreachRecord
	err := hs.DB.WithContext(ctx).
		Where("LOWER(email) = ?", email).
		Order("seq DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}
