package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
)

// GormStore keeps records in the application database
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGormStore migrates the idempotency table and returns a store
func NewGormStore(db *gorm.DB, ttl time.Duration) (*GormStore, error) {
	if err := db.AutoMigrate(&Record{}).Error; err != nil {
		return nil, fmt.Errorf("failed to migrate idempotency keys: %w", err)
	}
	return &GormStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (*Record, error) {
	var rec Record
	err := s.db.Where("idempotency_key = ?", key).First(&rec).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if s.expired(rec) {
		if err := s.dropExpired(key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Claim inserts a pending record. The primary key makes the insert fail
// when another request holds the key, in which case the held record is
// returned.
func (s *GormStore) Claim(ctx context.Context, rec Record) (*Record, error) {
	if err := s.dropExpired(rec.Key); err != nil {
		return nil, err
	}
	s.stamp(&rec)
	rec.PaymentID = 0

	createErr := s.db.Create(&rec).Error
	if createErr == nil {
		return nil, nil
	}
	held, err := s.Get(ctx, rec.Key)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", createErr)
	}
	if err != nil {
		return nil, err
	}
	return held, nil
}

// Put stores the finished record, replacing the claim.
func (s *GormStore) Put(ctx context.Context, rec Record) error {
	s.stamp(&rec)
	res := s.db.Model(&Record{}).Where("idempotency_key = ?", rec.Key).Updates(map[string]interface{}{
		"scope":      rec.Scope,
		"order_id":   rec.OrderID,
		"payment_id": rec.PaymentID,
		"expires_at": rec.ExpiresAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to store idempotency key: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}

// Release drops a pending claim. Finished records are kept.
func (s *GormStore) Release(ctx context.Context, key string) error {
	err := s.db.Where("idempotency_key = ? AND payment_id = 0", key).Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Purge deletes expired records and returns how many were removed.
func (s *GormStore) Purge(ctx context.Context) (int64, error) {
	res := s.db.Where("expires_at < ? AND expires_at > ?", s.now(), time.Time{}).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge idempotency keys: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) stamp(rec *Record) {
	rec.CreatedAt = s.now()
	if s.ttl > 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}
}

func (s *GormStore) expired(rec Record) bool {
	return s.ttl > 0 && !rec.ExpiresAt.IsZero() && s.now().After(rec.ExpiresAt)
}

func (s *GormStore) dropExpired(key string) error {
	if s.ttl <= 0 {
		return nil
	}
	err := s.db.Where("idempotency_key = ? AND expires_at < ? AND expires_at > ?", key, s.now(), time.Time{}).
		Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("failed to drop expired idempotency key: %w", err)
	}
	return nil
}
