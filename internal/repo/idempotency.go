package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/don-confiado-backend/internal/domain"
)

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, route, userID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("route = ? AND user_id = ? AND key = ? AND expires_at > ?", route, userID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency stores the response produced for key and returns
// ErrDuplicate on unique violation. An expired record for the same tuple is
// replaced.
func CreateIdempotency(ctx context.Context, db *gorm.DB, route, userID, key string, status int, response []byte, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Route:     route,
		UserID:    userID,
		Key:       key,
		Status:    status,
		Response:  datatypes.JSON(response),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route = ? AND user_id = ? AND key = ? AND expires_at <= ?", route, userID, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records that expired before now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// IdempotencyStore binds the idempotency table to a TTL for the chat
// handlers.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

// NewIdempotencyStore returns a store writing records that live for ttl.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{DB: db, TTL: ttl, Now: func() time.Time { return time.Now().UTC() }}
}

// Lookup returns the recorded status and body for (route, userID, key), or
// ErrNotFound.
func (s *IdempotencyStore) Lookup(ctx context.Context, route, userID, key string) (int, []byte, error) {
	rec, err := GetIdempotency(ctx, s.DB, route, userID, key, s.Now())
	if err != nil {
		return 0, nil, err
	}
	return rec.Status, []byte(rec.Response), nil
}

// Save records body under (route, userID, key). A concurrent request that
// saved first wins and ErrDuplicate is returned.
func (s *IdempotencyStore) Save(ctx context.Context, route, userID, key string, status int, body []byte) error {
	_, err := CreateIdempotency(ctx, s.DB, route, userID, key, status, body, s.TTL)
	return err
}
