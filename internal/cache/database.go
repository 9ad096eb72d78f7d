package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fastinghub/pulse/internal/models"
)

var errStoreNotInitialised = errors.New("cache: database store not initialised")

// DatabaseStore keeps cache entries in the primary SQL database. It is the
// fallback Store for deployments that run without Redis; expiry is enforced
// on read and reaped by the maintenance scheduler.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps the shared gorm handle. Returns nil when the
// handle is nil so callers can treat the store as absent.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// handle guards the nil receiver and normalises the context.
func (s *DatabaseStore) handle(ctx context.Context) (*gorm.DB, error) {
	if s == nil {
		return nil, errStoreNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx), nil
}

// IncrementWithTTL counts hits against a key inside a rolling window. The
// row is locked for the duration of the bump so concurrent requests cannot
// double-count.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = time.Minute
	}

	now := time.Now()
	windowEnd := now.Add(window)

	var count int64
	err = db.Transaction(func(tx *gorm.DB) error {
		var bumpErr error
		count, bumpErr = bumpCounter(tx, key, now, windowEnd)
		return bumpErr
	})
	if err != nil {
		return 0, 0, err
	}
	return count, windowEnd.Sub(now), nil
}

// bumpCounter increments the counter row under a row lock, resetting it
// when the previous window has lapsed.
func bumpCounter(tx *gorm.DB, key string, now, windowEnd time.Time) (int64, error) {
	var entry models.CacheEntry
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Take(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = models.CacheEntry{Key: key, Value: []byte("1"), ExpiresAt: windowEnd}
		return 1, tx.Create(&entry).Error
	}
	if err != nil {
		return 0, err
	}

	count := int64(1)
	if !entry.ExpiresAt.Before(now) {
		previous, _ := strconv.ParseInt(string(entry.Value), 10, 64)
		count = previous + 1
	}
	entry.Value = []byte(strconv.FormatInt(count, 10))
	entry.ExpiresAt = windowEnd
	return count, tx.Save(&entry).Error
}

// Set upserts a value. A non-positive TTL stores the entry with a zero
// expiry, which never lapses.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	entry := models.CacheEntry{Key: key, Value: value, ExpiresAt: expiresAt}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Get reads a value, treating lapsed entries as misses and deleting them
// on the way out.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, false, err
	}

	var entry models.CacheEntry
	err = db.Take(&entry, "key = ?", key).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}

	if entryLapsed(entry, time.Now()) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// entryLapsed reports whether a non-permanent entry expired before now.
func entryLapsed(entry models.CacheEntry, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt)
}

// Delete removes keys; absent keys are ignored.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return db.Where("key IN ?", keys).Delete(&models.CacheEntry{}).Error
}

// PurgeExpired reaps entries whose expiry has passed. Rows with a zero
// expiry are permanent. The maintenance scheduler calls this; the Redis
// backend expires keys natively and never needs it.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}

	result := db.
		Where("expires_at > ? AND expires_at < ?", time.Time{}, time.Now()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
