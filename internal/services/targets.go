package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
)

// Target kinds understood by the event pipeline.
const (
	TargetFast          = "fast"
	TargetDevotional    = "devotional"
	TargetAnnouncement  = "announcement"
	TargetPrayerRequest = "prayer_request"
	TargetUser          = "user"
	TargetChurch        = "church"
)

// TargetRef identifies the domain object an event points at.
type TargetRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether the reference is missing either half.
func (t TargetRef) IsZero() bool {
	return strings.TrimSpace(t.Kind) == "" || strings.TrimSpace(t.ID) == ""
}

// TargetResolver loads the display name for one kind of referent.
type TargetResolver func(ctx context.Context, db *gorm.DB, id string) (string, error)

// targetResolvers maps each known target kind to its name lookup. Kinds
// outside the map (prayer requests live in another service) resolve to the
// humanized kind name.
var targetResolvers = map[string]TargetResolver{
	TargetFast: func(ctx context.Context, db *gorm.DB, id string) (string, error) {
		var fast models.Fast
		err := db.WithContext(ctx).Select("name").First(&fast, "id = ?", id).Error
		return fast.Name, err
	},
	TargetDevotional: func(ctx context.Context, db *gorm.DB, id string) (string, error) {
		var devotional models.Devotional
		err := db.WithContext(ctx).Select("title").First(&devotional, "id = ?", id).Error
		return devotional.Title, err
	},
	TargetAnnouncement: func(ctx context.Context, db *gorm.DB, id string) (string, error) {
		var announcement models.Announcement
		err := db.WithContext(ctx).Select("title").First(&announcement, "id = ?", id).Error
		return announcement.Title, err
	},
	TargetUser: func(ctx context.Context, db *gorm.DB, id string) (string, error) {
		var user models.User
		err := db.WithContext(ctx).Select("username", "display_name").First(&user, "id = ?", id).Error
		return user.Name(), err
	},
	TargetChurch: func(ctx context.Context, db *gorm.DB, id string) (string, error) {
		var church models.Church
		err := db.WithContext(ctx).Select("name").First(&church, "id = ?", id).Error
		return church.Name, err
	},
}

// resolveTargetName returns a display name for the referenced object. Unknown
// kinds and deleted referents resolve to the humanized kind so titles stay
// readable regardless.
func resolveTargetName(ctx context.Context, db *gorm.DB, ref TargetRef) (string, error) {
	if ref.IsZero() {
		return "", nil
	}

	resolver, ok := targetResolvers[ref.Kind]
	if !ok {
		return humanizeToken(ref.Kind), nil
	}

	name, err := resolver(ctx, db, strings.TrimSpace(ref.ID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return humanizeToken(ref.Kind), nil
		}
		return "", fmt.Errorf("resolve target %s/%s: %w", ref.Kind, ref.ID, err)
	}
	if strings.TrimSpace(name) == "" {
		return humanizeToken(ref.Kind), nil
	}
	return name, nil
}
