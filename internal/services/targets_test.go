package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastinghub/pulse/internal/database/testutil"
	"github.com/fastinghub/pulse/internal/models"
)

func TestResolveTargetName(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()

	fast := createTestFast(t, db, "Daniel Fast", time.Time{}, time.Time{})
	user := models.User{Username: "grace", DisplayName: "Grace Kim"}
	mustCreate(t, db, &user)
	church := models.Church{Name: "Hillside Chapel"}
	mustCreate(t, db, &church)
	devotional := models.Devotional{FastID: fast.ID, Title: "Day 3: Perseverance"}
	mustCreate(t, db, &devotional)

	cases := []struct {
		name string
		ref  TargetRef
		want string
	}{
		{"fast", TargetRef{Kind: TargetFast, ID: fast.ID}, "Daniel Fast"},
		{"user display name", TargetRef{Kind: TargetUser, ID: user.ID}, "Grace Kim"},
		{"church", TargetRef{Kind: TargetChurch, ID: church.ID}, "Hillside Chapel"},
		{"devotional", TargetRef{Kind: TargetDevotional, ID: devotional.ID}, "Day 3: Perseverance"},
		{"unknown kind", TargetRef{Kind: TargetPrayerRequest, ID: "pr-1"}, "prayer request"},
		{"deleted referent", TargetRef{Kind: TargetFast, ID: "no-such-fast"}, "fast"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, err := resolveTargetName(ctx, db, tc.ref)
			require.NoError(t, err)
			require.Equal(t, tc.want, name)
		})
	}
}

func TestTargetRefIsZero(t *testing.T) {
	require.True(t, TargetRef{}.IsZero())
	require.True(t, TargetRef{Kind: TargetFast}.IsZero())
	require.True(t, TargetRef{ID: "abc"}.IsZero())
	require.True(t, TargetRef{Kind: " ", ID: "abc"}.IsZero())
	require.False(t, TargetRef{Kind: TargetFast, ID: "abc"}.IsZero())
}
