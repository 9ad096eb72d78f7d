package services

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/fastinghub/pulse/internal/models"
)

// activityTypeByEventCode maps event codes to the feed activity type a
// single-user fan-out should produce. Codes absent from the map do not
// generate feed items.
var activityTypeByEventCode = map[string]string{
	models.EventUserJoinedFast:           models.ActivityFastJoin,
	models.EventUserLeftFast:             models.ActivityFastLeave,
	models.EventFastBeginning:            models.ActivityFastStart,
	models.EventDevotionalAvailable:      models.ActivityDevotionalAvailable,
	models.EventFastParticipantMilestone: models.ActivityMilestone,
	models.EventUserMilestoneReached:     models.ActivityMilestone,
}

// feedRetentionDays controls how long read feed items survive before the
// maintenance cleanup removes them, keyed by activity type.
var feedRetentionDays = map[string]int{
	models.ActivityFastJoin:                90,
	models.ActivityFastLeave:               90,
	models.ActivityFastStart:               30,
	models.ActivityDevotionalAvailable:     30,
	models.ActivityMilestone:               365,
	models.ActivityAnnouncement:            60,
	models.ActivityPrayerRequestCompleted:  60,
	models.ActivityPrayerRequestDailyCount: 14,
}

const defaultFeedRetentionDays = 90

func retentionDaysFor(activityType string) int {
	if days, ok := feedRetentionDays[activityType]; ok {
		return days
	}
	return defaultFeedRetentionDays
}

// participantMilestones lists fast participation counts that trigger a
// celebration event when a join lands exactly on one of them.
var participantMilestones = []int{10, 25, 50, 100, 250, 500, 1000}

func isParticipantMilestone(count int) bool {
	for _, threshold := range participantMilestones {
		if count == threshold {
			return true
		}
	}
	return false
}

type milestoneMessage struct {
	Title       string
	Description string
}

// milestoneMessages holds the canned feed copy per milestone type. Types
// without an entry fall back to a generic message built from the type name.
var milestoneMessages = map[string]milestoneMessage{
	models.MilestoneFirstFastJoin: {
		Title:       "First Fast!",
		Description: "You joined your first fast. Welcome to the journey!",
	},
	models.MilestoneFirstNonWeeklyFastDone: {
		Title:       "Fast Completed!",
		Description: "You completed your first full fast. Well done!",
	},
	models.MilestoneFirstPrayerRequestCreated: {
		Title:       "First Prayer Request",
		Description: "You shared your first prayer request with the community.",
	},
	models.MilestoneLoginStreakWeek: {
		Title:       "7-Day Streak",
		Description: "You have checked in seven days in a row. Keep it going!",
	},
}

func messageForMilestone(milestoneType string) milestoneMessage {
	if msg, ok := milestoneMessages[milestoneType]; ok {
		return msg
	}
	return milestoneMessage{
		Title:       "Milestone reached",
		Description: fmt.Sprintf("You reached a new milestone: %s.", humanizeToken(milestoneType)),
	}
}

// buildEventTitle produces the human-readable title stored on an event when
// the caller supplies none. actorName should already be resolved ("System"
// for actorless events) and targetName may be empty.
func buildEventTitle(eventType *models.EventType, actorName, targetName string) string {
	if eventType == nil {
		return ""
	}
	switch eventType.Code {
	case models.EventUserJoinedFast:
		return fmt.Sprintf("%s joined %s", actorName, targetName)
	case models.EventUserLeftFast:
		return fmt.Sprintf("%s left %s", actorName, targetName)
	case models.EventFastBeginning:
		return fmt.Sprintf("%s has begun", targetName)
	case models.EventFastEnding:
		return fmt.Sprintf("%s has ended", targetName)
	case models.EventDevotionalAvailable:
		return fmt.Sprintf("New devotional available for %s", targetName)
	case models.EventFastParticipantMilestone:
		return fmt.Sprintf("%s reached participation milestone", targetName)
	default:
		return fmt.Sprintf("%s %s", actorName, strings.ToLower(eventType.Name))
	}
}

// personalizeFeedTitle rewrites an event title for the feed of the user who
// performed the action, dropping their own name from the front:
// "Grace joined Summer Fast" becomes "Joined Summer Fast".
func personalizeFeedTitle(title, actorName string) string {
	if actorName == "" {
		return title
	}
	prefix := actorName + " "
	if !strings.HasPrefix(title, prefix) {
		return title
	}
	rest := strings.TrimPrefix(title, prefix)
	if rest == "" {
		return title
	}
	runes := []rune(rest)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func humanizeToken(token string) string {
	return strings.ReplaceAll(strings.TrimSpace(token), "_", " ")
}
