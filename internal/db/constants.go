package db

import "time"

// Retention caps. When a table grows past its cap it is trimmed to the
// newest keep rows.
const (
	activityCap       = 1000
	activityKeep      = 500
	costEventCap      = 10000
	costEventKeep     = 5000
	maxActivityLimit  = 100
	defaultRecentRows = 50
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Defaults applied on create.
const (
	defaultProjectStatus = "queued"
	defaultPriority      = "medium"
	defaultTaskStatus    = "pending"
	defaultSkillStatus   = "active"
	defaultCronStatus    = "active"
	channelActive        = "active"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
