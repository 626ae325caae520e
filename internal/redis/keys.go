package redis

import "fmt"

const ns = "yoyaku:v1"

func KeyResourceCalendar(resourceID int64, year, month int) string {
	return fmt.Sprintf("%s:resource:%d:calendar:%04d-%02d", ns, resourceID, year, month)
}

func KeyOwnerCalendar(ownerID int64, year, month int) string {
	return fmt.Sprintf("%s:owner:%d:calendar:%04d-%02d", ns, ownerID, year, month)
}

// RateLimitPrefix namespaces the sliding-window limiter keys.
func RateLimitPrefix() string {
	return ns + ":rl"
}

func ChannelCalendarChanged() string {
	return ns + ":calendar:changed"
}
