package util

import "time"

// GetMidnight 返回 t 所在日期（UTC）的零点
func GetMidnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey 按 UTC 日期分桶的键，例如 2026-01-07
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// CeilMinutes 剩余时长向上取整到分钟
func CeilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	minutes := int(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}
	return minutes
}
