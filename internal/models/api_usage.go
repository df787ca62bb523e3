package models

import "time"

// APIUsage tracks monthly request counts per external provider.
type APIUsage struct {
	APIName      string    `json:"api_name"`
	RequestCount int       `json:"request_count"`
	LastReset    time.Time `json:"last_reset"`
}

// Rollover zeroes the counter the first time it is touched in a new
// calendar month. It reports whether a reset happened.
func (u *APIUsage) Rollover(now time.Time) bool {
	if now.Year() == u.LastReset.Year() && now.Month() == u.LastReset.Month() {
		return false
	}
	u.RequestCount = 0
	u.LastReset = now
	return true
}

func (u *APIUsage) IsLimitExceeded(limit int, now time.Time) bool {
	u.Rollover(now)
	return u.RequestCount >= limit
}

func (u *APIUsage) Increment(now time.Time) {
	u.Rollover(now)
	u.RequestCount++
}
