package models

// Threshold is one operator-configured integer limit.
type Threshold struct {
	Key   string `gorm:"primaryKey"`
	Value int
}

// Threshold keys and their defaults, applied when unset.
const (
	ThresholdMaxRequestsPerMinute = "max_requests_per_minute"
	ThresholdMaxConcurrent        = "max_concurrent_sessions"
	ThresholdSessionTimeout       = "session_timeout_minutes"
)

// DefaultThresholds returns the fixed defaults for all threshold keys.
func DefaultThresholds() map[string]int {
	return map[string]int{
		ThresholdMaxRequestsPerMinute: 60,
		ThresholdMaxConcurrent:        3,
		ThresholdSessionTimeout:       30,
	}
}
