package store

import (
	"fmt"
	"time"
)

// Account status values derived from the expire time. These are stable
// machine-readable strings; the UI layer localizes them.
const (
	StatusNormal          = "normal"
	StatusExpired         = "expired"
	StatusPermanent       = "permanent"
	StatusDateFormatError = "date-format-error"
	StatusUnknownDuration = "unknown-duration"
	StatusLoggedOut       = "logged-out"
	StatusTrial           = "trial"
)

// Expire time sentinels that bypass date parsing.
const (
	ExpireUnknown   = "unknown"
	ExpirePermanent = "permanent"
)

// expireFormats is the accepted set of expire_time layouts, tried in order.
var expireFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// StatusExpiringSoon renders the expiring-soon status with days remaining.
func StatusExpiringSoon(days int) string {
	return fmt.Sprintf("expiring-soon(%d)", days)
}

// ParseExpireTime parses an expire_time string against the accepted formats.
func ParseExpireTime(s string) (time.Time, bool) {
	for _, layout := range expireFormats {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DeriveStatus computes an account status from its expire time.
//
// A date strictly before now is expired; the days_left == 0 boundary is
// applied uniformly here (a same-day future expiry reports expiring-soon(0)).
func DeriveStatus(expireTime string, now time.Time) string {
	switch expireTime {
	case "", ExpireUnknown:
		return StatusUnknownDuration
	case ExpirePermanent:
		return StatusPermanent
	}

	expireDate, ok := ParseExpireTime(expireTime)
	if !ok {
		return StatusDateFormatError
	}
	if expireDate.Before(now) {
		return StatusExpired
	}
	daysLeft := int(expireDate.Sub(now).Hours() / 24)
	if daysLeft <= 7 {
		return StatusExpiringSoon(daysLeft)
	}
	return StatusNormal
}
