package models

// Account stores one captured editor login identity, including the bearer
// tokens extracted during authorization.
type Account struct {
	ID           string `gorm:"primaryKey" json:"id"` // UUID
	Email        string `gorm:"index" json:"email"`   // best-effort secondary key
	Password     string `json:"password,omitempty"`
	AuthSource   string `json:"auth_source,omitempty"` // email | google | github | unknown
	Membership   string `json:"membership,omitempty"`  // pro | free_trial | ...
	Status       string `json:"status,omitempty"`      // derived from ExpireTime
	ExpireTime   string `json:"expire_time,omitempty"` // date string, or "unknown"/"permanent"
	RefreshToken string `json:"refresh_token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	Quota        string `json:"quota,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	LastLogin    string `json:"last_login,omitempty"`
	ExtraData    string `json:"-"` // JSON blob for provider-specific extras
}
