package models

// User is the display profile of an externally managed account.
type User struct {
	ID        int    `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
}
