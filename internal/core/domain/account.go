package domain

// Account is the billing identity for an authenticated caller.
type Account struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	IsSubscriber bool   `json:"is_subscriber"`
	ShareCount   int    `json:"share_count"`
}
