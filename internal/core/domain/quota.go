package domain

// UnlimitedQuota marks a subscriber with no monthly cap.
const UnlimitedQuota int64 = -1

// QuotaDecision is the outcome of the quota gate for one request.
type QuotaDecision struct {
	Allowed      bool  `json:"allowed"`
	Remaining    int64 `json:"remaining"`
	IsSubscriber bool  `json:"isSubscriber"`
}
