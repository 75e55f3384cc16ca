package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents an account's service level
type Tier string

const (
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Account represents a registered user of the market
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Tier         Tier
	CreatedAt    time.Time
}

// TierPolicy gathers every tier-gated limit in one place so endpoints
// consult a single lookup instead of scattering role conditionals.
type TierPolicy struct {
	// HistoryDays is the maximum history window an account may request.
	HistoryDays int
	// VisibleSymbols caps how many instruments a listing returns.
	// 0 means unlimited.
	VisibleSymbols int
	// QuotesPerDay is the call-rate ceiling enforced by the external
	// rate limiter. The core only carries the number.
	QuotesPerDay int
}

var tierPolicies = map[Tier]TierPolicy{
	TierBasic: {HistoryDays: 30, VisibleSymbols: 3, QuotesPerDay: 100},
	// Pro accounts get 5 years and 1 month of history.
	TierPro: {HistoryDays: 1856, VisibleSymbols: 0, QuotesPerDay: 1000},
}

// PolicyFor returns the policy for a tier. Unknown tiers fall back to
// the basic policy rather than failing open.
func PolicyFor(tier Tier) TierPolicy {
	if p, ok := tierPolicies[tier]; ok {
		return p
	}
	return tierPolicies[TierBasic]
}
