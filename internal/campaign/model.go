package campaign

import (
	"time"

	"github.com/congo-pay/escrow/internal/audit"
)

// Status is the lifecycle state of a campaign. It only moves forward:
// active -> goal_reached -> withdrawn.
type Status string

const (
	StatusActive      Status = "active"
	StatusGoalReached Status = "goal_reached"
	StatusWithdrawn   Status = "withdrawn"
)

func (s Status) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusGoalReached:
		return 1
	case StatusWithdrawn:
		return 2
	default:
		return -1
	}
}

// CanBecome reports whether moving from s to next is a legal transition.
// Staying put is legal; skipping goal_reached or going back is not.
func (s Status) CanBecome(next Status) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to == from || to == from+1
}

// Campaign is a fundraising record together with its escrowed total.
//
// PayoutRef and PayoutStartedAt hold the withdrawal reservation while the
// payout is in flight. They are internal bookkeeping; readers still see
// StatusGoalReached until the payout completes.
type Campaign struct {
	ID              int64
	Title           string
	Description     string
	Creator         string
	GoalAmount      int64
	FundsRaised     int64
	Status          Status
	CreatedAt       time.Time
	PayoutRef       string
	PayoutStartedAt time.Time
	WithdrawnAt     time.Time
}

// Withdrawal is the result of a completed withdrawal.
type Withdrawal struct {
	Campaign      Campaign
	Amount        int64
	TransactionID string
}

// Mutation computes the next state of a campaign. The returned campaign is
// always written; the event is appended only when its Kind is set. Returning
// an error aborts without side effects.
type Mutation func(current Campaign) (next Campaign, event audit.Event, err error)

// Builder produces a new campaign for the id the store allocated.
type Builder func(id int64) (Campaign, audit.Event, error)
