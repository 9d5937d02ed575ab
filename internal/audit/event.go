package audit

import (
	"context"
	"time"
)

// Kind names an auditable action.
type Kind string

const (
	KindKYCSubmitted     Kind = "KYCSubmitted"
	KindKYCApproved      Kind = "KYCApproved"
	KindKYCRejected      Kind = "KYCRejected"
	KindCampaignCreated  Kind = "CampaignCreated"
	KindContributionMade Kind = "ContributionMade"
	KindFundsWithdrawn   Kind = "FundsWithdrawn"
)

// Event is emitted from domain logic in the same commit as the state change it
// describes. Seq is assigned by the log on append and orders the log.
type Event struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Actor      string    `json:"actor"`
	Holder     string    `json:"holder,omitempty"`
	CampaignID int64     `json:"campaign_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Total      int64     `json:"total,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Filter narrows a log read. Zero values mean no constraint; Limit defaults to
// DefaultLimit and is capped at MaxLimit.
type Filter struct {
	AfterSeq   int64
	Limit      int
	Holder     string
	CampaignID int64
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}

func (f Filter) match(ev Event) bool {
	if ev.Seq <= f.AfterSeq {
		return false
	}
	if f.Holder != "" && ev.Holder != f.Holder && ev.Actor != f.Holder {
		return false
	}
	if f.CampaignID != 0 && ev.CampaignID != f.CampaignID {
		return false
	}
	return true
}

// Reader pages through the log in append order.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Event, error)
}
