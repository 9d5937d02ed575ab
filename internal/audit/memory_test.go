package audit

import (
	"context"
	"testing"
)

func TestMemoryLogAppendAssignsSequence(t *testing.T) {
	log := NewMemoryLog()
	first := log.Append(Event{Kind: KindKYCSubmitted, Actor: "H1", Holder: "H1"})
	second := log.Append(Event{Kind: KindKYCApproved, Actor: "admin", Holder: "H1"})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected sequences 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
	if first.ID == "" || first.OccurredAt.IsZero() {
		t.Fatalf("expected id and timestamp to be stamped: %+v", first)
	}
}

func TestMemoryLogListFilters(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	log.Append(Event{Kind: KindKYCSubmitted, Actor: "H1", Holder: "H1"})
	log.Append(Event{Kind: KindCampaignCreated, Actor: "H1", CampaignID: 1, Amount: 1000})
	log.Append(Event{Kind: KindContributionMade, Actor: "C1", CampaignID: 1, Amount: 600, Total: 600})
	log.Append(Event{Kind: KindCampaignCreated, Actor: "H2", CampaignID: 2, Amount: 50})

	byCampaign, err := log.List(ctx, Filter{CampaignID: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byCampaign) != 2 {
		t.Fatalf("expected 2 events for campaign 1, got %d", len(byCampaign))
	}

	byHolder, _ := log.List(ctx, Filter{Holder: "H1"})
	if len(byHolder) != 2 {
		t.Fatalf("expected 2 events for H1, got %d", len(byHolder))
	}

	page, _ := log.List(ctx, Filter{AfterSeq: 2, Limit: 1})
	if len(page) != 1 || page[0].Seq != 3 {
		t.Fatalf("expected single event with seq 3, got %+v", page)
	}
}
