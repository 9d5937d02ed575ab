package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/escrow/internal/audit"
	"github.com/congo-pay/escrow/internal/logging"
)

func TestRedisNotifierPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n := NewRedisNotifier(client, "")
	ev := audit.Event{Seq: 3, Kind: audit.KindContributionMade, Actor: "C1", CampaignID: 1, Amount: 600, Total: 600}
	if err := n.Send(ctx, ForEvent(ev, "H1", "contribution received")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var decoded Message
		if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.Kind != audit.KindContributionMade || decoded.Event.Total != 600 || decoded.Destination != "H1" {
			t.Fatalf("unexpected message: %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, Message) error { return errors.New("down") }

func TestMultiJoinsErrors(t *testing.T) {
	m := Multi{NewLoggerNotifier(logging.Discard()), failingNotifier{}, nil}
	if err := m.Send(context.Background(), Message{Kind: audit.KindKYCSubmitted}); err == nil {
		t.Fatal("expected joined error from failing notifier")
	}
}
