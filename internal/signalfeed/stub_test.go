package signalfeed

import (
	"context"
	"testing"
	"time"

	"risklab/internal/domain"
)

func TestStubFeed_Snapshot(t *testing.T) {
	feed := NewStubFeed(map[string]float64{
		"sig-churn": 0.12,
		"sig-nps":   42,
	})
	defer feed.Close()

	ctx := context.Background()

	values, err := feed.Snapshot(ctx, []string{"sig-churn", "sig-unknown"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(values))
	}
	if values["sig-churn"] != 0.12 {
		t.Errorf("sig-churn = %v, want 0.12", values["sig-churn"])
	}

	// Empty filter returns everything
	all, err := feed.Snapshot(ctx, nil)
	if err != nil {
		t.Fatalf("Snapshot all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 values, got %d", len(all))
	}
}

func TestStubFeed_PushFansOut(t *testing.T) {
	feed := NewStubFeed(map[string]float64{"sig-churn": 100})
	defer feed.Close()

	ctx := context.Background()

	churnOnly, err := feed.Subscribe(ctx, []string{"sig-churn"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	everything, err := feed.Subscribe(ctx, nil)
	if err != nil {
		t.Fatalf("Subscribe all: %v", err)
	}

	feed.Push(domain.SignalUpdate{
		SignalID:      "sig-churn",
		OldValue:      100,
		NewValue:      108,
		ChangePercent: 0.08,
		ObservedAt:    1700000000000,
	})
	feed.Push(domain.SignalUpdate{
		SignalID:      "sig-nps",
		OldValue:      42,
		NewValue:      40,
		ChangePercent: -0.047,
		ObservedAt:    1700000001000,
	})

	select {
	case update := <-churnOnly:
		if update.SignalID != "sig-churn" {
			t.Errorf("filtered channel got %s", update.SignalID)
		}
		if update.NewValue != 108 {
			t.Errorf("new value = %v, want 108", update.NewValue)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for filtered update")
	}
	select {
	case update := <-churnOnly:
		t.Fatalf("filtered channel got unexpected %s", update.SignalID)
	default:
	}

	for _, want := range []string{"sig-churn", "sig-nps"} {
		select {
		case update := <-everything:
			if update.SignalID != want {
				t.Errorf("unfiltered channel got %s, want %s", update.SignalID, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	// Pushed values land in snapshots
	values, err := feed.Snapshot(ctx, []string{"sig-churn"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if values["sig-churn"] != 108 {
		t.Errorf("sig-churn = %v, want 108", values["sig-churn"])
	}
}

func TestStubFeed_IgnoresEmptySignalID(t *testing.T) {
	feed := NewStubFeed(nil)
	defer feed.Close()

	ch, err := feed.Subscribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	feed.Push(domain.SignalUpdate{NewValue: 1})

	select {
	case update := <-ch:
		t.Fatalf("unexpected update %+v", update)
	default:
	}
}

func TestStubFeed_Close(t *testing.T) {
	feed := NewStubFeed(nil)

	ch, err := feed.Subscribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := feed.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}

	if _, err := feed.Subscribe(context.Background(), nil); err == nil {
		t.Error("expected error subscribing after close")
	}
	if _, err := feed.Snapshot(context.Background(), nil); err == nil {
		t.Error("expected error snapshotting after close")
	}
	// Push after close is a no-op
	feed.Push(domain.SignalUpdate{SignalID: "sig-churn", NewValue: 1})
}
