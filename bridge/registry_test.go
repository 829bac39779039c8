package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegistry_SettleResolvesExactlyOnce(t *testing.T) {
	r := NewRegistry(time.Second)
	tx := r.Register("fetchAllModes", 0)

	if !r.Settle(tx.ID, json.RawMessage(`"first"`), nil) {
		t.Fatal("first Settle() = false, want true")
	}
	if r.Settle(tx.ID, json.RawMessage(`"second"`), nil) {
		t.Error("second Settle() = true, want false")
	}

	data, err := tx.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(data) != `"first"` {
		t.Errorf("Wait() = %s, want %s", data, `"first"`)
	}
	if tx.State() != StateResolved {
		t.Errorf("State() = %v, want %v", tx.State(), StateResolved)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
}

func TestRegistry_SettleUnknownIsNoop(t *testing.T) {
	r := NewRegistry(time.Second)
	if r.Settle("nope", nil, nil) {
		t.Error("Settle(unknown) = true, want false")
	}
}

func TestRegistry_Timeout(t *testing.T) {
	r := NewRegistry(time.Second)
	tx := r.Register("fetchAllDevices", 20*time.Millisecond)

	_, err := tx.Wait(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Wait() error = %v, want ErrTimeout", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Channel != "fetchAllDevices" || te.ID != tx.ID {
		t.Errorf("error = %#v, want TimeoutError for %s", err, tx.ID)
	}
	if tx.State() != StateTimedOut {
		t.Errorf("State() = %v, want %v", tx.State(), StateTimedOut)
	}

	// A response after the timeout has no observable effect.
	if r.Settle(tx.ID, json.RawMessage(`[]`), nil) {
		t.Error("late Settle() = true, want false")
	}
	if tx.State() != StateTimedOut {
		t.Errorf("State() after late response = %v, want %v", tx.State(), StateTimedOut)
	}
}

func TestRegistry_TimeoutsAreIndependent(t *testing.T) {
	r := NewRegistry(time.Second)
	short := r.Register("a", 10*time.Millisecond)
	long := r.Register("b", time.Minute)

	<-short.Done()
	if long.State() != StatePending {
		t.Fatalf("long.State() = %v, want pending", long.State())
	}
	if !r.Settle(long.ID, json.RawMessage(`1`), nil) {
		t.Fatal("Settle(long) = false, want true")
	}
}

func TestRegistry_RejectAll(t *testing.T) {
	r := NewRegistry(time.Minute)
	crash := errors.New("worker exited")

	var txs []*Transaction
	for range 5 {
		txs = append(txs, r.Register("fetchAllModes", 0))
	}

	if n := r.RejectAll(crash); n != 5 {
		t.Fatalf("RejectAll() = %d, want 5", n)
	}

	for _, tx := range txs {
		select {
		case <-tx.Done():
		default:
			t.Fatalf("transaction %s still pending after RejectAll", tx.ID)
		}
		if _, err := tx.Wait(context.Background()); !errors.Is(err, crash) {
			t.Errorf("Wait() error = %v, want %v", err, crash)
		}
	}
}

func TestRegistry_WaitContextCancelled(t *testing.T) {
	r := NewRegistry(time.Minute)
	tx := r.Register("fetchAllResults", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tx.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
	if r.Settle(tx.ID, nil, nil) {
		t.Error("Settle() after cancel = true, want false")
	}
}

func TestRegistry_IDsAreUnique(t *testing.T) {
	a := NewRegistry(time.Minute)
	b := NewRegistry(time.Minute)

	seen := make(map[string]bool)
	for range 1000 {
		for _, r := range []*Registry{a, b} {
			tx := r.Register("x", 0)
			if seen[tx.ID] {
				t.Fatalf("duplicate id %s", tx.ID)
			}
			seen[tx.ID] = true
			if !strings.HasPrefix(tx.ID, r.prefix+"-") {
				t.Fatalf("id %s missing prefix %s", tx.ID, r.prefix)
			}
		}
	}
	a.RejectAll(errors.New("done"))
	b.RejectAll(errors.New("done"))
}
