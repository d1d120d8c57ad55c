package session

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/trapwire-ai/trapwire/pkg/intel"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(mr.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("redis store init: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)

	err := store.Update("s1", func(s *Session) error {
		s.ScamDetected = true
		s.Append(Message{Sender: SenderSubject, Text: "verify your kyc"})
		s.Intelligence.Merge(intel.Extract("pay ram@upi"))
		return nil
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	snap, err := store.Get("s1")
	if err != nil || snap == nil {
		t.Fatalf("get failed: %v %v", snap, err)
	}
	if !snap.ScamDetected || len(snap.Messages) != 1 {
		t.Fatalf("state not persisted: %+v", snap)
	}
	if len(snap.Intelligence.PaymentHandles) != 1 {
		t.Fatalf("intelligence not persisted: %+v", snap.Intelligence)
	}
}

func TestRedisStoreSlowUpdatePersists(t *testing.T) {
	store := newTestRedisStore(t)
	store.opTimeout = 50 * time.Millisecond

	// The pipeline's generative call runs inside fn and can outlast a
	// single Redis op budget; the saved state must survive regardless.
	err := store.Update("slow", func(s *Session) error {
		time.Sleep(120 * time.Millisecond)
		s.ScamDetected = true
		s.CallbackSent = true
		return nil
	})
	if err != nil {
		t.Fatalf("slow update failed: %v", err)
	}

	snap, err := store.Get("slow")
	if err != nil || snap == nil {
		t.Fatalf("get failed: %v %v", snap, err)
	}
	if !snap.CallbackSent {
		t.Fatal("committed flag lost after slow update")
	}
}

func TestRedisStoreUnknownSession(t *testing.T) {
	store := newTestRedisStore(t)

	snap, err := store.Get("nope")
	if err != nil {
		t.Fatalf("get errored: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil for unknown session, got %+v", snap)
	}
}

func TestRedisStoreSerializesSameKey(t *testing.T) {
	store := newTestRedisStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Update("shared", func(s *Session) error {
				s.Append(Message{Sender: SenderSubject, Text: strconv.Itoa(i)})
				return nil
			})
		}(i)
	}
	wg.Wait()

	snap, _ := store.Get("shared")
	if len(snap.Messages) != n {
		t.Fatalf("lost updates: %d of %d", len(snap.Messages), n)
	}
}

func TestRedisStoreStatsCountsSessions(t *testing.T) {
	store := newTestRedisStore(t)

	for i := 0; i < 3; i++ {
		_ = store.Update("s"+strconv.Itoa(i), func(s *Session) error { return nil })
	}

	if st := store.Stats(); st.SessionCount != 3 {
		t.Fatalf("expected 3 sessions, got %d", st.SessionCount)
	}
}
