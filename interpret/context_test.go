package interpret

import (
	"sync"
	"testing"
	"time"
)

func TestStoreAcquireSerializesPerChat(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Now()

	const workers = 8
	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				conv, release := s.Acquire("chat-1", now)
				conv.Intent = IntentCreateTask
				conv.TurnCount++
				release()
			}
		}()
	}
	wg.Wait()

	conv, release := s.Acquire("chat-1", now)
	defer release()
	if conv.TurnCount != workers*rounds {
		t.Errorf("turn count = %d, want %d", conv.TurnCount, workers*rounds)
	}
}

func TestStoreDropsIdleConversationsOnRelease(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Now()

	conv, release := s.Acquire("chat-1", now)
	_ = conv
	release()
	if s.Len() != 0 {
		t.Errorf("idle conversation kept, len = %d", s.Len())
	}

	conv, release = s.Acquire("chat-2", now)
	conv.Intent = IntentCreateTask
	conv.Pending = []string{"title"}
	conv.LastActivity = now
	release()
	if s.Len() != 1 {
		t.Errorf("active conversation dropped, len = %d", s.Len())
	}
}

func TestStoreResetsStaleOnAcquire(t *testing.T) {
	s := NewStore(10 * time.Minute)
	start := time.Now()

	conv, release := s.Acquire("chat-1", start)
	conv.Intent = IntentCreateTask
	conv.Collected = map[string]Slot{"title": {Value: "x"}}
	conv.Pending = []string{"assignee"}
	conv.LastActivity = start
	release()

	conv, release = s.Acquire("chat-1", start.Add(11*time.Minute))
	defer release()
	if conv.Active() {
		t.Errorf("stale conversation not reset: %+v", conv)
	}
	if len(conv.Collected) != 0 || len(conv.Pending) != 0 {
		t.Errorf("stale conversation kept slots: %+v", conv)
	}
}

func TestStoreSweepEvictsStale(t *testing.T) {
	s := NewStore(10 * time.Minute)
	start := time.Now()

	for _, id := range []string{"a", "b"} {
		conv, release := s.Acquire(id, start)
		conv.Intent = IntentCreateTask
		conv.Pending = []string{"title"}
		conv.LastActivity = start
		release()
	}
	conv, release := s.Acquire("fresh", start.Add(9*time.Minute))
	conv.Intent = IntentSendMessage
	conv.Pending = []string{"text"}
	conv.LastActivity = start.Add(9 * time.Minute)
	release()

	removed := s.Sweep(start.Add(11 * time.Minute))
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestConversationIdleInvariant(t *testing.T) {
	var c Conversation
	if c.Active() {
		t.Error("zero conversation must be idle")
	}
	c.start(Classification{Intent: IntentCreateTask}, ParseResult{
		Intent:  IntentCreateTask,
		Filled:  map[string]Slot{"title": {Value: "x"}},
		Missing: []string{"assignee"},
	})
	if !c.Active() {
		t.Error("started conversation must be active")
	}
	c.Clear()
	if c.Active() || c.Collected != nil || c.Pending != nil || c.TurnCount != 0 {
		t.Errorf("clear left residue: %+v", c)
	}
}
