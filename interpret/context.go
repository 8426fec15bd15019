package interpret

import (
	"sync"
	"time"
)

// Conversation is the per-chat state carried across turns while an
// intent is being completed. Intent empty means idle, and an idle
// conversation holds no collected slots and no pending prompts.
type Conversation struct {
	ChatID       string
	Intent       Intent
	Priority     int
	Collected    map[string]Slot
	Pending      []string
	TurnCount    int
	LastActivity time.Time
}

func (c *Conversation) Active() bool {
	return c.Intent != "" && c.Intent != IntentUnknown
}

func (c *Conversation) Clear() {
	c.Intent = ""
	c.Priority = 0
	c.Collected = nil
	c.Pending = nil
	c.TurnCount = 0
}

// start loads a fresh parse into the conversation, replacing whatever
// was being collected before.
func (c *Conversation) start(cls Classification, pr ParseResult) {
	c.Intent = pr.Intent
	c.Priority = cls.Priority
	c.Collected = make(map[string]Slot, len(pr.Filled))
	for k, v := range pr.Filled {
		c.Collected[k] = v
	}
	c.Pending = append([]string(nil), pr.Missing...)
	c.TurnCount = 0
}

func (c *Conversation) stale(now time.Time, ttl time.Duration) bool {
	return !c.LastActivity.IsZero() && now.Sub(c.LastActivity) > ttl
}

// Store keys conversations by chat ID. Each entry carries its own lock
// so updates to one chat are strictly sequential while distinct chats
// proceed in parallel. Stale conversations are reset lazily on access
// and removed by Sweep.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*storeEntry
}

type storeEntry struct {
	mu   sync.Mutex
	conv Conversation
}

func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, entries: make(map[string]*storeEntry)}
}

// Acquire returns the conversation for chatID with its per-key lock
// held. The release func must be called exactly once; it drops the lock
// and discards the entry if the conversation finished idle, so a
// completed or ignored chat leaves no residue in the store.
func (s *Store) Acquire(chatID string, now time.Time) (*Conversation, func()) {
	s.mu.Lock()
	e, ok := s.entries[chatID]
	if !ok {
		e = &storeEntry{conv: Conversation{ChatID: chatID}}
		s.entries[chatID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	if e.conv.stale(now, s.ttl) {
		e.conv.Clear()
	}
	release := func() {
		idle := !e.conv.Active()
		e.mu.Unlock()
		if idle {
			s.mu.Lock()
			if cur, ok := s.entries[chatID]; ok && cur == e {
				delete(s.entries, chatID)
			}
			s.mu.Unlock()
		}
	}
	return &e.conv, release
}

// Sweep drops every conversation idle past the TTL and reports how many
// were removed. Entries whose lock is currently held are skipped; the
// holder refreshes activity anyway.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.conv.stale(now, s.ttl) || !e.conv.Active() {
			delete(s.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
