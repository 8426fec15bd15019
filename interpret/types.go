package interpret

import (
	"encoding/json"
	"time"
)

// Intent is a coarse user goal drawn from the fixed catalogue.
type Intent string

const (
	IntentCreateTask      Intent = "create_task"
	IntentSendMessage     Intent = "send_message"
	IntentShareFile       Intent = "share_file"
	IntentListPermissions Intent = "list_permissions"
	IntentUnknown         Intent = "unknown"
)

type SlotType string

const (
	SlotFreeText     SlotType = "free_text"
	SlotShortName    SlotType = "short_name"
	SlotQuotedPhrase SlotType = "quoted_phrase"
	SlotChannelRef   SlotType = "channel_ref"
	SlotWeekday      SlotType = "weekday"
	SlotDateRef      SlotType = "date_ref"
	SlotEnum         SlotType = "enum"
)

type SlotSource string

const (
	SourceExtracted SlotSource = "extracted"
	SourcePrompted  SlotSource = "prompted"
	SourceDefaulted SlotSource = "defaulted"
)

// Slot is a named value captured from an utterance. Raw is the surface
// substring as the user typed it; Value is the canonical form handed to
// adapters.
type Slot struct {
	Name       string     `json:"name"`
	Raw        string     `json:"raw"`
	Value      string     `json:"value"`
	Source     SlotSource `json:"source"`
	Confidence float64    `json:"confidence"`
}

// Span is a half-open byte range into a folded utterance.
type Span struct {
	Start int
	End   int
}

func (s Span) Empty() bool { return s.End <= s.Start }

func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// ParseResult is the outcome of running the slot extractor for one intent.
// Missing lists required slots in schema order; Filled may additionally
// contain optional and defaulted slots.
type ParseResult struct {
	Intent   Intent
	Anchor   Span
	Filled   map[string]Slot
	Missing  []string
	Residual string
}

// Action is the final structured command handed to an adapter.
type Action struct {
	ID       string
	Intent   Intent
	Slots    map[string]string
	ChatID   string
	IssuedAt time.Time
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string            `json:"id"`
		Intent   string            `json:"intent"`
		Slots    map[string]string `json:"slots"`
		ChatID   string            `json:"chat_id"`
		IssuedAt string            `json:"issued_at"`
	}{
		ID:       a.ID,
		Intent:   string(a.Intent),
		Slots:    a.Slots,
		ChatID:   a.ChatID,
		IssuedAt: a.IssuedAt.UTC().Format(time.RFC3339),
	})
}

type OutcomeKind string

const (
	OutcomeActionReady OutcomeKind = "action_ready"
	OutcomeNeedSlot    OutcomeKind = "need_slot"
	OutcomeCancelled   OutcomeKind = "cancelled"
	OutcomeIgnored     OutcomeKind = "ignored"
)

// Ignored reasons.
const (
	ReasonNoIntent  = "no_intent"
	ReasonMalformed = "malformed"
	ReasonAbandoned = "abandoned"
)

// Outcome is the tagged result of one interpreter update. Exactly one of
// the payload fields is meaningful for a given Kind.
type Outcome struct {
	Kind   OutcomeKind
	Action *Action
	Slot   string
	Prompt string
	Reason string
}

func ActionReady(a Action) Outcome {
	return Outcome{Kind: OutcomeActionReady, Action: &a}
}

func NeedSlot(slot, prompt string) Outcome {
	return Outcome{Kind: OutcomeNeedSlot, Slot: slot, Prompt: prompt}
}

func Cancelled() Outcome { return Outcome{Kind: OutcomeCancelled} }

func Ignored(reason string) Outcome {
	return Outcome{Kind: OutcomeIgnored, Reason: reason}
}
