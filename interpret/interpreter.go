package interpret

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxTurns caps how many prompts one action may cost before
	// the interpreter gives up on it.
	DefaultMaxTurns = 5
	// DefaultIdleTTL is how long a half-collected conversation survives
	// without activity.
	DefaultIdleTTL = 10 * time.Minute
	// MaxUtteranceBytes bounds accepted input.
	MaxUtteranceBytes = 4096
)

type Options struct {
	Lexicon  *Lexicon
	MaxTurns int
	IdleTTL  time.Duration
	Logger   *slog.Logger
}

// Interpreter is the single entry point of the command interpreter. It
// is safe for concurrent use; updates to the same chat are serialized by
// the store's per-key lock.
type Interpreter struct {
	lex      *Lexicon
	ex       *Extractor
	store    *Store
	maxTurns int
	logger   *slog.Logger
}

func New(opts Options) (*Interpreter, error) {
	lex := opts.Lexicon
	if lex == nil {
		lex = DefaultLexicon()
	}
	if err := lex.Validate(); err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	ex, err := NewExtractor(lex)
	if err != nil {
		return nil, fmt.Errorf("compile patterns: %w", err)
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Interpreter{
		lex:      lex,
		ex:       ex,
		store:    NewStore(ttl),
		maxTurns: maxTurns,
		logger:   logger,
	}, nil
}

// Interpret runs one utterance through the pipeline for the given chat.
// It is total: every failure mode is an Outcome, never an error.
func (it *Interpreter) Interpret(chatID, utterance string, now time.Time) Outcome {
	if strings.TrimSpace(utterance) == "" || len(utterance) > MaxUtteranceBytes {
		return Ignored(ReasonMalformed)
	}

	conv, release := it.store.Acquire(chatID, now)
	defer release()

	n := Normalize(utterance).TrimAddressee(it.lex.Addressee)

	if it.lex.IsCancel(n.Folded) {
		conv.Clear()
		it.log(chatID, OutcomeCancelled, "", "")
		return Cancelled()
	}

	if !conv.Active() {
		cls := Classify(it.lex, n)
		if cls.Intent == IntentUnknown {
			it.log(chatID, OutcomeIgnored, "", ReasonNoIntent)
			return Ignored(ReasonNoIntent)
		}
		pr := it.ex.Extract(cls.Intent, cls, n)
		conv.start(cls, pr)
	} else {
		cls := Classify(it.lex, n)
		switch {
		case cls.Intent != IntentUnknown && cls.Intent != conv.Intent && cls.Priority < conv.Priority:
			// A stronger command interrupts the one being collected.
			pr := it.ex.Extract(cls.Intent, cls, n)
			conv.start(cls, pr)
		case len(conv.Pending) > 0:
			name := conv.Pending[0]
			if slot, ok := it.ex.Answer(conv.Intent, name, n); ok {
				conv.Collected[name] = slot
				conv.Pending = conv.Pending[1:]
			}
		}
	}
	conv.LastActivity = now

	if len(conv.Pending) == 0 {
		action := it.buildAction(conv, chatID, now)
		conv.Clear()
		it.log(chatID, OutcomeActionReady, action.Intent, "")
		return ActionReady(action)
	}

	conv.TurnCount++
	if conv.TurnCount > it.maxTurns {
		intent := conv.Intent
		conv.Clear()
		it.log(chatID, OutcomeIgnored, intent, ReasonAbandoned)
		return Ignored(ReasonAbandoned)
	}

	name := conv.Pending[0]
	prompt := ""
	if schema, ok := it.lex.SchemaFor(conv.Intent); ok {
		if spec, ok := schema.Slot(name); ok {
			prompt = spec.Prompt
		}
	}
	it.log(chatID, OutcomeNeedSlot, conv.Intent, name)
	return NeedSlot(name, prompt)
}

func (it *Interpreter) buildAction(conv *Conversation, chatID string, now time.Time) Action {
	slots := make(map[string]string, len(conv.Collected))
	for name, slot := range conv.Collected {
		slots[name] = slot.Value
	}
	return Action{
		ID:       uuid.NewString(),
		Intent:   conv.Intent,
		Slots:    slots,
		ChatID:   chatID,
		IssuedAt: now,
	}
}

// Sweep evicts stale conversations; see Store.Sweep.
func (it *Interpreter) Sweep(now time.Time) int {
	return it.store.Sweep(now)
}

// StartSweeper runs periodic eviction until ctx is done.
func (it *Interpreter) StartSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if n := it.store.Sweep(t); n > 0 {
					it.logger.Debug("swept stale conversations", "count", n)
				}
			}
		}
	}()
}

func (it *Interpreter) log(chatID string, kind OutcomeKind, intent Intent, detail string) {
	it.logger.Debug("interpret",
		"chat_id", chatID,
		"outcome", string(kind),
		"intent", string(intent),
		"detail", detail,
	)
}
