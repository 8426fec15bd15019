// Package fallback asks a language model for the structured command when
// the deterministic interpreter declines an utterance.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adasdevman/alya-sub001/internal/jsonutil"
	"github.com/adasdevman/alya-sub001/interpret"
	"github.com/adasdevman/alya-sub001/llm"
)

// Guess is the model's reading of an utterance, filtered down to the
// intents and slots the catalogue actually knows.
type Guess struct {
	Intent interpret.Intent  `json:"intent"`
	Slots  map[string]string `json:"slots"`
}

func (g Guess) Action(chatID string, now time.Time) interpret.Action {
	return interpret.Action{
		ID:       uuid.NewString(),
		Intent:   g.Intent,
		Slots:    g.Slots,
		ChatID:   chatID,
		IssuedAt: now,
	}
}

type Interpreter struct {
	client llm.Client
	model  string
	lex    *interpret.Lexicon
}

func New(client llm.Client, model string, lex *interpret.Lexicon) *Interpreter {
	if lex == nil {
		lex = interpret.DefaultLexicon()
	}
	return &Interpreter{client: client, model: model, lex: lex}
}

// Infer asks the model for an intent and slots. The reply is clamped to
// the catalogue: unknown intents fail, slots outside the schema and
// stop-word values are dropped.
func (f *Interpreter) Infer(ctx context.Context, utterance string) (Guess, error) {
	if f.client == nil {
		return Guess{}, fmt.Errorf("nil llm client")
	}
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Guess{}, fmt.Errorf("empty utterance")
	}

	payload := map[string]any{
		"utterance": utterance,
		"catalogue": f.catalogue(),
		"rules": []string{
			"The utterance is in French.",
			"Pick exactly one intent from the catalogue, or \"unknown\".",
			"Fill only slots declared for that intent.",
			"Slot values are verbatim substrings of the utterance, canonicalized like the examples.",
			"Do not invent slot values.",
		},
	}
	b, _ := json.Marshal(payload)
	sys := "You map a French chat instruction to a SaaS command. " +
		"Return ONLY JSON with keys: intent (string), slots (object of string to string)."

	res, err := f.client.Chat(ctx, llm.Request{
		Model:     f.model,
		ForceJSON: true,
		Messages: []llm.Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: string(b)},
		},
		Parameters: map[string]any{
			"max_tokens":  512,
			"temperature": 0,
		},
	})
	if err != nil {
		return Guess{}, err
	}
	raw := strings.TrimSpace(res.Text)
	if raw == "" {
		return Guess{}, fmt.Errorf("empty fallback response")
	}
	var out Guess
	if err := jsonutil.DecodeWithFallback(raw, &out); err != nil {
		return Guess{}, fmt.Errorf("invalid fallback json")
	}
	return f.clamp(out)
}

func (f *Interpreter) catalogue() []map[string]any {
	var out []map[string]any
	for _, schema := range f.lex.Schemas {
		slots := make([]map[string]any, 0, len(schema.Slots))
		for _, s := range schema.Slots {
			slots = append(slots, map[string]any{
				"name":     s.Name,
				"type":     string(s.Type),
				"required": s.Required,
			})
		}
		out = append(out, map[string]any{
			"intent": string(schema.Intent),
			"slots":  slots,
		})
	}
	return out
}

func (f *Interpreter) clamp(g Guess) (Guess, error) {
	g.Intent = interpret.Intent(strings.TrimSpace(string(g.Intent)))
	schema, ok := f.lex.SchemaFor(g.Intent)
	if !ok {
		return Guess{}, fmt.Errorf("fallback produced no known intent")
	}
	slots := make(map[string]string, len(g.Slots))
	for name, value := range g.Slots {
		value = strings.TrimSpace(value)
		if value == "" || f.lex.IsStopWord(value) {
			continue
		}
		if _, ok := schema.Slot(name); !ok {
			continue
		}
		slots[name] = value
	}
	g.Slots = slots
	return g, nil
}
