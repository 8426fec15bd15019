package interpret

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one prioritized classification rule. Every Require group must
// contribute at least one term present in the utterance, and no Forbid
// term may appear. Rules are evaluated in declared order; the first hit
// wins.
type Rule struct {
	Intent   Intent     `yaml:"intent"`
	Require  [][]string `yaml:"require"`
	Forbid   []string   `yaml:"forbid,omitempty"`
	Platform string     `yaml:"platform,omitempty"`
}

// EnumValue maps surface terms to one canonical value.
type EnumValue struct {
	Value string   `yaml:"value"`
	Terms []string `yaml:"terms"`
}

// SlotSpec describes one slot of an intent schema. Patterns are ordered
// regexes (each with a single capture group) tried before the generic
// matcher for the slot type; Keywords anchor unquoted and quoted capture.
// A non-empty Default makes the slot defaulted instead of missing.
type SlotSpec struct {
	Name     string      `yaml:"name"`
	Type     SlotType    `yaml:"type"`
	Required bool        `yaml:"required"`
	Prompt   string      `yaml:"prompt,omitempty"`
	Keywords []string    `yaml:"keywords,omitempty"`
	Patterns []string    `yaml:"patterns,omitempty"`
	Enum     []EnumValue `yaml:"enum,omitempty"`
	Default  string      `yaml:"default,omitempty"`
}

// Schema is the ordered, typed slot list of one intent.
type Schema struct {
	Intent Intent     `yaml:"intent"`
	Slots  []SlotSpec `yaml:"slots"`
}

func (s Schema) Slot(name string) (SlotSpec, bool) {
	for _, spec := range s.Slots {
		if spec.Name == name {
			return spec, true
		}
	}
	return SlotSpec{}, false
}

// RequiredSlots returns the names of required slots in declared order.
func (s Schema) RequiredSlots() []string {
	var out []string
	for _, spec := range s.Slots {
		if spec.Required {
			out = append(out, spec.Name)
		}
	}
	return out
}

// Lexicon bundles every static table the interpreter matches against.
// It is read-only after construction.
type Lexicon struct {
	Addressee     string      `yaml:"addressee"`
	StopWords     []string    `yaml:"stop_words"`
	Cancel        []string    `yaml:"cancel"`
	Weekdays      []string    `yaml:"weekdays"`
	RelativeDates []string    `yaml:"relative_dates"`
	Platforms     []EnumValue `yaml:"platforms"`
	Rules         []Rule      `yaml:"rules"`
	Schemas       []Schema    `yaml:"schemas"`
}

func (l *Lexicon) SchemaFor(intent Intent) (Schema, bool) {
	for _, s := range l.Schemas {
		if s.Intent == intent {
			return s, true
		}
	}
	return Schema{}, false
}

// IsStopWord reports whether v (once folded) is a reserved stop word and
// therefore never a legal slot value.
func (l *Lexicon) IsStopWord(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, w := range l.StopWords {
		if v == w {
			return true
		}
	}
	return false
}

// IsPlatformTerm reports whether v names a platform anchor.
func (l *Lexicon) IsPlatformTerm(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, p := range l.Platforms {
		for _, t := range p.Terms {
			if v == t {
				return true
			}
		}
	}
	return false
}

// IsCancel reports whether the folded utterance matches the cancel
// lexicon.
func (l *Lexicon) IsCancel(folded string) bool {
	for _, phrase := range l.Cancel {
		if findTerm(folded, phrase) >= 0 {
			return true
		}
	}
	return false
}

// Load reads a YAML lexicon file. The file replaces the builtin tables
// wholesale; partial overrides are not merged.
func Load(path string) (*Lexicon, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lexicon %s: %w", path, err)
	}
	return &lex, nil
}

// Validate checks the tables for the mistakes a hand-edited lexicon file
// tends to contain.
func (l *Lexicon) Validate() error {
	if len(l.Rules) == 0 {
		return fmt.Errorf("rules are required")
	}
	if len(l.Schemas) == 0 {
		return fmt.Errorf("schemas are required")
	}
	known := map[Intent]bool{
		IntentCreateTask:      true,
		IntentSendMessage:     true,
		IntentShareFile:       true,
		IntentListPermissions: true,
	}
	for i, r := range l.Rules {
		if !known[r.Intent] {
			return fmt.Errorf("rule %d: unknown intent %q", i, r.Intent)
		}
		if len(r.Require) == 0 {
			return fmt.Errorf("rule %d (%s): require groups are required", i, r.Intent)
		}
		for gi, group := range r.Require {
			if len(group) == 0 {
				return fmt.Errorf("rule %d (%s): require group %d is empty", i, r.Intent, gi)
			}
		}
		if _, ok := l.SchemaFor(r.Intent); !ok {
			return fmt.Errorf("rule %d: no schema for intent %q", i, r.Intent)
		}
	}
	validTypes := map[SlotType]bool{
		SlotFreeText: true, SlotShortName: true, SlotQuotedPhrase: true,
		SlotChannelRef: true, SlotWeekday: true, SlotDateRef: true, SlotEnum: true,
	}
	for _, s := range l.Schemas {
		if !known[s.Intent] {
			return fmt.Errorf("schema: unknown intent %q", s.Intent)
		}
		seen := map[string]bool{}
		for _, spec := range s.Slots {
			if spec.Name == "" {
				return fmt.Errorf("schema %s: slot without name", s.Intent)
			}
			if seen[spec.Name] {
				return fmt.Errorf("schema %s: duplicate slot %q", s.Intent, spec.Name)
			}
			seen[spec.Name] = true
			if !validTypes[spec.Type] {
				return fmt.Errorf("schema %s: slot %q has unknown type %q", s.Intent, spec.Name, spec.Type)
			}
			if spec.Required && spec.Prompt == "" {
				return fmt.Errorf("schema %s: required slot %q has no prompt", s.Intent, spec.Name)
			}
			if spec.Required && spec.Default != "" {
				return fmt.Errorf("schema %s: slot %q is both required and defaulted", s.Intent, spec.Name)
			}
			if spec.Type == SlotEnum && len(spec.Enum) == 0 {
				return fmt.Errorf("schema %s: enum slot %q has no values", s.Intent, spec.Name)
			}
			for pi, p := range spec.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return fmt.Errorf("schema %s: slot %q pattern %d: %w", s.Intent, spec.Name, pi, err)
				}
				if re.NumSubexp() != 1 {
					return fmt.Errorf("schema %s: slot %q pattern %d: want exactly one capture group", s.Intent, spec.Name, pi)
				}
			}
		}
	}
	return nil
}

var platformEnum = []EnumValue{
	{Value: "trello", Terms: []string{"trello"}},
	{Value: "slack", Terms: []string{"slack"}},
	{Value: "drive", Terms: []string{"google drive", "drive"}},
	{Value: "gmail", Terms: []string{"gmail"}},
	{Value: "hubspot", Terms: []string{"hubspot"}},
	{Value: "pipedrive", Terms: []string{"pipedrive"}},
	{Value: "mailchimp", Terms: []string{"mailchimp"}},
}

// DefaultLexicon returns the builtin tables. Callers must treat the
// result as read-only.
func DefaultLexicon() *Lexicon {
	stopWords := []string{"sur", "et", "pour", "à", "avec", "assigne", "échéance"}
	stopAlt := strings.Join(stopWords, "|")
	// Same bounding the generic families get in NewExtractor: lazy
	// captures, cut at punctuation or the next stop word. nameEnd also
	// accepts "dans" so a name never runs into "dans la colonne".
	nameEnd := `\s*(?:[.,;:]|\s+(?:` + stopAlt + `|dans)\s|$)`
	textEnd := `\s*(?:[.,;]|\s(?:` + stopAlt + `)(?:\s|$)|$)`

	return &Lexicon{
		Addressee: "alya",
		StopWords: stopWords,
		Cancel:    []string{"annule", "annuler", "laisse tomber", "stop", "abandonne"},
		Weekdays: []string{
			"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
		},
		RelativeDates: []string{"aujourd'hui", "demain", "après-demain", "semaine prochaine"},
		Platforms:     platformEnum,
		Rules: []Rule{
			{
				Intent:   IntentCreateTask,
				Require:  [][]string{{"ajoute", "ajouter", "crée", "créer", "creer", "nouvelle"}, {"tâche", "tache", "carte"}},
				Platform: "trello",
			},
			{
				Intent:   IntentSendMessage,
				Require:  [][]string{{"envoie", "envoyer", "poste", "poster"}, {"message"}},
				Platform: "slack",
			},
			{
				Intent:   IntentSendMessage,
				Require:  [][]string{{"dis"}, {"à"}},
				Platform: "slack",
			},
			{
				Intent:   IntentShareFile,
				Require:  [][]string{{"partage", "partager"}, {"fichier", "document"}},
				Platform: "drive",
			},
			{
				Intent:   IntentListPermissions,
				Require:  [][]string{{"qui a accès", "qui a acces", "permissions"}},
				Platform: "drive",
			},
		},
		Schemas: []Schema{
			{
				Intent: IntentCreateTask,
				Slots: []SlotSpec{
					{
						Name: "title", Type: SlotQuotedPhrase, Required: true,
						Prompt:   "Quel est le titre de la tâche ?",
						Keywords: []string{"tâche", "tache", "carte"},
					},
					{
						Name: "column", Type: SlotQuotedPhrase,
						Prompt:   "Dans quelle colonne dois-je la placer ?",
						Keywords: []string{"colonne", "liste"},
						Default:  "À faire",
					},
					{
						Name: "platform", Type: SlotEnum,
						Enum: platformEnum, Default: "trello",
					},
					{
						Name: "assignee", Type: SlotShortName, Required: true,
						Prompt: "À qui veux-tu assigner cette tâche ?",
						Patterns: []string{
							`assign[eé][es]*(?:-l[ae])?\s+(?:l[ae]\s+)?[àa]\s+([\pL][\pL' -]*?)` + nameEnd,
							`(?:^|\s)[àa]\s+([\pL][\pL' -]*?)` + nameEnd,
						},
					},
					{
						Name: "due", Type: SlotDateRef,
					},
				},
			},
			{
				Intent: IntentSendMessage,
				Slots: []SlotSpec{
					{
						Name: "channel", Type: SlotChannelRef,
						Prompt:   "Sur quel canal dois-je envoyer le message ?",
						Keywords: []string{"canal", "channel"},
						Default:  "#general",
					},
					{
						Name: "text", Type: SlotFreeText, Required: true,
						Prompt:   "Quel message veux-tu envoyer ?",
						Keywords: []string{"message"},
						// Quoted message bodies fall through to the quote
						// matcher, where stop words inside the quotes are
						// legal; this pattern covers unquoted bodies only.
						Patterns: []string{
							`(?:disant|qui dit|:)\s+([^"].*?)` + textEnd,
						},
					},
					{
						Name: "platform", Type: SlotEnum,
						Enum: platformEnum, Default: "slack",
					},
				},
			},
			{
				Intent: IntentShareFile,
				Slots: []SlotSpec{
					{
						Name: "file_id", Type: SlotShortName, Required: true,
						Prompt:   "Quel fichier veux-tu partager ?",
						Keywords: []string{"fichier", "document"},
					},
					{
						Name: "email", Type: SlotShortName, Required: true,
						Prompt: "Avec quelle adresse e-mail dois-je le partager ?",
						Patterns: []string{
							`([a-z0-9][a-z0-9._%+-]*@[a-z0-9.-]+\.[a-z]{2,})`,
						},
					},
					{
						Name: "role", Type: SlotEnum,
						Enum: []EnumValue{
							{Value: "reader", Terms: []string{"en lecture", "lecture seule", "lecture"}},
							{Value: "writer", Terms: []string{"en écriture", "écriture", "modification", "édition"}},
							{Value: "commenter", Terms: []string{"commentaire", "commenter"}},
						},
						Default: "reader",
					},
					{
						Name: "platform", Type: SlotEnum,
						Enum: platformEnum, Default: "drive",
					},
				},
			},
			{
				Intent: IntentListPermissions,
				Slots: []SlotSpec{
					{
						Name: "file_id", Type: SlotShortName, Required: true,
						Prompt:   "Pour quel fichier veux-tu vérifier les accès ?",
						Keywords: []string{"fichier", "document", "dossier"},
					},
					{
						Name: "platform", Type: SlotEnum,
						Enum: platformEnum, Default: "drive",
					},
				},
			},
		},
	}
}
