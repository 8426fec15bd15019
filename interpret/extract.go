package interpret

import (
	"fmt"
	"regexp"
	"strings"
)

// Extractor fills the slot schema of a classified intent. Patterns are
// compiled once from the lexicon; extraction itself is pure.
type Extractor struct {
	lex      *Lexicon
	compiled map[Intent][]compiledSlot
}

type compiledSlot struct {
	spec     SlotSpec
	patterns []*regexp.Regexp
	unquoted *regexp.Regexp
}

// article prefix tolerated between a keyword and its value.
const articleClass = `(?:l'|l[ae]\s+|les\s+|une?\s+|des?\s+|ce\s+|cette\s+)?`

func NewExtractor(lex *Lexicon) (*Extractor, error) {
	ex := &Extractor{lex: lex, compiled: make(map[Intent][]compiledSlot)}
	stopAlt := make([]string, 0, len(lex.StopWords))
	for _, w := range lex.StopWords {
		stopAlt = append(stopAlt, regexp.QuoteMeta(w))
	}
	// Unquoted captures are non-greedy and bounded by the stop markers so
	// they cannot bleed past "sur Trello".
	terminator := `\s*(?:[.,;]|\s(?:` + strings.Join(stopAlt, "|") + `)(?:\s|$)|$)`

	for _, schema := range lex.Schemas {
		slots := make([]compiledSlot, 0, len(schema.Slots))
		for _, spec := range schema.Slots {
			cs := compiledSlot{spec: spec}
			for _, p := range spec.Patterns {
				re, err := regexp.Compile(p)
				if err != nil {
					return nil, fmt.Errorf("intent %s slot %s: %w", schema.Intent, spec.Name, err)
				}
				cs.patterns = append(cs.patterns, re)
			}
			if len(spec.Keywords) > 0 {
				kwAlt := make([]string, 0, len(spec.Keywords))
				for _, k := range spec.Keywords {
					kwAlt = append(kwAlt, regexp.QuoteMeta(k))
				}
				var expr string
				switch spec.Type {
				case SlotQuotedPhrase, SlotFreeText:
					expr = `(?:^|\s)(?:` + strings.Join(kwAlt, "|") + `)\s+` + articleClass + `([^".,]+?)` + terminator
				case SlotShortName:
					// File names may contain dots; trailing sentence
					// punctuation is trimmed after capture.
					expr = `(?:^|\s)(?:` + strings.Join(kwAlt, "|") + `)\s+` + articleClass + `"?([^\s",]+)"?`
				case SlotChannelRef:
					expr = `(?:^|\s)(?:` + strings.Join(kwAlt, "|") + `)\s+#?([^\s".,]+)`
				}
				if expr != "" {
					re, err := regexp.Compile(expr)
					if err != nil {
						return nil, fmt.Errorf("intent %s slot %s keywords: %w", schema.Intent, spec.Name, err)
					}
					cs.unquoted = re
				}
			}
			slots = append(slots, cs)
		}
		ex.compiled[schema.Intent] = slots
	}
	return ex, nil
}

var channelPattern = regexp.MustCompile(`#([^\s".,]+)`)

// Extract runs the pattern families of every slot in the intent's schema
// against the utterance. Slot searches are scoped after the verb anchor;
// date and enum scans cover the whole utterance since those terms may
// precede the verb ("Demain, ajoute ...").
func (ex *Extractor) Extract(intent Intent, cls Classification, n Normalized) ParseResult {
	schema, ok := ex.lex.SchemaFor(intent)
	if !ok {
		return ParseResult{Intent: intent, Filled: map[string]Slot{}}
	}
	scope := n.Slice(cls.Anchor.End)
	st := &extractState{
		n:          n,
		scope:      scope,
		quoted:     scope.QuoteSpans(),
		fullQuoted: n.QuoteSpans(),
	}

	filled := make(map[string]Slot, len(schema.Slots))
	for _, cs := range ex.compiled[intent] {
		if slot, ok := ex.extractSlot(cs, st); ok {
			slot.Name = cs.spec.Name
			filled[cs.spec.Name] = slot
		}
	}

	var missing []string
	for _, name := range schema.RequiredSlots() {
		if _, ok := filled[name]; !ok {
			missing = append(missing, name)
		}
	}
	return ParseResult{
		Intent:   intent,
		Anchor:   cls.Anchor,
		Filled:   filled,
		Missing:  missing,
		Residual: st.residual(),
	}
}

type extractState struct {
	n          Normalized
	scope      Normalized
	quoted     []Span // quote content spans, scope coords
	fullQuoted []Span // quote content spans, full-utterance coords
	used       []Span // consumed quote content spans, scope coords
	captured   []Span // all captured spans, scope coords
}

func (st *extractState) quoteUsed(q Span) bool {
	for _, u := range st.used {
		if u == q {
			return true
		}
	}
	return false
}

func (st *extractState) insideQuotes(s Span) bool {
	for _, q := range st.quoted {
		if q.Contains(s) {
			return true
		}
	}
	return false
}

// residual is the scoped utterance with every captured span blanked,
// collapsed back to single spaces.
func (st *extractState) residual() string {
	if len(st.captured) == 0 {
		return strings.Trim(st.scope.Folded, ` "`)
	}
	b := []byte(st.scope.Folded)
	for _, s := range st.captured {
		for i := s.Start; i < s.End && i < len(b); i++ {
			b[i] = ' '
		}
	}
	fields := strings.FieldsFunc(string(b), func(r rune) bool {
		return r == ' ' || r == '"'
	})
	return strings.Join(fields, " ")
}

func (ex *Extractor) extractSlot(cs compiledSlot, st *extractState) (Slot, bool) {
	spec := cs.spec

	// Declared patterns first.
	for _, re := range cs.patterns {
		if slot, ok := ex.matchPattern(re, spec, st); ok {
			return slot, true
		}
	}

	// Generic family for the slot type.
	switch spec.Type {
	case SlotQuotedPhrase, SlotFreeText:
		if slot, ok := ex.matchQuotedAfterKeyword(cs, st); ok {
			return slot, true
		}
		if slot, ok := ex.matchUnquoted(cs, st); ok {
			return slot, true
		}
	case SlotShortName:
		if slot, ok := ex.matchUnquoted(cs, st); ok {
			return slot, true
		}
	case SlotChannelRef:
		if m := channelPattern.FindStringSubmatchIndex(st.scope.Folded); m != nil {
			cap := Span{Start: m[2], End: m[3]}
			raw := st.scope.RawSpan(cap.Start, cap.End)
			if raw != "" && !ex.lex.IsStopWord(raw) {
				st.captured = append(st.captured, Span{Start: m[0], End: m[1]})
				return Slot{Raw: "#" + raw, Value: "#" + raw, Source: SourceExtracted, Confidence: 1}, true
			}
		}
		if slot, ok := ex.matchUnquoted(cs, st); ok {
			slot.Value = ensureChannelPrefix(slot.Value)
			slot.Raw = ensureChannelPrefix(slot.Raw)
			return slot, true
		}
	case SlotWeekday, SlotDateRef:
		if slot, ok := ex.matchDate(st.n); ok {
			return slot, true
		}
	case SlotEnum:
		if slot, ok := matchEnum(spec.Enum, st.n, st.fullQuoted); ok {
			return slot, true
		}
	}

	if spec.Default != "" {
		return Slot{Value: spec.Default, Source: SourceDefaulted, Confidence: 0.5}, true
	}
	return Slot{}, false
}

// matchPattern applies one declared regex to the scoped utterance. For
// short_name slots a capture inside a quoted phrase is rejected, so a
// bare "à X" never fires inside a title.
func (ex *Extractor) matchPattern(re *regexp.Regexp, spec SlotSpec, st *extractState) (Slot, bool) {
	for _, m := range re.FindAllStringSubmatchIndex(st.scope.Folded, -1) {
		if m[2] < 0 {
			continue
		}
		cap := Span{Start: m[2], End: m[3]}
		if spec.Type == SlotShortName && st.insideQuotes(cap) {
			continue
		}
		value := st.scope.RawSpan(cap.Start, cap.End)
		value = strings.Trim(value, `"' `)
		if spec.Type == SlotShortName {
			value = capTokens(value, 3)
		}
		if spec.Type == SlotFreeText {
			value = strings.TrimRight(value, ".!? ")
		}
		if value == "" || ex.lex.IsStopWord(value) {
			continue
		}
		if spec.Type == SlotShortName && ex.lex.IsPlatformTerm(value) {
			continue
		}
		st.captured = append(st.captured, cap)
		return Slot{Raw: value, Value: value, Source: SourceExtracted, Confidence: 0.9}, true
	}
	return Slot{}, false
}

// matchQuotedAfterKeyword takes the first unconsumed quote pair after the
// slot's keyword.
func (ex *Extractor) matchQuotedAfterKeyword(cs compiledSlot, st *extractState) (Slot, bool) {
	at := -1
	for _, kw := range cs.spec.Keywords {
		if i := findTerm(st.scope.Folded, kw); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		return Slot{}, false
	}
	for _, q := range st.quoted {
		if q.Start <= at || st.quoteUsed(q) {
			continue
		}
		value := st.scope.RawSpan(q.Start, q.End)
		value = strings.Trim(value, `"' `)
		if value == "" || ex.lex.IsStopWord(value) {
			// A later quote pair may still hold the value.
			continue
		}
		st.used = append(st.used, q)
		st.captured = append(st.captured, q)
		return Slot{Raw: value, Value: value, Source: SourceExtracted, Confidence: 1}, true
	}
	return Slot{}, false
}

func (ex *Extractor) matchUnquoted(cs compiledSlot, st *extractState) (Slot, bool) {
	if cs.unquoted == nil {
		return Slot{}, false
	}
	m := cs.unquoted.FindStringSubmatchIndex(st.scope.Folded)
	if m == nil || m[2] < 0 {
		return Slot{}, false
	}
	cap := Span{Start: m[2], End: m[3]}
	value := st.scope.RawSpan(cap.Start, cap.End)
	value = strings.Trim(value, `"' `)
	value = strings.TrimRight(value, ".,;:")
	if value == "" || ex.lex.IsStopWord(value) || ex.lex.IsStopWord(firstToken(value)) {
		return Slot{}, false
	}
	st.captured = append(st.captured, cap)
	return Slot{Raw: value, Value: value, Source: SourceExtracted, Confidence: 0.8}, true
}

// matchDate scans the whole utterance for the earliest weekday or
// relative-date phrase. The canonical value is the relative descriptor
// itself; adapters resolve it against the user timezone.
func (ex *Extractor) matchDate(n Normalized) (Slot, bool) {
	best := -1
	term := ""
	for _, w := range ex.lex.Weekdays {
		if i := findTerm(n.Folded, w); i >= 0 && (best < 0 || i < best) {
			best, term = i, w
		}
	}
	for _, w := range ex.lex.RelativeDates {
		if i := findTerm(n.Folded, w); i >= 0 && (best < 0 || i < best) {
			best, term = i, w
		}
	}
	if best < 0 {
		return Slot{}, false
	}
	raw := n.RawSpan(best, best+len(term))
	return Slot{Raw: raw, Value: term, Source: SourceExtracted, Confidence: 1}, true
}

// matchEnum returns the canonical value of the earliest enum term found
// outside the quoted spans, so a platform named inside a title never
// decides where the action routes.
func matchEnum(values []EnumValue, n Normalized, quoted []Span) (Slot, bool) {
	best := -1
	var hit EnumValue
	var hitTerm string
	for _, ev := range values {
		for _, t := range ev.Terms {
			i := findTerm(n.Folded, t)
			for i >= 0 && insideAny(quoted, Span{Start: i, End: i + len(t)}) {
				i = findTermFrom(n.Folded, t, i+len(t))
			}
			if i >= 0 && (best < 0 || i < best) {
				best, hit, hitTerm = i, ev, t
			}
		}
	}
	if best < 0 {
		return Slot{}, false
	}
	raw := n.RawSpan(best, best+len(hitTerm))
	return Slot{Raw: raw, Value: hit.Value, Source: SourceExtracted, Confidence: 1}, true
}

func insideAny(spans []Span, s Span) bool {
	for _, q := range spans {
		if q.Contains(s) {
			return true
		}
	}
	return false
}

// Answer interprets a whole utterance as the reply to a prompt for one
// slot. Declared patterns run first so "assigne-la à Marie" works as an
// answer too; otherwise the reply is read through the slot type's lens.
func (ex *Extractor) Answer(intent Intent, name string, n Normalized) (Slot, bool) {
	schema, ok := ex.lex.SchemaFor(intent)
	if !ok {
		return Slot{}, false
	}
	spec, ok := schema.Slot(name)
	if !ok {
		return Slot{}, false
	}
	st := &extractState{n: n, scope: n, quoted: n.QuoteSpans()}
	var cs compiledSlot
	for _, c := range ex.compiled[intent] {
		if c.spec.Name == name {
			cs = c
			break
		}
	}
	for _, re := range cs.patterns {
		if slot, ok := ex.matchPattern(re, spec, st); ok {
			slot.Name = name
			slot.Source = SourcePrompted
			return slot, true
		}
	}

	value := ""
	switch spec.Type {
	case SlotQuotedPhrase, SlotFreeText:
		if qs := st.quoted; len(qs) > 0 {
			value = n.RawSpan(qs[0].Start, qs[0].End)
		} else if slot, ok := ex.matchUnquoted(cs, st); ok {
			slot.Name = name
			slot.Source = SourcePrompted
			return slot, true
		} else {
			value = strings.TrimSpace(n.Raw)
		}
		if spec.Type == SlotFreeText {
			value = strings.TrimRight(value, " ")
		}
	case SlotShortName:
		value = answerShortName(n.Folded, n)
	case SlotChannelRef:
		if m := channelPattern.FindStringSubmatchIndex(n.Folded); m != nil {
			value = "#" + n.RawSpan(m[2], m[3])
		} else {
			value = ensureChannelPrefix(firstToken(strings.TrimSpace(n.Raw)))
		}
	case SlotWeekday, SlotDateRef:
		slot, ok := ex.matchDate(n)
		if !ok {
			return Slot{}, false
		}
		slot.Name = name
		slot.Source = SourcePrompted
		return slot, true
	case SlotEnum:
		// The whole reply answers the prompt; quoting it is fine here.
		slot, ok := matchEnum(spec.Enum, n, nil)
		if !ok {
			return Slot{}, false
		}
		slot.Name = name
		slot.Source = SourcePrompted
		return slot, true
	}

	value = strings.Trim(value, `"' `)
	if value == "" || ex.lex.IsStopWord(value) {
		return Slot{}, false
	}
	if spec.Type == SlotShortName && ex.lex.IsPlatformTerm(value) {
		return Slot{}, false
	}
	return Slot{Name: name, Raw: value, Value: value, Source: SourcePrompted, Confidence: 0.9}, true
}

// answerShortName reads a prompted reply as a name: an optional leading
// "à" is dropped, the reply is cut at the first sentence break, and the
// name is capped at three tokens. Dots inside tokens (file names) are
// not sentence breaks.
func answerShortName(folded string, n Normalized) string {
	start := 0
	if strings.HasPrefix(folded, "à ") {
		start = len("à ")
	} else if strings.HasPrefix(folded, "a ") {
		start = len("a ")
	}
	end := len(folded)
	for i := start; i < len(folded); i++ {
		if !strings.ContainsRune(".,;:!", rune(folded[i])) {
			continue
		}
		if i+1 == len(folded) || folded[i+1] == ' ' {
			end = i
			break
		}
	}
	return capTokens(n.RawSpan(start, end), 3)
}

func capTokens(s string, max int) string {
	fields := strings.Fields(s)
	if len(fields) > max {
		fields = fields[:max]
	}
	return strings.Join(fields, " ")
}

func ensureChannelPrefix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return s
	}
	return "#" + s
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".,;:")
}
