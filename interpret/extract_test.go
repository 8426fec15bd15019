package interpret

import (
	"testing"
)

func parse(t *testing.T, s string) ParseResult {
	t.Helper()
	lex := DefaultLexicon()
	ex, err := NewExtractor(lex)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	n := Normalize(s).TrimAddressee(lex.Addressee)
	cls := Classify(lex, n)
	if cls.Intent == IntentUnknown {
		t.Fatalf("utterance %q did not classify", s)
	}
	return ex.Extract(cls.Intent, cls, n)
}

func wantSlot(t *testing.T, pr ParseResult, name, value string) {
	t.Helper()
	slot, ok := pr.Filled[name]
	if !ok {
		t.Fatalf("slot %q not filled (filled=%v, missing=%v)", name, pr.Filled, pr.Missing)
	}
	if slot.Value != value {
		t.Errorf("slot %q = %q, want %q", name, slot.Value, value)
	}
}

func TestExtractFullTrelloCommand(t *testing.T) {
	pr := parse(t, "Alya, ajoute une tâche 'Finaliser la présentation client' dans la colonne 'En cours' sur Trello et assigne-la à Marie. L'échéance est vendredi.")
	if pr.Intent != IntentCreateTask {
		t.Fatalf("intent = %s", pr.Intent)
	}
	wantSlot(t, pr, "title", "Finaliser la présentation client")
	wantSlot(t, pr, "column", "En cours")
	wantSlot(t, pr, "platform", "trello")
	wantSlot(t, pr, "assignee", "Marie")
	wantSlot(t, pr, "due", "vendredi")
	if len(pr.Missing) != 0 {
		t.Errorf("missing = %v", pr.Missing)
	}
}

func TestExtractMixedQuoteStyles(t *testing.T) {
	base := parse(t, `Ajoute une tâche 'Relire le contrat' dans la colonne 'En cours' sur Trello`)
	variants := []string{
		`Ajoute une tâche "Relire le contrat" dans la colonne "En cours" sur Trello`,
		"Ajoute une tâche ‘Relire le contrat’ dans la colonne “En cours” sur Trello",
		`Ajoute une tâche 'Relire le contrat' dans la colonne "En cours" sur Trello`,
	}
	for _, v := range variants {
		pr := parse(t, v)
		for name, want := range base.Filled {
			got, ok := pr.Filled[name]
			if !ok {
				t.Errorf("%q: slot %q missing", v, name)
				continue
			}
			if got.Value != want.Value {
				t.Errorf("%q: slot %q = %q, want %q", v, name, got.Value, want.Value)
			}
		}
	}
}

func TestExtractMultiTokenAssignee(t *testing.T) {
	pr := parse(t, "Ajoute une tâche 'Relire le contrat' dans la colonne 'En cours' sur Trello et assigne-la à franck adas. L'échéance est vendredi.")
	wantSlot(t, pr, "assignee", "franck adas")
}

func TestExtractUnquotedBoundedByStopWords(t *testing.T) {
	pr := parse(t, "Ajoute une tâche préparer le rapport pour vendredi sur Trello et assigne-la à Marie")
	wantSlot(t, pr, "title", "préparer le rapport")
	wantSlot(t, pr, "assignee", "Marie")
}

func TestExtractDefaultsColumnAndPlatform(t *testing.T) {
	pr := parse(t, "Ajoute une tâche 'Relire le contrat' et assigne-la à Marie")
	wantSlot(t, pr, "column", "À faire")
	if pr.Filled["column"].Source != SourceDefaulted {
		t.Errorf("column source = %s", pr.Filled["column"].Source)
	}
	wantSlot(t, pr, "platform", "trello")
}

func TestExtractMissingInSchemaOrder(t *testing.T) {
	pr := parse(t, "Ajoute une carte sur Trello")
	want := []string{"title", "assignee"}
	if len(pr.Missing) != len(want) {
		t.Fatalf("missing = %v, want %v", pr.Missing, want)
	}
	for i := range want {
		if pr.Missing[i] != want[i] {
			t.Errorf("missing[%d] = %q, want %q", i, pr.Missing[i], want[i])
		}
	}
}

func TestExtractRequiredSlotsPartition(t *testing.T) {
	lex := DefaultLexicon()
	utterances := []string{
		"Ajoute une tâche 'x' et assigne-la à Marie",
		"Ajoute une carte sur Trello",
		"Envoie un message sur #général disant bonjour",
		"Partage le fichier ABC123 avec marie@example.com",
		"Qui a accès au document budget ?",
	}
	for _, u := range utterances {
		pr := parse(t, u)
		schema, _ := lex.SchemaFor(pr.Intent)
		required := schema.RequiredSlots()
		seen := map[string]bool{}
		for _, name := range pr.Missing {
			if _, filled := pr.Filled[name]; filled {
				t.Errorf("%q: slot %q both filled and missing", u, name)
			}
			seen[name] = true
		}
		for _, name := range required {
			_, filled := pr.Filled[name]
			if !filled && !seen[name] {
				t.Errorf("%q: required slot %q neither filled nor missing", u, name)
			}
		}
	}
}

func TestExtractStopWordNeverASlotValue(t *testing.T) {
	lex := DefaultLexicon()
	pr := parse(t, "Ajoute une tâche 'Relire le contrat' et assigne-la à sur")
	if slot, ok := pr.Filled["assignee"]; ok {
		t.Errorf("stop word accepted as assignee: %q", slot.Value)
	}
	for name, slot := range pr.Filled {
		if lex.IsStopWord(slot.Value) {
			t.Errorf("slot %q holds stop word %q", name, slot.Value)
		}
	}
}

func TestExtractBareAIgnoresPlatform(t *testing.T) {
	// "à Trello" must not become the assignee.
	pr := parse(t, "Ajoute une tâche 'Relire le contrat' à Trello")
	if slot, ok := pr.Filled["assignee"]; ok {
		t.Errorf("platform captured as assignee: %q", slot.Value)
	}
}

func TestExtractBareAssigneeBoundedByStopWords(t *testing.T) {
	// No "assigne" verb: the bare "à <name>" capture must still stop at
	// the next stop word instead of running on to the punctuation.
	pr := parse(t, "Ajoute une tâche 'Relire le contrat' à Marie échéance vendredi.")
	wantSlot(t, pr, "assignee", "Marie")
	wantSlot(t, pr, "due", "vendredi")
}

func TestExtractPlatformIgnoresQuotedMentions(t *testing.T) {
	pr := parse(t, "Ajoute une tâche 'Préparer la démo Slack' sur Trello et assigne-la à Marie")
	wantSlot(t, pr, "title", "Préparer la démo Slack")
	wantSlot(t, pr, "platform", "trello")
}

func TestExtractSkipsStopWordQuote(t *testing.T) {
	// The first quote pair holds a reserved word; the title must come
	// from the next pair, not go missing.
	pr := parse(t, `Ajoute une tâche "et" "Préparer la salle" et assigne-la à Marie`)
	wantSlot(t, pr, "title", "Préparer la salle")
	wantSlot(t, pr, "assignee", "Marie")
}

func TestExtractBareAInsideQuotesRejected(t *testing.T) {
	pr := parse(t, "Ajoute une tâche 'penser à jean' sur Trello et assigne-la à Marie")
	wantSlot(t, pr, "title", "penser à jean")
	wantSlot(t, pr, "assignee", "Marie")
}

func TestExtractSendMessage(t *testing.T) {
	pr := parse(t, "Envoie un message sur #général disant bonjour")
	if pr.Intent != IntentSendMessage {
		t.Fatalf("intent = %s", pr.Intent)
	}
	wantSlot(t, pr, "channel", "#général")
	wantSlot(t, pr, "text", "bonjour")
	wantSlot(t, pr, "platform", "slack")
}

func TestExtractMessageTextStopsAtChannel(t *testing.T) {
	// Text before the channel mention: the capture must not run through
	// "sur" and swallow the channel into the message body.
	pr := parse(t, "Envoie un message disant bonjour sur #général")
	wantSlot(t, pr, "text", "bonjour")
	wantSlot(t, pr, "channel", "#général")
}

func TestExtractQuotedMessageKeepsStopWords(t *testing.T) {
	pr := parse(t, "Envoie un message sur #général disant 'Bonjour à tous'")
	wantSlot(t, pr, "text", "Bonjour à tous")
	wantSlot(t, pr, "channel", "#général")
}

func TestExtractSendMessageDefaultChannel(t *testing.T) {
	pr := parse(t, "Envoie un message disant la réunion commence")
	wantSlot(t, pr, "channel", "#general")
	if pr.Filled["channel"].Source != SourceDefaulted {
		t.Errorf("channel source = %s", pr.Filled["channel"].Source)
	}
}

func TestExtractShareFile(t *testing.T) {
	pr := parse(t, "Partage le fichier ABC123 avec marie@example.com en lecture")
	if pr.Intent != IntentShareFile {
		t.Fatalf("intent = %s", pr.Intent)
	}
	wantSlot(t, pr, "file_id", "ABC123")
	wantSlot(t, pr, "email", "marie@example.com")
	wantSlot(t, pr, "role", "reader")
	wantSlot(t, pr, "platform", "drive")
}

func TestExtractShareFileWriterRole(t *testing.T) {
	pr := parse(t, "Partage le document budget2024 avec paul@example.com en écriture")
	wantSlot(t, pr, "file_id", "budget2024")
	wantSlot(t, pr, "role", "writer")
}

func TestExtractListPermissions(t *testing.T) {
	pr := parse(t, "Qui a accès au fichier rapport.pdf ?")
	if pr.Intent != IntentListPermissions {
		t.Fatalf("intent = %s", pr.Intent)
	}
	wantSlot(t, pr, "file_id", "rapport.pdf")
}

func TestExtractRelativeDates(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ajoute une tâche 'x' pour demain et assigne-la à Marie", "demain"},
		{"Ajoute une tâche 'x' et assigne-la à Marie, échéance semaine prochaine", "semaine prochaine"},
		{"Demain, ajoute une tâche 'x' et assigne-la à Marie pour vendredi", "demain"},
	}
	for _, tc := range cases {
		pr := parse(t, tc.in)
		wantSlot(t, pr, "due", tc.want)
	}
}

func TestAnswerShortName(t *testing.T) {
	lex := DefaultLexicon()
	ex, err := NewExtractor(lex)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		in   string
		want string
	}{
		{"à franck adas", "franck adas"},
		{"Marie", "Marie"},
		{"assigne-la à Paul", "Paul"},
	}
	for _, tc := range cases {
		slot, ok := ex.Answer(IntentCreateTask, "assignee", Normalize(tc.in))
		if !ok {
			t.Errorf("Answer(%q) did not fill", tc.in)
			continue
		}
		if slot.Value != tc.want {
			t.Errorf("Answer(%q) = %q, want %q", tc.in, slot.Value, tc.want)
		}
		if slot.Source != SourcePrompted {
			t.Errorf("Answer(%q) source = %s", tc.in, slot.Source)
		}
	}
}

func TestAnswerRejectsStopWordsAndPlatforms(t *testing.T) {
	lex := DefaultLexicon()
	ex, err := NewExtractor(lex)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []string{"sur", "à", "trello"} {
		if slot, ok := ex.Answer(IntentCreateTask, "assignee", Normalize(in)); ok {
			t.Errorf("Answer(%q) accepted %q", in, slot.Value)
		}
	}
}

func TestAnswerQuotedPhraseFallsBackToWholeLine(t *testing.T) {
	lex := DefaultLexicon()
	ex, err := NewExtractor(lex)
	if err != nil {
		t.Fatal(err)
	}
	slot, ok := ex.Answer(IntentCreateTask, "title", Normalize("Relire le contrat fournisseur"))
	if !ok {
		t.Fatal("Answer did not fill")
	}
	if slot.Value != "Relire le contrat fournisseur" {
		t.Errorf("value = %q", slot.Value)
	}
}
