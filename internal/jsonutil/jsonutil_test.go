package jsonutil

import "testing"

type payload struct {
	Intent string `json:"intent"`
}

func TestDecodePlainJSON(t *testing.T) {
	var p payload
	if err := DecodeWithFallback(`{"intent":"create_task"}`, &p); err != nil {
		t.Fatal(err)
	}
	if p.Intent != "create_task" {
		t.Errorf("intent = %q", p.Intent)
	}
}

func TestDecodeFencedJSON(t *testing.T) {
	raw := "```json\n{\"intent\":\"send_message\"}\n```"
	var p payload
	if err := DecodeWithFallback(raw, &p); err != nil {
		t.Fatal(err)
	}
	if p.Intent != "send_message" {
		t.Errorf("intent = %q", p.Intent)
	}
}

func TestDecodeJSONWithSurroundingProse(t *testing.T) {
	raw := `Voici le résultat : {"intent":"share_file"} — dites-moi si besoin.`
	var p payload
	if err := DecodeWithFallback(raw, &p); err != nil {
		t.Fatal(err)
	}
	if p.Intent != "share_file" {
		t.Errorf("intent = %q", p.Intent)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var p payload
	for _, raw := range []string{"", "pas de json ici", "{broken"} {
		if err := DecodeWithFallback(raw, &p); err == nil {
			t.Errorf("accepted %q", raw)
		}
	}
}
