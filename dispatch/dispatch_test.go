package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/adasdevman/alya-sub001/internal/slackclient"
	"github.com/adasdevman/alya-sub001/interpret"
)

type fakeAdapter struct {
	name string
	got  []interpret.Action
	err  error
}

func (f *fakeAdapter) Platform() string { return f.name }

func (f *fakeAdapter) Execute(_ context.Context, a interpret.Action) error {
	f.got = append(f.got, a)
	return f.err
}

func TestDispatchRoutesByPlatformSlot(t *testing.T) {
	trello := &fakeAdapter{name: "trello"}
	slack := &fakeAdapter{name: "slack"}
	r := NewRouter(nil)
	r.Register(trello)
	r.Register(slack)

	action := interpret.Action{
		ID:     "a1",
		Intent: interpret.IntentCreateTask,
		Slots:  map[string]string{"platform": "trello", "title": "Préparer la démo"},
		ChatID: "web:42",
	}
	if err := r.Dispatch(context.Background(), action); err != nil {
		t.Fatal(err)
	}
	if len(trello.got) != 1 || trello.got[0].ID != "a1" {
		t.Fatalf("trello got %v", trello.got)
	}
	if len(slack.got) != 0 {
		t.Fatal("slack adapter should not have run")
	}
}

func TestDispatchUnknownPlatform(t *testing.T) {
	r := NewRouter(nil)
	r.Register(&fakeAdapter{name: "slack"})

	err := r.Dispatch(context.Background(), interpret.Action{
		ID:    "a2",
		Slots: map[string]string{"platform": "hubspot"},
	})
	if err == nil {
		t.Fatal("expected error for unregistered platform")
	}
}

func TestDispatchMissingPlatformSlot(t *testing.T) {
	r := NewRouter(nil)
	if err := r.Dispatch(context.Background(), interpret.Action{ID: "a3"}); err == nil {
		t.Fatal("expected error for missing platform slot")
	}
}

func TestDispatchWrapsAdapterError(t *testing.T) {
	r := NewRouter(nil)
	r.Register(&fakeAdapter{name: "drive", err: fmt.Errorf("quota exceeded")})

	err := r.Dispatch(context.Background(), interpret.Action{
		Slots: map[string]string{"platform": "drive"},
	})
	if err == nil || err.Error() != "drive: quota exceeded" {
		t.Fatalf("err = %v", err)
	}
}

func TestPlatformsSorted(t *testing.T) {
	r := NewRouter(nil)
	r.Register(&fakeAdapter{name: "Trello"})
	r.Register(&fakeAdapter{name: "slack"})
	r.Register(&fakeAdapter{name: "drive"})
	want := []string{"drive", "slack", "trello"}
	if got := r.Platforms(); !reflect.DeepEqual(got, want) {
		t.Fatalf("platforms = %v", got)
	}
}

func TestSlackAdapterPostsMessage(t *testing.T) {
	var got struct {
		Channel string `json:"channel"`
		Text    string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	adapter := NewSlackAdapter(slackclient.New(srv.Client(), srv.URL, "xoxb-test"))
	err := adapter.Execute(context.Background(), interpret.Action{
		Intent: interpret.IntentSendMessage,
		Slots: map[string]string{
			"platform": "slack",
			"channel":  "général",
			"text":     "On commence à 14h",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Channel != "#général" {
		t.Fatalf("channel = %q", got.Channel)
	}
	if got.Text != "On commence à 14h" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestSlackAdapterRejectsOtherIntents(t *testing.T) {
	adapter := NewSlackAdapter(slackclient.New(nil, "", "tok"))
	err := adapter.Execute(context.Background(), interpret.Action{
		Intent: interpret.IntentCreateTask,
		Slots:  map[string]string{"platform": "slack"},
	})
	if err == nil {
		t.Fatal("create_task should not run on slack")
	}
}
