package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/adasdevman/alya-sub001/internal/slackclient"
	"github.com/adasdevman/alya-sub001/interpret"
)

// SlackAdapter posts interpreted messages through the Slack Web API.
type SlackAdapter struct {
	client *slackclient.Client
}

func NewSlackAdapter(client *slackclient.Client) *SlackAdapter {
	return &SlackAdapter{client: client}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) Execute(ctx context.Context, action interpret.Action) error {
	if a.client == nil {
		return fmt.Errorf("slack adapter has no client")
	}
	switch action.Intent {
	case interpret.IntentSendMessage:
		channel := strings.TrimSpace(action.Slots["channel"])
		if channel != "" && !strings.HasPrefix(channel, "#") {
			channel = "#" + channel
		}
		return a.client.PostMessage(ctx, channel, action.Slots["text"])
	default:
		return fmt.Errorf("intent %q is not supported on slack", action.Intent)
	}
}
