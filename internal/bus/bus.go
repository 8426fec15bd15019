// Package bus defines the inbound message envelope shared by every
// front door (web widget, Slack events, Telegram webhook). Each
// envelope carries the chat key the interpreter scopes its
// conversation state by.
package bus

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelSlack    Channel = "slack"
	ChannelTelegram Channel = "telegram"
)

func (c Channel) valid() bool {
	switch c {
	case ChannelWeb, ChannelSlack, ChannelTelegram:
		return true
	default:
		return false
	}
}

func (c Channel) keyPrefix() string {
	switch c {
	case ChannelWeb:
		return "web"
	case ChannelSlack:
		return "slack"
	case ChannelTelegram:
		return "tg"
	default:
		return ""
	}
}

// BuildChatKey derives the conversation key for a channel-local id,
// e.g. ("slack", "C024BE91L") -> "slack:C024BE91L". Keys from
// different channels never collide.
func BuildChatKey(channel Channel, id string) (string, error) {
	if !channel.valid() {
		return "", fmt.Errorf("channel is invalid")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("chat id is required")
	}
	if strings.ContainsAny(id, " \t\n") {
		return "", fmt.Errorf("chat id must not contain spaces")
	}
	return channel.keyPrefix() + ":" + id, nil
}

// Message is one inbound utterance.
type Message struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	ChatKey    string            `json:"chat_key"`
	Text       string            `json:"text"`
	ReceivedAt time.Time         `json:"received_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewInbound wraps a raw utterance from a channel-local chat into an
// envelope with a fresh id and the derived chat key.
func NewInbound(channel Channel, chatID, text string, now time.Time) (Message, error) {
	key, err := BuildChatKey(channel, chatID)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         uuid.NewString(),
		Channel:    channel,
		ChatKey:    key,
		Text:       text,
		ReceivedAt: now.UTC(),
	}, nil
}

func (m Message) Validate() error {
	if err := requiredCanonical("id", m.ID); err != nil {
		return err
	}
	if !m.Channel.valid() {
		return fmt.Errorf("channel is invalid")
	}
	if err := requiredCanonical("chat_key", m.ChatKey); err != nil {
		return err
	}
	if !strings.HasPrefix(m.ChatKey, m.Channel.keyPrefix()+":") {
		return fmt.Errorf("chat_key does not match channel %q", m.Channel)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if m.ReceivedAt.IsZero() {
		return fmt.Errorf("received_at is required")
	}
	for k := range m.Metadata {
		if err := requiredCanonical("metadata key", k); err != nil {
			return err
		}
	}
	return nil
}

func requiredCanonical(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s must not contain leading/trailing spaces", field)
	}
	return nil
}
