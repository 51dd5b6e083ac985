package events

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	conversationChannelPrefix = "channel:conversation:"
	userChannelPrefix         = "channel:user:"
)

// Patterns subscribed by a backplane listener.
var ChannelPatterns = []string{conversationChannelPrefix + "*", userChannelPrefix + "*"}

type Scope int

const (
	ScopeConversation Scope = iota + 1
	ScopeUser
)

func ConversationChannel(id uuid.UUID) string {
	return conversationChannelPrefix + id.String()
}

func UserChannel(id uuid.UUID) string {
	return userChannelPrefix + id.String()
}

// ParseChannel splits a channel name into its scope and id.
func ParseChannel(channel string) (Scope, uuid.UUID, error) {
	var scope Scope
	var rest string
	switch {
	case strings.HasPrefix(channel, conversationChannelPrefix):
		scope, rest = ScopeConversation, strings.TrimPrefix(channel, conversationChannelPrefix)
	case strings.HasPrefix(channel, userChannelPrefix):
		scope, rest = ScopeUser, strings.TrimPrefix(channel, userChannelPrefix)
	default:
		return 0, uuid.Nil, fmt.Errorf("unknown channel %q", channel)
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("channel %q: %w", channel, err)
	}
	return scope, id, nil
}
