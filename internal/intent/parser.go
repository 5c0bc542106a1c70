// Package intent decides whether an inbound command asks to block or allow.
package intent

import (
	"strings"

	"chessBlocker/internal/models"
)

var (
	blockTags = []string{"block", "suspend"}
	allowTags = []string{"allow", "unblock"}

	blockPhrases = []string{"block", "suspend", "stop chess", "disable chess"}
	allowPhrases = []string{"allow", "unblock", "enable chess", "start chess"}
)

// Parse maps a message and optional tags onto an intent. Tags win over the
// message. Block phrases are checked before allow phrases, so "unblock"
// in a message matches "block" first and yields IntentBlock.
func Parse(message string, tags []string) models.Intent {
	normalized := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		normalized[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	if hasAny(normalized, blockTags) {
		return models.IntentBlock
	}
	if hasAny(normalized, allowTags) {
		return models.IntentAllow
	}

	text := strings.ToLower(message)
	if containsAny(text, blockPhrases) {
		return models.IntentBlock
	}
	if containsAny(text, allowPhrases) {
		return models.IntentAllow
	}
	return models.IntentUnrecognized
}

// ParseNotification is Parse applied to an ntfy message.
func ParseNotification(n models.Notification) models.Intent {
	return Parse(n.Message, n.Tags)
}

func hasAny(set map[string]struct{}, keys []string) bool {
	for _, k := range keys {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
