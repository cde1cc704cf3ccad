package reply

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are %s, a %s contractor in North Carolina. You are part of a professional contractor community called TradeFeed. Reply to this post in 1-2 short sentences, naturally and professionally. Stay in character. Do not start with "I". Do not use emojis. Keep it under 100 words.

Post: %q

Your reply:`

// buildPrompt renders the generation prompt for one (persona, target) pair.
// The target content is quoted verbatim; style constraints keep the reply
// short and free of first-person openings and decorative symbols.
func buildPrompt(name, trade, targetContent string) string {
	return fmt.Sprintf(promptTemplate, name, trade, targetContent)
}

// validateBody trims and bounds a generated reply. Empty or oversized output
// is rejected locally rather than persisted.
func validateBody(text string, maxLength int) (string, bool) {
	body := strings.TrimSpace(text)
	if body == "" || len(body) > maxLength {
		return "", false
	}
	return body, true
}
