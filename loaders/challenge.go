package loaders

import "strings"

// ChallengeSentinel is the text an anti-bot interstitial leaves in a
// fetched page instead of the content.
const ChallengeSentinel = "Just a moment...Enable JavaScript and cookies to continue"

// IsChallengePage reports whether text looks like an anti-bot
// interstitial rather than the requested document.
func IsChallengePage(text string) bool {
	flat := strings.Join(strings.Fields(text), " ")
	if strings.Contains(flat, ChallengeSentinel) {
		return true
	}
	return strings.Contains(flat, "Just a moment") &&
		strings.Contains(flat, "Enable JavaScript and cookies to continue")
}
