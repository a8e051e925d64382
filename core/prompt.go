package core

import (
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/oracle/loaders"
)

// ChallengeSentinel is the text an anti-bot interstitial leaves in a
// fetched page instead of the content.
const ChallengeSentinel = loaders.ChallengeSentinel

var sysmsgTmpl = `You are a friendly assistant named Oracle.
You have access to the following information from a %s document:

####
%s
####

Use the information provided to ground your answers.

Whenever there is a $ in your output, replace it with S.

If the document information is something like "%s"
suggest that the user load the Oracle again!`

// BuildSysmsg returns the grounding system message for a document.
// The whole text is inlined verbatim.
func BuildSysmsg(kind DocumentKind, text string) string {
	return Spf(sysmsgTmpl, kind, text, ChallengeSentinel)
}

// IsChallengePage reports whether text looks like an anti-bot
// interstitial rather than the requested document.
func IsChallengePage(text string) bool {
	return loaders.IsChallengePage(text)
}
