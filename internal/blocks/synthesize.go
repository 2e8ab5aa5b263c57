package blocks

import (
	"fmt"
	"html"
	"strings"

	"pageforge/internal/page"
)

// SynthesizeReasoning renders the reasoning-user block directly from the
// reasoning trace. No model call: the user-facing explanation always
// matches exactly what the engine reasoned.
func SynthesizeReasoning(r page.ReasoningResult) page.GeneratedBlock {
	var b strings.Builder
	b.WriteString(`<div class="reasoning-user">`)
	fmt.Fprintf(&b, `<p class="reasoning-intent">%s</p>`, html.EscapeString(r.Reasoning.IntentAnalysis))
	fmt.Fprintf(&b, `<p class="reasoning-needs">%s</p>`, html.EscapeString(r.Reasoning.UserNeedsAssessment))
	if len(r.Reasoning.BlockSelectionRationale) > 0 {
		b.WriteString(`<ul class="reasoning-rationale">`)
		for _, line := range r.Reasoning.BlockSelectionRationale {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(line))
		}
		b.WriteString("</ul>")
	}
	fmt.Fprintf(&b, `<p class="reasoning-decision">%s</p>`, html.EscapeString(r.Reasoning.FinalDecision))
	b.WriteString("</div>")
	return page.GeneratedBlock{Type: page.BlockReasoningUser, HTML: b.String()}
}

// SynthesizeFollowUp renders the terminal follow-up block from the journey
// plan, also without a model call.
func SynthesizeFollowUp(r page.ReasoningResult) page.GeneratedBlock {
	var b strings.Builder
	b.WriteString(`<div class="follow-up">`)
	if r.UserJourney.NextBestAction != "" {
		fmt.Fprintf(&b, `<p class="next-action">%s</p>`, html.EscapeString(r.UserJourney.NextBestAction))
	}
	if len(r.UserJourney.SuggestedFollowUps) > 0 {
		b.WriteString(`<ul class="follow-up-suggestions">`)
		for _, s := range r.UserJourney.SuggestedFollowUps {
			fmt.Fprintf(&b, `<li><button class="follow-up-query">%s</button></li>`, html.EscapeString(s))
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</div>")
	return page.GeneratedBlock{Type: page.BlockFollowUp, HTML: b.String()}
}
