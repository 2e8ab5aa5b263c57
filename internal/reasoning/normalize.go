package reasoning

import (
	"sort"

	"pageforge/internal/blocks"
	"pageforge/internal/page"
)

// Normalize enforces the block-list invariants on a reasoning result. It
// must run identically over model-derived and fallback results:
//   - known type aliases are renamed to their canonical type
//   - reasoning/reasoning-user selections are removed; those blocks are
//     always synthesized from the trace, never selected
//   - unknown block types are dropped
//   - exactly one follow-up entry terminates the list
//   - priorities are re-sequenced to a contiguous 1..N over final order
func Normalize(r page.ReasoningResult) page.ReasoningResult {
	sels := make([]page.Selection, 0, len(r.SelectedBlocks)+1)
	var followUp *page.Selection

	sort.SliceStable(r.SelectedBlocks, func(i, j int) bool {
		return r.SelectedBlocks[i].Priority < r.SelectedBlocks[j].Priority
	})

	for _, s := range r.SelectedBlocks {
		spec, ok := blocks.Lookup(string(s.Type))
		if !ok {
			continue
		}
		s.Type = spec.Type
		switch s.Type {
		case page.BlockReasoningUser:
			continue
		case page.BlockFollowUp:
			if followUp == nil {
				fu := s
				followUp = &fu
			}
			continue
		}
		sels = append(sels, s)
	}

	if followUp == nil {
		followUp = &page.Selection{
			Type:      page.BlockFollowUp,
			Rationale: "Suggested next steps keep the conversation going.",
		}
	}
	sels = append(sels, *followUp)

	for i := range sels {
		sels[i].Priority = i + 1
	}
	r.SelectedBlocks = sels
	return r
}
