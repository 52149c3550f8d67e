package keyword

import (
	"strings"
)

// FunnelStage is a marketing funnel stage derived from search intent.
type FunnelStage string

const (
	StageTOFU FunnelStage = "tofu"
	StageMOFU FunnelStage = "mofu"
	StageBOFU FunnelStage = "bofu"
)

// Stages lists every funnel stage, top to bottom.
var Stages = []FunnelStage{StageTOFU, StageMOFU, StageBOFU}

var stageWords = []struct {
	stage FunnelStage
	words []string
}{
	{StageTOFU, []string{"informational", "how", "what", "guide"}},
	{StageMOFU, []string{"commercial", "best", "review", "vs"}},
	{StageBOFU, []string{"transactional", "buy", "price", "deal"}},
}

// StageFor maps a freeform intent string onto a funnel stage by
// case-insensitive containment. Lists are checked top to bottom and the first
// hit wins, so "Commercial, Transactional" is MOFU. An intent with no hit
// falls back to TOFU.
func StageFor(intent string) FunnelStage {
	intent = strings.ToLower(intent)
	for _, sw := range stageWords {
		for _, w := range sw.words {
			if strings.Contains(intent, w) {
				return sw.stage
			}
		}
	}
	return StageTOFU
}

// Label returns the upper-case display label, e.g. "TOFU".
func (s FunnelStage) Label() string {
	return strings.ToUpper(string(s))
}
