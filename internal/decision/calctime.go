package decision

import (
	"math"

	"github.com/udisondev/l2latency/internal/catalog"
)

// calculateTime implements _calculateTime contract: given
// an anchor cancel-window boundary, the current elapsed action time,
// and the active speed multiplier, compute the signed ms offset at
// which the faked packet should be emitted. overrideSkill/overrideStage
// default to the current action's skill/stage when overrideSkill is
// the zero SkillID.
func (e *Engine) calculateTime(anchor, elapsed, speed float64, overrideSkill catalog.SkillID, overrideStage int, useWiggle bool) float64 {
	if elapsed <= 0 {
		return 0
	}

	wiggle := 0.0
	if useWiggle {
		wiggle = float64(e.monitor.Jitter())
		if e.wiggleRoomBonusMs > 0 {
			wiggle += float64(e.wiggleRoomBonusMs)
		}
	}

	if speed == 0 {
		speed = 1
	}

	if math.Abs(anchor-(elapsed-wiggle)) < 10 {
		t := math.Floor((elapsed-anchor-wiggle)/speed) - 1
		return maxFloat(0, t)
	}

	animLength, ok := e.prefixSumFor(overrideSkill, overrideStage)
	if !ok {
		animLength = anchor // degrade gracefully: no cache data, treat anchor as the only candidate
	}

	target := elapsed - wiggle
	var first, second float64
	if math.Abs(anchor-target) <= math.Abs(animLength-target) {
		first, second = anchor, animLength
	} else {
		first, second = animLength, anchor
	}

	t := math.Floor((elapsed-first-wiggle)/speed) - 1
	if t >= 0 {
		return t
	}
	t2 := math.Floor((elapsed-second-wiggle)/speed) - 1
	return maxFloat(0, t2)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
