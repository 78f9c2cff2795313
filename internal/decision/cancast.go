package decision

import (
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/cc"
)

// Refusal codes returned by canCast, additional to the ones a
// Transition can already carry from Decide's resolution chain.
//
// codeNoAction and codeCharge are declared to name those refusal codes
// but canCast never raises them, since Flags.NoAction/Flags.Charge
// also mark legitimate non-refusal outcomes (no-op registration,
// charge hold).
const (
	codeNoCasting            = -4
	codeNoAction             = -1
	codeCharge               = -2
	codeNoTimeline           = -3
	codeFailed               = -5
	codeCurrentNoTimeline    = -6
	codeSpecialActionNonMove = -7
	codeDisabledCategory     = -11
	codeCooldown             = -12
	codeMissingWeapon        = -13
	codeInsufficientSt       = -14
	codeInvalidPress         = -15
	codeSorcererSpecial      = -16
	codeNotAfterDefence      = -17
	codeInvalidCharge        = -18
	codeTypeMismatch         = -27
)

// IsCooldownRefusal reports whether t is a refusal specifically on
// cooldown grounds, the signal the Packet Queue (spec.md §4.H) uses to
// decide whether to hold the raw cast packet instead of dropping it
// outright.
func (t Transition) IsCooldownRefusal() bool {
	return t.Flags.Failed && t.Code == codeCooldown
}

// canCast applies the refusal checks layered on top of a decided
// Transition: category/cooldown/resource/CC gating the resolution
// chain itself does not already encode. desc is the Transition Decide
// produced; rec is its target skill's catalog record (nil if the
// lookup already failed, in which case canCast passes desc through
// unchanged). req is the original request, needed for the press/hold
// check.
func (e *Engine) canCast(desc Transition, rec *catalog.Record, req Request, player PlayerState, now time.Time) Transition {
	if desc.Flags.Failed {
		return desc
	}
	if rec == nil {
		return failed(codeFailed)
	}
	if desc.Flags.Charge && rec.Type != catalog.TypeMovingCharge {
		return failed(codeInvalidCharge)
	}
	if req.Press && rec.Type != catalog.TypeMovingCharge && !rec.KeepMovingCharge {
		return failed(codeInvalidPress)
	}
	if desc.Flags.Dash && rec.Type != catalog.TypeDash && rec.Type != catalog.TypeCatchBack && rec.Type != catalog.TypeShortTel {
		return failed(codeTypeMismatch)
	}
	if desc.Flags.Lockon && rec.Type != catalog.TypeLockon {
		return failed(codeTypeMismatch)
	}
	if rec.Type == catalog.TypeNoCasting {
		return failed(codeNoCasting)
	}
	if rec.Type == catalog.TypeNoTimeline {
		return failed(codeNoTimeline)
	}

	st := e.actions.Current()
	if st.InSpecialAction && rec.TypeID != 27 {
		return failed(codeSpecialActionNonMove)
	}
	if cur := e.catalog.Get(st.Stage.SkillID); cur != nil && cur.Type == catalog.TypeNoTimeline {
		return failed(codeCurrentNoTimeline)
	}

	if !e.fx.IsCategoryEnabled(categoryIDFor(rec), rec.Categories) {
		return failed(codeDisabledCategory)
	}

	if e.cooldowns.IsOnCooldown(desc.SkillID, rec, now) {
		return failed(codeCooldown)
	}

	if !rec.NoNeedWeapon && !player.HasWeapon {
		return failed(codeMissingWeapon)
	}

	if denial := e.gate.Check(rec, e.fx, st); denial != cc.Allowed {
		return failed(denial)
	}

	applied := e.fx.GetAppliedEffects(rec)
	if applied.Stamina > player.Stamina {
		return failed(codeInsufficientSt)
	}

	if rec.OnlyAfterDefenceSuccess && st.LastBlockTime.IsZero() {
		return failed(codeNotAfterDefence)
	}

	if player.IsSorcerer && rec.TypeID == 30 && desc.Flags.Immediate {
		return failed(codeSorcererSpecial)
	}

	return desc
}

func categoryIDFor(rec *catalog.Record) int32 {
	if len(rec.Categories) == 0 {
		return 0
	}
	return rec.Categories[0]
}
