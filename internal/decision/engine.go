// Package decision implements the skill decision engine; see transition.go
// for the package doc comment.
package decision

import (
	"log/slog"
	"time"

	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/cc"
	"github.com/udisondev/l2latency/internal/cooldown"
	"github.com/udisondev/l2latency/internal/effects"
	"github.com/udisondev/l2latency/internal/network"
)

// Ninja and Berserker are the two classes with the typeId==28 redirect
// discard rule in step 3; Ninja alone has the 90100/90130+32065→90131
// passive substitution in step 1.
const (
	jobNinja     = 25
	jobBerserker = 13

	jobWarrior = 0
	jobLancer  = 1
	jobBrawler = 10
)

const arrowGrantTTL = 200 * time.Millisecond

type arrowGrant struct {
	skill   catalog.SkillID
	expires time.Time
}

// PlayerState is the subset of confirmed player state canCast needs
// that doesn't live on the action/effects/cooldown trackers: current
// stamina, whether a weapon is equipped, and the character's job.
type PlayerState struct {
	Stamina    float64
	HasWeapon  bool
	Job        int32
	IsSorcerer bool
}

// Request is a pending skill cast as observed from an outbound
// packet.
type Request struct {
	SkillID catalog.SkillID
	ByGrant bool
	Press   bool
}

// Engine is the skill decision engine: given a requested skill and
// the live action/catalog/effects/cooldown/cc state, it decides
// whether the skill executes now and under what transition kind and
// time offset. Not safe for concurrent use — all calls happen on the
// session's single event-loop goroutine.
type Engine struct {
	catalog   *catalog.Catalog
	actions   *action.Tracker
	cooldowns *cooldown.Tracker
	fx        *effects.View
	gate      *cc.Gate
	monitor   *network.Monitor

	job               int32
	wiggleRoomBonusMs int

	arrowGrants map[catalog.SkillID]arrowGrant
}

// New creates an Engine wired to the given per-session components.
func New(cat *catalog.Catalog, actions *action.Tracker, cooldowns *cooldown.Tracker, fx *effects.View, gate *cc.Gate, monitor *network.Monitor, job int32, wiggleRoomBonusMs int) *Engine {
	return &Engine{
		catalog:           cat,
		actions:           actions,
		cooldowns:         cooldowns,
		fx:                fx,
		gate:              gate,
		monitor:           monitor,
		job:               job,
		wiggleRoomBonusMs: wiggleRoomBonusMs,
		arrowGrants:       make(map[catalog.SkillID]arrowGrant),
	}
}

// GrantArrow records an arrow-connect shortcut for originalID, valid
// for the next 200ms.
func (e *Engine) GrantArrow(originalID, arrowSkill catalog.SkillID, now time.Time) {
	e.arrowGrants[originalID] = arrowGrant{skill: arrowSkill, expires: now.Add(arrowGrantTTL)}
}

func (e *Engine) prefixSumFor(overrideSkill catalog.SkillID, overrideStage int) (float64, bool) {
	skill := overrideSkill
	if skill == 0 {
		skill = e.actions.Current().Stage.SkillID
	}
	return e.catalog.PrefixSum(skill, overrideStage)
}

// Decide runs the ordered resolution chain for req, then applies the
// canCast refusal checks, and returns the transition descriptor the
// dispatcher should act on.
func (e *Engine) Decide(req Request, player PlayerState, now time.Time) Transition {
	desc, rec := e.resolve(req, now)
	return e.canCast(desc, rec, req, player, now)
}

// resolve runs the ordered resolution chain for req and returns the
// transition descriptor together with its target skill's record (nil
// on a catalog miss or any other failed-before-lookup path).
func (e *Engine) resolve(req Request, now time.Time) (Transition, *catalog.Record) {
	st := e.actions.Current()
	jitter := float64(e.monitor.Jitter())

	id := e.preTransform(req.SkillID)

	rec := e.catalog.Get(id)
	if rec == nil {
		return failed(codeNotFound), nil
	}

	// Step 3: abnormality redirect loop.
	var captured *effects.State
	for depth := 0; depth < 16; depth++ {
		redirected := false
		for _, r := range rec.AbnormalityRedirect {
			if !e.fx.IsActive(r.AbnormalityID) {
				continue
			}
			alt := e.catalog.Get(r.Alt)
			if alt == nil {
				continue
			}
			if (e.job == jobNinja || e.job == jobBerserker) && alt.TypeID == 28 {
				captured = nil
			} else {
				captured = e.fx.Get(r.AbnormalityID)
			}
			if abs32(int32(r.Alt)-int32(id)) > 10000 {
				return e.resolve(Request{SkillID: r.Alt, ByGrant: req.ByGrant, Press: req.Press}, now)
			}
			id, rec = r.Alt, alt
			redirected = true
			break
		}
		if !redirected {
			break
		}
	}

	// Step 4: connect-next.
	if rec.ConnectNextSkill != 0 && e.connectNextActive(rec) {
		if next := e.catalog.Get(rec.ConnectNextSkill); next != nil {
			id, rec = rec.ConnectNextSkill, next
		}
	}

	// Step 5: category override.
	if e.categoryOverrideActive(rec) {
		sub30 := catalog.NewSkillID(id.Base(), id.Level(), 30)
		if r30 := e.catalog.Get(sub30); r30 != nil {
			id, rec = sub30, r30
		}
	}

	// Step 6: arrow-grant shortcut.
	if req.ByGrant {
		if g, ok := e.arrowGrants[req.SkillID]; ok && now.Before(g.expires) && st.Stage.SkillID != g.skill {
			return Transition{SkillID: g.skill, Type: 0, Time: jitter - 1, Flags: Flags{NoAction: true, ByGrant: true}}, rec
		}
	}

	currentRec := e.catalog.Get(st.Stage.SkillID)

	// Step 7: not in action.
	if !st.InAction {
		if st.KeptMovingCharge != 0 && rec.Type == catalog.TypeMovingCharge {
			stage := st.KeptMovingCharge
			if stage >= 0 && stage < len(rec.AnimLength.MovingCharge) {
				return Transition{SkillID: id, Type: 0, Flags: Flags{NoAction: true, Charge: true}}, rec
			}
		}
		return Transition{SkillID: id, Type: 0, Flags: Flags{NoAction: true}}, rec
	}

	// Step 8: notimeline shortcut.
	if rec.Type == catalog.TypeNoTimeline {
		return Transition{SkillID: id, Type: 9, Time: jitter}, rec
	}

	// Step 9: keep-charge.
	if rec.KeepMovingCharge && currentRec != nil && currentRec.Type == catalog.TypeMovingCharge {
		return Transition{SkillID: id, Type: 0, Time: jitter - 1, Flags: Flags{KeepCharge: true}}, rec
	}

	// Step 10: release moving charge on key-up.
	if currentRec != nil && currentRec.Type == catalog.TypeMovingCharge && !req.Press {
		stage := st.Stage.Stage
		delay := e.movingChargeReleaseDelay(currentRec, stage, now)
		target := catalog.SkillID(0)
		if stage >= 0 && stage < len(currentRec.AnimLength.MovingCharge) {
			target = currentRec.AnimLength.MovingCharge[stage].NextSkill
		}
		return Transition{SkillID: target, Type: 0, Time: delay, Flags: Flags{Charge: true}}, e.catalog.Get(target)
	}

	elapsed := e.actions.ElapsedTime(now, e.monitor.Jitter(), e.wiggleRoomBonusMs)
	speed := st.Speed.Real

	// Step 11: onlyAfterDefenceSuccess.
	if rec.OnlyAfterDefenceSuccess {
		if st.ServerStage.StageTime.After(st.LastBlockTime) {
			return failed(-999), nil
		}
		blockOffset := float64(st.LastBlockTime.Sub(st.Stage.StageTime)/time.Millisecond) - 1
		typ := int32(3)
		if currentRec != nil && currentRec.TypeID == 46 {
			typ = 6
		}
		return Transition{SkillID: id, Type: typ, Time: blockOffset, Flags: Flags{Chain: true}}, rec
	}

	var cancels catalog.CancelWindow
	if currentRec != nil {
		cancels = currentRec.Cancels
	}
	pendingActive := catalog.IsInPendingTime(elapsed, cancels)
	canRear := catalog.CanRearCancel(elapsed, cancels)

	// Step 13: front cancel.
	if currentRec != nil && currentRec.TypeID == 25 && catalog.CanFrontCancel(elapsed, cancels) {
		t := e.calculateTime(cancels.Front, elapsed, speed, 0, st.Stage.Stage, true)
		return Transition{SkillID: id, Type: 2, Time: t, Flags: Flags{Front: true}}, rec
	}

	// Step 14: self-cancel (typeId 41) on key-up.
	if currentRec != nil && currentRec.TypeID == 41 && !req.Press {
		return Transition{SkillID: id, Type: 51, Time: jitter - 1, Flags: Flags{Cancel: true}}, rec
	}

	// Step 15: immediate pending type 1.
	if pendingActive && currentRec != nil && currentRec.PendingType == 1 && captured == nil && isImmediateTypeID(rec.TypeID) {
		return Transition{SkillID: id, Type: 6, Code: 1, Flags: Flags{Immediate: true}}, rec
	}

	// Step 16: current typeId 31 + pendingType 1.
	if currentRec != nil && currentRec.TypeID == 31 && currentRec.PendingType == 1 {
		return Transition{SkillID: id, Type: 6, Code: 3, Flags: Flags{Immediate: true}}, rec
	}

	// Step 17: chain / abnormality-chain / same-skill pendingType 3.
	if chainable := e.chainMatches(currentRec, id); chainable {
		t := e.calculateTime(cancels.PendingStart, elapsed, speed, 0, st.Stage.Stage, true)
		if captured != nil {
			t = float64(now.Sub(captured.BeginTime) / time.Millisecond)
			if rec.AbnormalityRedirectToMe != nil {
				if _, self := rec.AbnormalityRedirectToMe[captured.ID]; self {
					t = maxFloat(0, t)
				}
			}
		}
		return Transition{SkillID: id, Type: 4, Time: t, Flags: Flags{Chain: true}}, rec
	}

	// Step 18: self-cancel (typeId 3/46) on key-up.
	if currentRec != nil && (currentRec.TypeID == 3 || currentRec.TypeID == 46) && !req.Press {
		typ := int32(10)
		if currentRec.TypeID == 46 {
			typ = 51
		}
		return Transition{SkillID: id, Type: typ, Time: jitter - 1, Flags: Flags{Cancel: true}}, rec
	}

	// Step 19: drain continuation.
	if currentRec != nil && currentRec.Type == catalog.TypeDrain && currentRec.NextSkill != 0 {
		return Transition{SkillID: currentRec.NextSkill, Type: 11, Time: jitter - 1, Flags: Flags{Chain: true}}, e.catalog.Get(currentRec.NextSkill)
	}

	// Step 20: lockon chain same base.
	if currentRec != nil && currentRec.Lockon && id.Base() == st.Stage.SkillID.Base() {
		return Transition{SkillID: id, Type: 36, Time: jitter - 1, Flags: Flags{Chain: true}}, rec
	}

	// Step 21: super (pendingType 3).
	if currentRec != nil && currentRec.PendingType == 3 {
		return Transition{SkillID: id, Type: 6, Time: jitter - 1, Flags: Flags{Super: true}}, rec
	}

	// Step 22: type 25 + press + pendingType 1.
	if currentRec != nil && currentRec.TypeID == 25 && req.Press && currentRec.PendingType == 1 {
		return Transition{SkillID: id, Type: 6, Code: 2, Flags: Flags{Immediate: true}}, rec
	}

	// Step 23: type 31 + pendingType 1.
	if currentRec != nil && currentRec.TypeID == 31 && currentRec.PendingType == 1 {
		return Transition{SkillID: id, Type: 6, Code: 4, Flags: Flags{Immediate: true}}, rec
	}

	// Step 24: type 30 current, pendingType 0, rear cancel open.
	if currentRec != nil && currentRec.TypeID == 30 && currentRec.PendingType == 0 && canRear {
		return Transition{SkillID: id, Type: 6, Code: 5, Flags: Flags{Immediate: true}}, rec
	}

	// Step 25: type 30 current + pendingType 1 new.
	if currentRec != nil && currentRec.TypeID == 30 && rec.PendingType == 1 {
		return Transition{SkillID: id, Type: 6, Code: 6, Flags: Flags{Immediate: true}}, rec
	}

	// Step 26: dash redirect.
	if currentRec != nil && currentRec.TypeID == 29 {
		if target, ok := currentRec.DashRedirect[id.Base()]; ok {
			return Transition{SkillID: target, Type: 6, Time: -1, Flags: Flags{Dash: true}}, e.catalog.Get(target)
		}
		if target, ok := currentRec.DashRedirectFail[id.Base()]; ok {
			return Transition{SkillID: target, Type: 6, Time: -1, Flags: Flags{Dash: true}}, e.catalog.Get(target)
		}
	}

	// Step 27: rear cancel (pendingType 2).
	if canRear && e.rearCancelCompatible(currentRec, rec) {
		t := e.calculateTime(cancels.RearStart, elapsed, speed, 0, st.Stage.Stage, true)
		code := int32(1)
		if currentRec != nil && currentRec.ID.Base() == 26 && id.Base() == 2 {
			code = 2
		}
		return Transition{SkillID: id, Type: 6, Code: code, Time: t, Flags: Flags{Rear: true}}, rec
	}

	// Step 28: block-cast.
	if (e.job == jobWarrior || e.job == jobLancer || e.job == jobBrawler) && rec.CanCastDuringBlock &&
		currentRec != nil && isOneOf(currentRec.TypeID, 3, 41, 46) && canRear {
		t := e.calculateTime(cancels.RearStart, elapsed, speed, 0, st.Stage.Stage, true)
		return Transition{SkillID: id, Type: 6, Time: t, Flags: Flags{Block: true}}, rec
	}

	// Step 29: dash redirect (late pass, same rule repeated by the
	// original resolution order for timing reasons it does not
	// document further).
	if currentRec != nil && currentRec.TypeID == 29 {
		if target, ok := currentRec.DashRedirect[id.Base()]; ok {
			return Transition{SkillID: target, Type: 6, Time: -1, Flags: Flags{Dash: true}}, e.catalog.Get(target)
		}
	}

	// Step 30: lockon escape.
	if currentRec != nil && currentRec.Lockon && currentRec.TypeID == 30 && id.Base() != st.Stage.SkillID.Base() {
		return Transition{SkillID: id, Type: 6, Time: jitter - 1, Flags: Flags{Lockon: true}}, rec
	}

	// Step 31: knockdown escape.
	if rec.TypeID == 27 && (st.Stage.Air || st.InSpecialAction) {
		return Transition{SkillID: id, Type: 5, Time: jitter - 1, Flags: Flags{KD: true}}, rec
	}

	// Step 32: future action.
	if currentRec != nil {
		total, ok := e.prefixSumFor(st.Stage.SkillID, currentRec.StageCount())
		if ok && elapsed >= total && e.catalog.IsSupported(st.Stage.SkillID) &&
			!currentRec.ShouldNotUseLength && currentRec.TypeID != 29 {
			t := e.calculateTime(total, elapsed, speed, st.Stage.SkillID, currentRec.StageCount(), true) - 5
			if t < 0 {
				return Transition{SkillID: id, Type: 0, Time: t, Flags: Flags{NoAction: true, Future: true}}, rec
			}
		}
	}

	// Step 33: default.
	slog.Debug("decision fell through to default refusal", "skill", id)
	return failed(codeDefault), nil
}

func (e *Engine) preTransform(id catalog.SkillID) catalog.SkillID {
	if e.job == jobNinja {
		base := id.Base()
		if base == 90100 || base == 90130 {
			if e.fx.IsActive(32065) {
				return catalog.NewSkillID(90131, id.Level(), id.Sub())
			}
		}
	}
	if ae := e.actions.Current().Effects; ae.Transform != nil {
		return *ae.Transform
	}
	return id
}

func (e *Engine) connectNextActive(rec *catalog.Record) bool {
	found := false
	e.fx.ForEach(func(st *effects.State) {
		if found {
			return
		}
		for _, eff := range st.Effects {
			if eff.Type == 334 {
				found = true
			}
		}
	})
	return found
}

func (e *Engine) categoryOverrideActive(rec *catalog.Record) bool {
	found := false
	e.fx.ForEach(func(st *effects.State) {
		if found {
			return
		}
		for _, eff := range st.Effects {
			if eff.Type != 239 || eff.Method != 3 {
				continue
			}
			for _, cat := range rec.Categories {
				if cat == int32(eff.Value) {
					found = true
				}
			}
		}
	})
	return found
}

func (e *Engine) chainMatches(currentRec *catalog.Record, newID catalog.SkillID) bool {
	if currentRec == nil {
		return false
	}
	if subs, ok := currentRec.Chains[newID.Base()]; ok {
		if _, ok := subs[newID.Sub()]; ok {
			return true
		}
	}
	if lvl, ok := currentRec.ConnectSkills[catalog.SiblingKey{Base: newID.Base(), Sub: newID.Sub()}]; ok {
		return newID.Level() >= lvl
	}
	return false
}

func (e *Engine) rearCancelCompatible(currentRec, newRec *catalog.Record) bool {
	if currentRec == nil {
		return false
	}
	if isOneOf(newRec.TypeID, 9, 28) {
		return false
	}
	if isOneOf(currentRec.TypeID, 3, 25, 29, 41, 46) {
		return false
	}
	if currentRec.ID.Base() == 26 && newRec.ID.Base() == 2 {
		return true
	}
	return true
}

func (e *Engine) movingChargeReleaseDelay(rec *catalog.Record, stage int, now time.Time) float64 {
	st := e.actions.Current().Stage
	sinceStart := float64(now.Sub(st.StartTime) / time.Millisecond)
	if sinceStart <= 30 {
		return 0
	}
	if stage >= 0 && stage < len(rec.AnimLength.MovingCharge) {
		length := rec.AnimLength.MovingCharge[stage].DurationMs
		if length-sinceStart <= 30 && length-sinceStart >= 0 {
			return length - sinceStart
		}
	}
	return sinceStart
}

func isImmediateTypeID(id int32) bool {
	return isOneOf(id, 6, 9, 22, 24, 29, 38, 41, 42)
}

func isOneOf(v int32, options ...int32) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
