// Package action tracks the live action (current skill, stage, speed
// vector, timestamps) and distinguishes confirmed (server) state from
// effective (possibly faked) state.
//
// Grounded on internal/game/skill/effect.go's ActiveEffect tick shape
// and internal/world/world.go's mutable-session-state idiom.
package action

import (
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/effects"
)

// Stage is the current action's stage snapshot.
type Stage struct {
	SkillID   catalog.SkillID
	Stage     int
	StartTime time.Time
	StageTime time.Time
	Push      bool
	AnimSeq   []catalog.AnimSegment
	Air       bool
	AirChain  bool
	ID        uint64 // action id, the Dispatcher's ++counter value
}

// Speed is the {real, stage, projectile, fixed, not_fixed} multiplier
// set applied when computing elapsed action time.
type Speed struct {
	Real       float64
	Stage      float64
	Projectile float64
	Fixed      float64
	NotFixed   float64
}

// End is the last action's end marker.
type End struct {
	SkillID catalog.SkillID
	Time    time.Time
}

// State is the live action state: in-action/in-special-action flags,
// confirmed vs. effective stage, speed multipliers, the applied
// effects view, and the last block/skill timestamps.
type State struct {
	InAction        bool
	InSpecialAction bool
	ServerInAction  bool

	Stage       Stage
	ServerStage Stage

	Speed Speed

	Effects effects.AppliedEffects

	KeptMovingCharge int

	End End

	// LastBlockTime/LastSkillTime are consulted by the decision
	// engine's onlyAfterDefenceSuccess check.
	LastBlockTime time.Time
	LastSkillTime time.Time
}

// Tracker owns the single ActionState instance for a session. Not
// safe for concurrent use: all mutation happens on the session's
// single event-loop goroutine.
type Tracker struct {
	state State
}

// New creates a Tracker with Speed multipliers defaulted to 1.0.
func New() *Tracker {
	return &Tracker{state: State{Speed: Speed{Real: 1, Stage: 1, Projectile: 1, Fixed: 1, NotFixed: 1}}}
}

// Current returns the live ActionState. Callers must treat the
// returned pointer as read-only; use the Tracker's mutator methods to
// change state.
func (t *Tracker) Current() *State { return &t.state }

// BeginServerStage records an inbound (authoritative) ActionStage,
// updating both the confirmed and the effective stage. The effective
// stage is overwritten even when a faked stage is already further
// ahead.
func (t *Tracker) BeginServerStage(s Stage, effects effects.AppliedEffects) {
	t.state.ServerInAction = true
	t.state.ServerStage = s
	t.state.InAction = true
	t.state.Stage = s
	t.state.Effects = effects
}

// BeginFakeStage records a faked ActionStage the Dispatcher emitted,
// advancing only the effective stage, not the server mirror.
func (t *Tracker) BeginFakeStage(s Stage) {
	t.state.InAction = true
	t.state.Stage = s
}

// EndServer records an inbound (authoritative) ActionEnd.
func (t *Tracker) EndServer(skillID catalog.SkillID, now time.Time) {
	t.state.ServerInAction = false
	t.state.InAction = false
	t.state.End = End{SkillID: skillID, Time: now}
}

// EndFake records a faked ActionEnd the Dispatcher emitted.
func (t *Tracker) EndFake(skillID catalog.SkillID, now time.Time) {
	t.state.InAction = false
	t.state.End = End{SkillID: skillID, Time: now}
}

// SetSpecialAction toggles the "currently in a special action"
// flag (knockdown, stun-animation, etc. — consults this).
func (t *Tracker) SetSpecialAction(v bool) { t.state.InSpecialAction = v }

// SetKeptMovingCharge records the stage carried over from a released
// moving-charge skill.
func (t *Tracker) SetKeptMovingCharge(stage int) { t.state.KeptMovingCharge = stage }

// RecordBlockSuccess notes a successful defence, consulted by
// onlyAfterDefenceSuccess skills.
func (t *Tracker) RecordBlockSuccess(now time.Time) { t.state.LastBlockTime = now }

// RecordSkillUse notes the timestamp of the last skill use.
func (t *Tracker) RecordSkillUse(now time.Time) { t.state.LastSkillTime = now }

// ElapsedTime computes elapsedTime = (now -
// stage.startTime) * speed.real + wiggleRoom, where wiggleRoom is the
// current jitter plus an optional fixed bonus (Config.WiggleRoomBonus).
func (t *Tracker) ElapsedTime(now time.Time, jitterMs int, wiggleRoomBonusMs int) float64 {
	elapsedMs := float64(now.Sub(t.state.Stage.StartTime) / time.Millisecond)
	wiggle := float64(jitterMs + wiggleRoomBonusMs)
	return elapsedMs*t.state.Speed.Real + wiggle
}
