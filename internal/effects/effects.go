// Package effects tracks active abnormalities (timed status effects)
// on the player and composes the applied-effects view the decision
// engine and catalog consult.
//
// Grounded on internal/game/skill/effect_manager.go's buff/debuff
// stacking store and effect_registry.go's tagged-variant dispatch on
// (effect.Type, effect.Method); generalized from "mutate player
// stats" to "compose a read-only view for a pending cast".
package effects

import (
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

// AbnormalityEffect is one typed sub-effect of an AbnormalityState.
type AbnormalityEffect struct {
	Type   int32
	Method int32
	Value  float64
}

// State is one active abnormality: its id, when it began, the raw
// typed sub-effects it carries, and a status bit field (e.g. bit 16
// for stun immunity).
type State struct {
	ID        int32
	BeginTime time.Time
	Effects   []AbnormalityEffect
	Status    uint32 // flag bits, e.g. bit 16
}

// StatusBit reports whether bit is set in Status.
func (s *State) StatusBit(bit uint) bool {
	return s.Status&(1<<bit) != 0
}

// AppliedEffects is the composed view returned by GetAppliedEffects:
// static skill resource usage folded with currently active
// abnormalities.
type AppliedEffects struct {
	Stamina      float64
	AbnormSpeed  float64
	PassiveSpeed float64
	ChargeSpeed  float64
	Noct         bool
	Dist         float64
	EffectScale  float64
	Transform    *catalog.SkillID
}

// View owns the set of abnormalities currently active on the player
// and the category enable/disable state they drive.
type View struct {
	active map[int32]*State

	// attackSpeedModifier is the transient bonus injected into
	// outbound PlayerStatUpdate packets while an attack-speed
	// abnormality persists.
	attackSpeedModifier float64
	attackSpeedDeadline time.Time
	attackSpeedActive   bool

	isWarrior bool
}

// New creates an empty effects View. isWarrior gates the Warrior-only
// type-0xD2 category-disable rule.
func New(isWarrior bool) *View {
	return &View{active: make(map[int32]*State), isWarrior: isWarrior}
}

// Begin activates (or re-activates) an abnormality. The inbound
// begin notification is hooked twice: an end-handler that tears down
// any prior instance before the new one lands (TearDownOnRebegin),
// and this begin-handler that installs it; internal/session wires
// both in sequence.
func (v *View) Begin(st *State) {
	v.active[st.ID] = st
}

// TearDownOnRebegin removes any prior instance of id before Begin
// installs the new one.
func (v *View) TearDownOnRebegin(id int32) {
	delete(v.active, id)
}

// End deactivates an abnormality.
func (v *View) End(id int32) {
	delete(v.active, id)
}

// Get returns the active State for id, or nil.
func (v *View) Get(id int32) *State {
	return v.active[id]
}

// IsActive reports whether an abnormality is currently active.
func (v *View) IsActive(id int32) bool {
	_, ok := v.active[id]
	return ok
}

// ForEach iterates all active abnormalities; fn must not mutate v.
func (v *View) ForEach(fn func(*State)) {
	for _, st := range v.active {
		fn(st)
	}
}

// categoryType/categoryEnableMethod and categoryDisableType/
// categoryDisableMethod are the (type, method) tags for category
// enabling and disabling.
const (
	categoryType          = 0xD1
	categoryEnableMethod  = 3
	categoryDisableType   = 0xD2
	categoryDisableMethod = 0
)

// IsCategoryEnabled implements: categories are enabled by
// type 0xD1/method 3 effects and disabled by type 0xD2/method 0
// effects; the disable rule only applies to Warriors.
func (v *View) IsCategoryEnabled(categoryID int32, skillCategories []int32) bool {
	if !containsCategory(skillCategories, categoryID) {
		return true
	}
	enabled := true
	for _, st := range v.active {
		for _, e := range st.Effects {
			if e.Type == categoryType && e.Method == categoryEnableMethod {
				enabled = true
			}
			if e.Type == categoryDisableType && e.Method == categoryDisableMethod && v.isWarrior {
				enabled = false
			}
		}
	}
	return enabled
}

func containsCategory(cats []int32, target int32) bool {
	for _, c := range cats {
		if c == target {
			return true
		}
	}
	return false
}

// GetAppliedEffects composes the AppliedEffects view for a pending
// skill cast, folding the record's static resource usage with any
// active abnormality modifiers. Effect types 1-7 are folded in
// (abnormal speed, passive speed, charge speed, noct flag, distance,
// effect scale, transform redirect); effects of any other type are
// ignored.
func (v *View) GetAppliedEffects(rec *catalog.Record) AppliedEffects {
	ae := AppliedEffects{
		Stamina:      rec.ResourceUsage.Stamina,
		PassiveSpeed: 1.0,
		ChargeSpeed:  1.0,
		EffectScale:  1.0,
	}
	for _, st := range v.active {
		for _, e := range st.Effects {
			switch e.Type {
			case 1: // speed modifier (abnormal / combat)
				ae.AbnormSpeed += e.Value
			case 2: // passive speed multiplier
				ae.PassiveSpeed *= e.Value
			case 3: // charge-skill speed multiplier
				ae.ChargeSpeed *= e.Value
			case 4: // noctural / stealth flag
				ae.Noct = e.Value != 0
			case 5: // distance bonus
				ae.Dist += e.Value
			case 6: // effect scale
				ae.EffectScale *= e.Value
			case 7: // transform redirect target skill id
				id := catalog.SkillID(int32(e.Value))
				ae.Transform = &id
			}
		}
	}
	return ae
}

// BeginAttackSpeedModifier installs the transient attackSpeedBonus
// contribution an attack-speed abnormality injects into outbound
// PlayerStatUpdate packets, torn down on abnormality end or after a
// ping timeout.
func (v *View) BeginAttackSpeedModifier(bonus float64, now time.Time, pingTimeout time.Duration) {
	v.attackSpeedModifier = bonus
	v.attackSpeedActive = true
	v.attackSpeedDeadline = now.Add(pingTimeout)
}

// EndAttackSpeedModifier tears down the modifier (abnormality end).
func (v *View) EndAttackSpeedModifier() {
	v.attackSpeedActive = false
	v.attackSpeedModifier = 0
}

// AttackSpeedBonus returns the current attack-speed contribution,
// expiring it if the ping timeout has elapsed without an explicit end.
func (v *View) AttackSpeedBonus(now time.Time) float64 {
	if !v.attackSpeedActive {
		return 0
	}
	if now.After(v.attackSpeedDeadline) {
		v.attackSpeedActive = false
		v.attackSpeedModifier = 0
		return 0
	}
	return v.attackSpeedModifier
}
