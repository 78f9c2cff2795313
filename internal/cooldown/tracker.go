// Package cooldown implements per-skill cooldown bookkeeping with
// ping-compensated rewrites and group cooldowns for multi-stage
// skills.
//
// Grounded on internal/game/skill/cast_manager.go's cooldown store
// (there: sync.Map keyed by "objectID_skillID" with a single-session
// scope); generalized here to the richer CooldownEntry shape
// (ends/cooldown/time) requires, plus ping compensation and
// group cooldowns.
package cooldown

import (
	"log/slog"
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

// Entry is a single skill's cooldown bookkeeping: when it ends, its
// full duration, and when it was set.
type Entry struct {
	Ends     time.Time
	Cooldown time.Duration
	Time     time.Time // when Ends was last set
}

// ResetFunc is invoked when a CrestMessage resets a skill's cooldown,
// so the Dispatcher can cancel a pending cooldown application. One
// listener per Tracker, held in a single slot that OnReset replaces,
// rather than a general pub/sub.
type ResetFunc func(skillID catalog.SkillID)

// Tracker holds cooldown state for one session.
type Tracker struct {
	bySkill map[catalog.SkillID]*Entry
	byGroup map[int32]*Entry // keyed by base, representing "base-0"

	resetListener ResetFunc
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		bySkill: make(map[catalog.SkillID]*Entry),
		byGroup: make(map[int32]*Entry),
	}
}

// OnReset registers the single reset listener. Replaces any previous
// listener.
func (t *Tracker) OnReset(fn ResetFunc) { t.resetListener = fn }

// StartCooldown handles an inbound StartCooltimeSkill(skillID,
// duration). duration <= 0 clears the entry.
func (t *Tracker) StartCooldown(skillID catalog.SkillID, duration time.Duration, now time.Time) {
	if duration <= 0 {
		delete(t.bySkill, skillID)
		return
	}
	t.bySkill[skillID] = &Entry{Ends: now.Add(duration), Cooldown: duration, Time: now}
}

// StartGroupCooldown sets the "{base}-0" group cooldown for a
// multi-stage skill.
func (t *Tracker) StartGroupCooldown(base int32, duration time.Duration, now time.Time) {
	if duration <= 0 {
		delete(t.byGroup, base)
		return
	}
	t.byGroup[base] = &Entry{Ends: now.Add(duration), Cooldown: duration, Time: now}
}

// DecreaseCooldown handles an inbound DecreaseCooltimeSkill(skillID,
// delta): subtracts delta from Ends.
func (t *Tracker) DecreaseCooldown(skillID catalog.SkillID, delta time.Duration) {
	e, ok := t.bySkill[skillID]
	if !ok {
		return
	}
	e.Ends = e.Ends.Add(-delta)
}

// IsOnCooldown reports whether skillID is on cooldown at now. When
// rec has a NextSkill set (a multi-stage skill) and its type is not
// one of projectile/drain/movingSkill and it is not a lockon skill,
// the "{base}-0" group cooldown is additionally consulted.
func (t *Tracker) IsOnCooldown(skillID catalog.SkillID, rec *catalog.Record, now time.Time) bool {
	if e, ok := t.bySkill[skillID]; ok && now.Before(e.Ends) {
		return true
	}
	if rec == nil || rec.NextSkill == 0 {
		return false
	}
	if groupExempt(rec) {
		return false
	}
	if e, ok := t.byGroup[skillID.Base()]; ok && now.Before(e.Ends) {
		return true
	}
	return false
}

func groupExempt(rec *catalog.Record) bool {
	switch rec.Type {
	case catalog.TypeProjectile, catalog.TypeDrain, catalog.TypeMovingSkill:
		return true
	}
	return rec.Lockon
}

// GetData returns the cooldown entry for a skill, or its group entry
// when groupLookup is true. Returns nil if absent.
func (t *Tracker) GetData(idOrBase catalog.SkillID, groupLookup bool) *Entry {
	if groupLookup {
		return t.byGroup[idOrBase.Base()]
	}
	return t.bySkill[idOrBase]
}

// CompensationMs computes max(0, ping - jitter - 5), the amount
// subtracted from both cooldown and nextStackCooldown before the
// rewritten packet reaches the client.
func CompensationMs(pingMs, jitterMs int) int {
	c := pingMs - jitterMs - 5
	if c < 0 {
		return 0
	}
	return c
}

// RewriteCooldown applies ping compensation to a cooldown/
// nextStackCooldown pair before the inbound packet reaches the
// client. Both results are clamped at 0.
func RewriteCooldown(cooldown, nextStackCooldown time.Duration, pingMs, jitterMs int) (time.Duration, time.Duration) {
	comp := time.Duration(CompensationMs(pingMs, jitterMs)) * time.Millisecond
	return clampNonNegative(cooldown - comp), clampNonNegative(nextStackCooldown - comp)
}

func clampNonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// HandleCrestMessage implements CrestMessage type 6
// handling: if skillID is currently on cooldown, inject a
// DecreaseCooldown(skill, 0) (returned for the caller to forward to
// the client) and fire the reset listener.
func (t *Tracker) HandleCrestMessage(crestType int32, skillID catalog.SkillID, now time.Time) (injectDecrease bool) {
	if crestType != 6 {
		return false
	}
	e, ok := t.bySkill[skillID]
	if !ok || !now.Before(e.Ends) {
		return false
	}
	delete(t.bySkill, skillID)
	slog.Debug("crest message reset cooldown", "skill", skillID)
	if t.resetListener != nil {
		t.resetListener(skillID)
	}
	return true
}
