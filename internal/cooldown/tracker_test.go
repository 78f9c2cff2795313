package cooldown

import (
	"testing"
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

// S1 — Cooldown with ping compensation.
func TestRewriteCooldown_S1(t *testing.T) {
	cd, _ := RewriteCooldown(1000*time.Millisecond, 1000*time.Millisecond, 100, 20)
	if cd != 925*time.Millisecond {
		t.Fatalf("got %v want 925ms", cd)
	}
}

func TestCompensationClampedAtZero(t *testing.T) {
	if got := CompensationMs(10, 50); got != 0 {
		t.Fatalf("got %d want 0", got)
	}
}

func TestIsOnCooldownMonotonic(t *testing.T) {
	tr := New()
	skill := catalog.NewSkillID(170100, 1, 0)
	start := time.Now()
	tr.StartCooldown(skill, 925*time.Millisecond, start)

	if !tr.IsOnCooldown(skill, nil, start.Add(900*time.Millisecond)) {
		t.Fatal("expected still on cooldown at 900ms")
	}
	if tr.IsOnCooldown(skill, nil, start.Add(950*time.Millisecond)) {
		t.Fatal("expected cooldown cleared at 950ms")
	}
}

func TestGroupCooldownExemptions(t *testing.T) {
	tr := New()
	base := int32(200)
	start := time.Now()
	tr.StartGroupCooldown(base, time.Second, start)

	rec := &catalog.Record{NextSkill: catalog.NewSkillID(base, 1, 1), Type: catalog.TypeProjectile}
	skill := catalog.NewSkillID(base, 1, 0)
	if tr.IsOnCooldown(skill, rec, start) {
		t.Fatal("projectile skills should be exempt from group cooldown")
	}

	rec.Type = catalog.TypeNormal
	if !tr.IsOnCooldown(skill, rec, start) {
		t.Fatal("normal multi-stage skill should respect group cooldown")
	}
}

func TestHandleCrestMessageResetsAndFiresListener(t *testing.T) {
	tr := New()
	skill := catalog.NewSkillID(1, 1, 0)
	now := time.Now()
	tr.StartCooldown(skill, time.Second, now)

	var resetCalled catalog.SkillID
	tr.OnReset(func(id catalog.SkillID) { resetCalled = id })

	if !tr.HandleCrestMessage(6, skill, now) {
		t.Fatal("expected reset to be injected")
	}
	if resetCalled != skill {
		t.Fatalf("expected reset listener called with %v, got %v", skill, resetCalled)
	}
	if tr.IsOnCooldown(skill, nil, now) {
		t.Fatal("expected cooldown cleared after crest reset")
	}
}

func TestHandleCrestMessageIgnoresOtherTypes(t *testing.T) {
	tr := New()
	skill := catalog.NewSkillID(1, 1, 0)
	now := time.Now()
	tr.StartCooldown(skill, time.Second, now)

	if tr.HandleCrestMessage(5, skill, now) {
		t.Fatal("non-type-6 crest messages must not reset cooldown")
	}
}
