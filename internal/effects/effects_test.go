package effects

import (
	"testing"
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

func TestCategoryDisabledForWarriorOnly(t *testing.T) {
	v := New(true)
	v.Begin(&State{ID: 1, Effects: []AbnormalityEffect{{Type: categoryDisableType, Method: categoryDisableMethod}}})

	if v.IsCategoryEnabled(5, []int32{5}) {
		t.Fatal("expected category disabled for warrior")
	}

	nonWarrior := New(false)
	nonWarrior.Begin(&State{ID: 1, Effects: []AbnormalityEffect{{Type: categoryDisableType, Method: categoryDisableMethod}}})
	if !nonWarrior.IsCategoryEnabled(5, []int32{5}) {
		t.Fatal("expected category unaffected for non-warrior")
	}
}

func TestCategoryUnrelatedIsAlwaysEnabled(t *testing.T) {
	v := New(true)
	if !v.IsCategoryEnabled(9, []int32{1, 2}) {
		t.Fatal("category not referenced by skill should be enabled")
	}
}

func TestGetAppliedEffectsComposesStaminaAndModifiers(t *testing.T) {
	v := New(false)
	v.Begin(&State{ID: 1, Effects: []AbnormalityEffect{{Type: 2, Value: 0.5}}})
	rec := &catalog.Record{ResourceUsage: catalog.ResourceUsage{Stamina: 10}}

	ae := v.GetAppliedEffects(rec)
	if ae.Stamina != 10 {
		t.Fatalf("got stamina %v want 10", ae.Stamina)
	}
	if ae.PassiveSpeed != 0.5 {
		t.Fatalf("got passive speed %v want 0.5", ae.PassiveSpeed)
	}
}

func TestAttackSpeedModifierExpiresAfterPingTimeout(t *testing.T) {
	v := New(false)
	now := time.Now()
	v.BeginAttackSpeedModifier(30, now, 100*time.Millisecond)

	if got := v.AttackSpeedBonus(now.Add(50 * time.Millisecond)); got != 30 {
		t.Fatalf("got %v want 30", got)
	}
	if got := v.AttackSpeedBonus(now.Add(200 * time.Millisecond)); got != 0 {
		t.Fatalf("got %v want 0 after timeout", got)
	}
}

func TestTearDownOnRebegin(t *testing.T) {
	v := New(false)
	v.Begin(&State{ID: 1})
	v.TearDownOnRebegin(1)
	if v.IsActive(1) {
		t.Fatal("expected abnormality removed before re-begin")
	}
}
