package cc

import (
	"testing"

	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/effects"
)

// S4 — CC denial (stun), scenario S4.
func TestStunDenialAndImmunity(t *testing.T) {
	g := New()
	view := effects.New(false)
	view.Begin(&effects.State{ID: 1, Effects: []effects.AbnormalityEffect{{Type: typeStun}}})
	rec := &catalog.Record{}
	act := &action.State{}

	if got := g.Check(rec, view, act); got != DeniedStun {
		t.Fatalf("got %d want %d", got, DeniedStun)
	}

	immune := effects.New(false)
	immune.Begin(&effects.State{ID: 1, Status: 1 << 16, Effects: []effects.AbnormalityEffect{{Type: typeStun}}})
	if got := g.Check(rec, immune, act); got != Allowed {
		t.Fatalf("got %d want Allowed with immunity bit set", got)
	}
}

func TestRootAllowsMovementSkill(t *testing.T) {
	g := New()
	view := effects.New(false)
	view.Begin(&effects.State{ID: 1, Effects: []effects.AbnormalityEffect{{Type: typeRoot}}})
	act := &action.State{}

	if got := g.Check(&catalog.Record{TypeID: 27}, view, act); got != Allowed {
		t.Fatalf("got %d want Allowed for movement skill under root", got)
	}
	if got := g.Check(&catalog.Record{TypeID: 1}, view, act); got != DeniedRoot {
		t.Fatalf("got %d want %d for non-movement skill under root", got, DeniedRoot)
	}
}

func TestWhitelistedAbnormalitySkipped(t *testing.T) {
	g := New()
	view := effects.New(false)
	view.Begin(&effects.State{ID: 10133020, Effects: []effects.AbnormalityEffect{{Type: typeStun}}})
	if got := g.Check(&catalog.Record{}, view, &action.State{}); got != Allowed {
		t.Fatalf("got %d want Allowed (whitelisted)", got)
	}
}

func TestFearedDenial(t *testing.T) {
	g := New()
	g.SetFeared(true)
	view := effects.New(false)
	if got := g.Check(&catalog.Record{}, view, &action.State{}); got != DeniedFeared {
		t.Fatalf("got %d want %d", got, DeniedFeared)
	}
}

func TestKnockedDownDeniesNonMovement(t *testing.T) {
	g := New()
	view := effects.New(false)
	act := &action.State{}
	act.Stage.Air = true
	if got := g.Check(&catalog.Record{TypeID: 1}, view, act); got != DeniedKnockedDown {
		t.Fatalf("got %d want %d", got, DeniedKnockedDown)
	}
	if got := g.Check(&catalog.Record{TypeID: 27}, view, act); got != Allowed {
		t.Fatalf("got %d want Allowed for movement while knocked down", got)
	}
}
