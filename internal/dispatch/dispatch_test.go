package dispatch

import (
	"math"
	"testing"
	"time"

	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/network"
)

type fakeSender struct {
	sent []sentPacket
}

type sentPacket struct {
	name   string
	fields map[string]any
}

func (f *fakeSender) SendToClient(name string, fields map[string]any) error {
	f.sent = append(f.sent, sentPacket{name, fields})
	return nil
}

func newTestDispatcher() (*Dispatcher, *fakeSender) {
	sender := &fakeSender{}
	return New(sender, action.New(), network.New(), 25*time.Millisecond), sender
}

func TestComputeCatchBackLandsBehindTarget(t *testing.T) {
	target := TargetInfo{Loc: Vec3{X: 10, Y: 0, Z: 0}, W: 0, Radius: 5}
	got := computeCatchBack(target)
	if math.Abs(got.X-5) > 1e-9 {
		t.Fatalf("expected X=5 (behind target facing 0, i.e. toward -X), got %+v", got)
	}
}

func TestComputeShortTelCapsDistanceAndBlocks(t *testing.T) {
	caster := Actor{Loc: Vec3{}, W: 0}
	dest, ok := computeShortTel(caster, nil)
	if !ok {
		t.Fatal("expected unblocked teleport with no nearby players")
	}
	if math.Abs(dest.X-shortTelMaxDistance) > 1e-9 {
		t.Fatalf("expected teleport capped at %v, got %+v", shortTelMaxDistance, dest)
	}

	blocked := []NearbyPlayer{{Loc: Vec3{X: 100, Y: 0, Z: 0}}}
	if _, ok := computeShortTel(caster, blocked); ok {
		t.Fatal("expected teleport blocked by player in the arc")
	}
}

func TestIsGunnerProjectileSkill(t *testing.T) {
	cases := []struct {
		base, sub int32
		want      bool
	}{
		{6, 0, true},
		{43, 1, true},
		{43, 30, true},
		{43, 99, false},
		{7, 0, false},
	}
	for _, c := range cases {
		if got := isGunnerProjectileSkill(c.base, c.sub); got != c.want {
			t.Errorf("isGunnerProjectileSkill(%d,%d) = %v, want %v", c.base, c.sub, got, c.want)
		}
	}
}

// S6 — Gunner projectile reconciliation: two hits buffered against the
// fake id, flushed under the real id once it arrives; the real
// StartUserProjectile itself is suppressed. Reconciliation is keyed by
// skillId (what the server can legitimately echo back), not by the
// purely-local fake id.
func TestProjectileReconciliationScenario(t *testing.T) {
	d, sender := newTestDispatcher()
	const skillID = catalog.SkillID(60100)
	d.emitFakeProjectile(skillID, time.Now())

	d.ObserveHit(9999, []byte("hit1"))
	d.ObserveHit(9999, []byte("hit2"))

	for _, s := range sender.sent {
		if s.name == "HitUserProjectile" {
			t.Fatalf("hit should be buffered before the real projectile arrives, got %+v", s)
		}
	}

	suppress := d.ObserveRealStart(skillID, 9999)
	if !suppress {
		t.Fatal("expected the real StartUserProjectile to be suppressed")
	}

	var flushed int
	for _, s := range sender.sent {
		if s.name == "HitUserProjectile" {
			flushed++
			if s.fields["projectileId"] != int64(9999) {
				t.Fatalf("expected flushed hit rewritten to real id, got %+v", s.fields)
			}
		}
	}
	if flushed != 2 {
		t.Fatalf("expected 2 buffered hits flushed, got %d", flushed)
	}
}

func TestRewriteStaminaMessageUsesClassResourceName(t *testing.T) {
	d, _ := newTestDispatcher()
	got := d.RewriteStaminaMessage(jobGunner, "Not enough Stamina")
	if got != "Not enough Ammo" {
		t.Fatalf("got %q", got)
	}
	got = d.RewriteStaminaMessage(999, "Not enough Stamina")
	if got != "Not enough Stamina" {
		t.Fatalf("expected unchanged message for unknown job, got %q", got)
	}
}

func TestSuppressCannotStartSkillWindow(t *testing.T) {
	d, _ := newTestDispatcher()
	now := time.Now()
	if d.SuppressCannotStartSkill(now) {
		t.Fatal("expected no suppression before any teleport started")
	}

	d.teleportStartedAt = now
	if !d.SuppressCannotStartSkill(now.Add(50 * time.Millisecond)) {
		t.Fatal("expected suppression within the 100ms window")
	}
	if d.SuppressCannotStartSkill(now.Add(150 * time.Millisecond)) {
		t.Fatal("expected no suppression past the 100ms window")
	}
}
