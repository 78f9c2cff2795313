package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/config"
	"github.com/udisondev/l2latency/internal/hostproxy"
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

func (f *fakeSender) find(name string) (sentPacket, bool) {
	for _, p := range f.sent {
		if p.name == name {
			return p, true
		}
	}
	return sentPacket{}, false
}

func newTestSession(t *testing.T) (*Session, *fakeSender, context.Context, context.CancelFunc) {
	t.Helper()
	sender := &fakeSender{}
	s := New(config.Default(), "", 0, false, false, sender)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.loop(ctx) }()
	return s, sender, ctx, cancel
}

func normalRecord(id catalog.SkillID) *catalog.Record {
	return &catalog.Record{ID: id, Type: catalog.TypeNormal, NoNeedWeapon: true}
}

// TestHookStartCooltimeRewritesCooldownWithPingCompensation covers the
// inbound cooldown rewrite scenario: a StartCooltimeSkill is shortened
// by CompensationMs(ping, jitter) before the client sees it, while the
// tracked cooldown itself keeps the server's real duration.
func TestHookStartCooltimeRewritesCooldownWithPingCompensation(t *testing.T) {
	s, _, ctx, cancel := newTestSession(t)
	defer cancel()

	hook := s.hookStartCooltime(ctx)
	pc := &hostproxy.PacketContext{
		Name: "StartCooltimeSkill",
		Fields: map[string]any{
			"skillId":           int32(1000),
			"cooldown":          int32(1000),
			"nextStackCooldown": int32(500),
		},
	}
	res := hook(pc)
	assert.Equal(t, hostproxy.Pass, res)

	// Default ping/jitter: 88/11 -> CompensationMs = 88-11-5 = 72.
	assert.Equal(t, int32(928), pc.Fields["cooldown"])
	assert.Equal(t, int32(428), pc.Fields["nextStackCooldown"])

	entry := s.cooldowns.GetData(catalog.SkillID(1000), false)
	require.NotNil(t, entry, "expected a tracked cooldown entry")
	assert.Equal(t, 1000*time.Millisecond, entry.Cooldown, "tracked cooldown must keep the real duration")
}

// TestCooldownRefusalEnqueuesAndQueueReleasesOnSchedule covers the
// packet queue's admission rule: a cast refused purely on cooldown
// grounds is held, not dropped, and released once its scheduled send
// time arrives.
func TestCooldownRefusalEnqueuesAndQueueReleasesOnSchedule(t *testing.T) {
	s, sender, ctx, cancel := newTestSession(t)
	defer cancel()

	const skillID = catalog.SkillID(2000)
	s.catalog.Load("test", []*catalog.Record{normalRecord(skillID)}, nil)

	now := time.Now()
	s.cooldowns.StartCooldown(skillID, 500*time.Millisecond, now)

	hook := s.hookRequestSkill(ctx)
	res := hook(&hostproxy.PacketContext{
		Name: "StartInstanceSkill",
		Raw:  []byte("raw-cast-payload"),
		Fields: map[string]any{
			"skillId": int32(skillID),
			"press":   false,
		},
	})
	assert.True(t, res.Drop, "a cooldown-refused cast must be dropped from the live packet stream")
	require.Equal(t, 1, s.queue.Len(), "expected the cast to be queued instead of discarded")

	// ping defaults to 88ms, so sendAt = cooldown end (now+500ms) - 88ms.
	releaseAt := now.Add(500 * time.Millisecond).Add(-88 * time.Millisecond).Add(time.Millisecond)
	s.do(ctx, func() { s.flushQueue(releaseAt) })

	sent, ok := sender.find("StartInstanceSkill")
	require.True(t, ok, "expected the queued packet to be flushed to the client")
	assert.Equal(t, int32(skillID), sent.fields["skillId"])
	assert.Equal(t, 0, s.queue.Len(), "expected the queue to be drained after flush")
}

// TestCooldownResetCancelsQueuedCast covers the CrestMessage interaction:
// resetting a skill's cooldown before its scheduled release cancels the
// queued packet instead of leaving it to fire late.
func TestCooldownResetCancelsQueuedCast(t *testing.T) {
	s, _, ctx, cancel := newTestSession(t)
	defer cancel()

	const skillID = catalog.SkillID(2001)
	s.catalog.Load("test", []*catalog.Record{normalRecord(skillID)}, nil)

	now := time.Now()
	s.cooldowns.StartCooldown(skillID, 500*time.Millisecond, now)

	hook := s.hookRequestSkill(ctx)
	hook(&hostproxy.PacketContext{
		Name:   "StartInstanceSkill",
		Fields: map[string]any{"skillId": int32(skillID), "press": false},
	})
	require.Equal(t, 1, s.queue.Len())

	crestHook := s.hookCrestMessage(ctx)
	crestHook(&hostproxy.PacketContext{
		Name:   "CrestMessage",
		Fields: map[string]any{"crestType": int32(6), "skillId": int32(skillID)},
	})

	assert.Equal(t, 0, s.queue.Len(), "expected the crest reset to cancel the queued cast")
}

// TestRequestSkillDispatchesAndGunnerProjectileReconciles covers the
// fake-vs-real projectile reconciliation scenario end to end: the
// outbound cast request is accepted, the Dispatcher emits a fake
// StartUserProjectile, and the later real StartUserProjectile/
// HitUserProjectile hooks reconcile against it.
func TestRequestSkillDispatchesAndGunnerProjectileReconciles(t *testing.T) {
	s, sender, ctx, cancel := newTestSession(t)
	defer cancel()

	const skillID = catalog.SkillID(60100) // base 6 -> gunner projectile family
	s.catalog.Load("test", []*catalog.Record{normalRecord(skillID)}, nil)

	hook := s.hookRequestSkill(ctx)
	res := hook(&hostproxy.PacketContext{
		Name: "StartInstanceSkill",
		Fields: map[string]any{
			"skillId": int32(skillID),
			"press":   false,
			"loc":     nil,
			"w":       0.0,
		},
	})
	require.False(t, res.Drop, "expected the fresh cast to be accepted")

	fakePkt, ok := sender.find("StartUserProjectile")
	require.True(t, ok, "expected a fake StartUserProjectile to be emitted for a gunner-family skill")
	fakeID, _ := fakePkt.fields["projectileId"].(int64)
	require.NotZero(t, fakeID)

	// The server can only ever echo back the skill id it was asked to
	// cast — never the locally-synthesized fake projectile id, which is
	// never sent upstream. Reconciliation must key off skillId.
	startHook := s.hookRealProjectileStart(ctx)
	startRes := startHook(&hostproxy.PacketContext{
		Name: "StartUserProjectile",
		Fields: map[string]any{
			"skillId":      int32(skillID),
			"projectileId": int32(9999),
		},
	})
	assert.True(t, startRes.Drop, "the real StartUserProjectile must be suppressed once reconciled")

	hitHook := s.hookRealProjectileHit(ctx)
	hitHook(&hostproxy.PacketContext{
		Name:   "HitUserProjectile",
		Raw:    []byte("hit-payload"),
		Fields: map[string]any{"projectileId": int32(9999)},
	})

	hitPkt, ok := sender.find("HitUserProjectile")
	require.True(t, ok, "expected the reconciled hit to be forwarded to the client")
	assert.Equal(t, int64(9999), hitPkt.fields["projectileId"])
}

// TestHandleCommandUpdatesDashDelayWithoutResettingDispatcher covers the
// `<ns> dash <n>` command: it must update the Dispatcher's configured
// delay in place rather than rebuilding the Dispatcher (which would
// discard its pending projectile/teleport state).
func TestHandleCommandUpdatesDashDelayWithoutResettingDispatcher(t *testing.T) {
	s, _, ctx, cancel := newTestSession(t)
	defer cancel()

	require.Equal(t, 25*time.Millisecond, s.dispatch.DashDelay())

	res, err := s.HandleCommand(ctx, "dash 40")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 40*time.Millisecond, s.dispatch.DashDelay())
	assert.Equal(t, 40, s.cfg.DashMs)
}

// TestAbnormalityBeginTearsDownPriorInstance covers the double-
// subscription on AbnormalityBegin: the lower-order handler tears down
// any existing instance of the same abnormality before the real
// begin-handler installs the new one.
func TestAbnormalityBeginTearsDownPriorInstance(t *testing.T) {
	s, _, ctx, cancel := newTestSession(t)
	defer cancel()

	teardown := s.hookAbnormalityEnd(ctx)
	begin := s.hookAbnormalityBegin(ctx)

	pc := &hostproxy.PacketContext{
		Name:   "AbnormalityBegin",
		Fields: map[string]any{"abnormalityId": int32(500), "status": int32(0)},
	}
	teardown(pc)
	begin(pc)
	require.NotNil(t, s.fx.Get(500), "expected the abnormality to be active after begin")

	// A re-begin of the same id must not leave two stacked instances —
	// the teardown handler runs again at order 0 before begin reapplies.
	teardown(pc)
	begin(pc)
	assert.NotNil(t, s.fx.Get(500), "expected the abnormality still active after re-begin")
}
