package dispatch

import (
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

// emitFakeProjectile sends a synthesized StartUserProjectile for a
// Gunner-family skill and opens a pendingProjectile entry, indexed by
// skillID, to buffer hits until the server's real projectile id is
// known. Only the host's proxy hand (this side) ever learns the fake
// id; it is never sent upstream, so reconciliation must key off
// something the server itself echoes back — the cast's skill id.
func (d *Dispatcher) emitFakeProjectile(skillID catalog.SkillID, now time.Time) {
	d.nextFakeProjID++
	fakeID := d.nextFakeProjID
	d.projectiles[fakeID] = &pendingProjectile{skillID: skillID}
	d.pendingBySkill[skillID] = fakeID
	d.sender.SendToClient("StartUserProjectile", map[string]any{
		"skillId":      int32(skillID),
		"projectileId": fakeID,
		"fake":         true,
	})
}

// ObserveHit handles an inbound HitUserProjectile carrying the
// server's real projectile id. If that id has already been reconciled
// against a fake one, the hit is forwarded rewritten to the real id;
// otherwise, per the single-pending-projectile invariant, it is
// buffered against whatever Gunner cast is still awaiting its real
// StartUserProjectile, to tolerate a Hit racing ahead of Start in
// transit.
func (d *Dispatcher) ObserveHit(realID int64, payload []byte) {
	if fakeID, ok := d.realToFake[realID]; ok {
		if p, ok := d.projectiles[fakeID]; ok && p.realKnown {
			d.sender.SendToClient("HitUserProjectile", map[string]any{
				"projectileId": p.realID,
				"payload":      payload,
			})
			return
		}
	}
	for _, p := range d.projectiles {
		if !p.realKnown {
			p.bufferedHit = append(p.bufferedHit, payload)
			return
		}
	}
}

// ObserveRealStart resolves the server's real StartUserProjectile for
// skillID's still-pending fake projectile, recording realID against it,
// flushing any buffered hits re-sent under realID, and reporting
// whether the real StartUserProjectile packet itself should be
// suppressed (true — the fake one already played this role for the
// client). Looked up by skillID rather than a fake id supplied on the
// packet, since the fake id was never sent upstream for the server to
// echo back.
func (d *Dispatcher) ObserveRealStart(skillID catalog.SkillID, realID int64) (suppress bool) {
	fakeID, ok := d.pendingBySkill[skillID]
	if !ok {
		return false
	}
	delete(d.pendingBySkill, skillID)
	p, ok := d.projectiles[fakeID]
	if !ok {
		return false
	}
	p.realID = realID
	p.realKnown = true
	d.realToFake[realID] = fakeID
	for _, payload := range p.bufferedHit {
		d.sender.SendToClient("HitUserProjectile", map[string]any{
			"projectileId": realID,
			"payload":      payload,
		})
	}
	p.bufferedHit = nil
	return true
}

// CleanupProjectiles discards resolved projectile entries, along with
// their realToFake index entry, run on the session's periodic cleanup
// tick alongside network.Monitor.Cleanup.
func (d *Dispatcher) CleanupProjectiles() {
	for id, p := range d.projectiles {
		if p.realKnown && len(p.bufferedHit) == 0 {
			delete(d.realToFake, p.realID)
			delete(d.projectiles, id)
		}
	}
}
