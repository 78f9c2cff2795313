// Package dispatch implements the Emulation Dispatcher: it consumes a
// decision.Transition and emits the synthesized client-bound packets
// that make a skill visually start, chain, move, or dash before the
// server's own packets arrive.
//
// Grounded on internal/gameserver/serverpackets/magic_skill_*.go for
// the "one typed struct per emitted packet kind" shape, and
// internal/gameserver/broadcast.go for "single send path, log and
// continue on a per-recipient error" — collapsed here to a single
// recipient (the proxy's own client) and a hostproxy.Sender instead of
// a socket, since the concrete wire codec is out of scope.
package dispatch

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/decision"
	"github.com/udisondev/l2latency/internal/hostproxy"
	"github.com/udisondev/l2latency/internal/network"
)

// Vec3 is a world position. The host owns the actual coordinate
// system; the dispatcher only ever adds/rotates offsets relative to
// values the host supplies.
type Vec3 struct {
	X, Y, Z float64
}

// Actor is the caster's position and facing at cast time.
type Actor struct {
	Loc Vec3
	W   float64 // facing angle, radians
}

// TargetInfo is the cast target's position, facing, and radius — only
// populated for catchBack-type skills, which land behind the target.
type TargetInfo struct {
	GameID int64
	Loc    Vec3
	W      float64
	Radius float64
}

// NearbyPlayer is a candidate blocker for a shortTel teleport arc.
type NearbyPlayer struct {
	Loc      Vec3
	Relation int32 // host-defined relation code; blocking relations are host policy
}

const (
	shortTelMaxDistance = 334.0
	shortTelBlockRadius = 5.0
	shortTelBlockArc    = 2.0 // radians, ±2 from the teleport bearing

	cannotStartSkillSuppressWindow = 100 * time.Millisecond
)

// gunnerProjectileSubs are the base-43 subs whose StartUserProjectile
// is faked and reconciled against the server's real one; every base-6
// skill qualifies as well (see isGunnerProjectileSkill).
var gunnerProjectileSubs = map[int32]struct{}{1: {}, 3: {}, 30: {}, 50: {}}

func isGunnerProjectileSkill(base, sub int32) bool {
	if base == 6 {
		return true
	}
	return base == 43 && hasSub(sub)
}

func hasSub(sub int32) bool {
	_, ok := gunnerProjectileSubs[sub]
	return ok
}

// pendingProjectile buffers HitUserProjectile events observed against
// a fake id until the real StartUserProjectile arrives.
type pendingProjectile struct {
	skillID     catalog.SkillID
	realID      int64
	realKnown   bool
	bufferedHit [][]byte
}

// Dispatcher emits synthesized packets and reconciles them against
// server-authoritative ones. Not safe for concurrent use — all calls
// happen on the session's single event-loop goroutine.
type Dispatcher struct {
	sender  hostproxy.Sender
	actions *action.Tracker
	monitor *network.Monitor

	dashDelay time.Duration // per-class configured delay before InstantDash/InstantMove

	actionCounter uint64

	projectiles    map[int64]*pendingProjectile // fakeID -> entry
	pendingBySkill map[catalog.SkillID]int64    // skillID -> fakeID, cleared once reconciled
	realToFake     map[int64]int64              // realID -> fakeID, populated once reconciled
	nextFakeProjID int64

	teleportStartedAt time.Time

	resourceName map[int32]string // job -> resource name for the stamina-message rewrite
}

// New creates a Dispatcher. dashDelay is the configured per-class
// delay (Config.DashMs, default 25ms) before InstantDash/
// InstantMove is scheduled for dash/catchBack/shortTel skills.
func New(sender hostproxy.Sender, actions *action.Tracker, monitor *network.Monitor, dashDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		sender:         sender,
		actions:        actions,
		monitor:        monitor,
		dashDelay:      dashDelay,
		projectiles:    make(map[int64]*pendingProjectile),
		pendingBySkill: make(map[catalog.SkillID]int64),
		realToFake:     make(map[int64]int64),
		resourceName: map[int32]string{
			jobGunner:   "Ammo",
			jobBrawler:  "Stamina",
			jobNinja:    "Chakra",
			jobValkyrie: "Stamina",
		},
	}
}

// Job codes consulted by RewriteStaminaMessage. Matches
// internal/decision's jobWarrior/jobLancer/jobBrawler numbering.
const (
	jobGunner   = 15
	jobNinja    = 25
	jobValkyrie = 22
	jobBrawler  = 10
)

// nextActionID returns the next monotonically increasing action id
// used to correlate a faked ActionStage with its eventual ActionEnd.
func (d *Dispatcher) nextActionID() uint64 {
	d.actionCounter++
	return d.actionCounter
}

// ScheduledMove is an InstantDash/InstantMove Dispatch computed but
// left for the caller to actually send after DashDelay — the per-class
// configured delay lives on the session's scheduler, not here, since
// Dispatch itself must never block the single event-loop goroutine.
type ScheduledMove struct {
	PacketName string
	Fields     map[string]any
}

// Dispatch applies desc to the emission surface: emitting ActionStage/
// ConnectSkillArrow/StartUserProjectile immediately, and computing (but
// not sending) the InstantDash/InstantMove for dash/catchBack/shortTel
// skills — the caller schedules that send after DashDelay().
// caster is the current position/facing; target is nil unless the
// transition targets another entity (catchBack).
func (d *Dispatcher) Dispatch(desc decision.Transition, rec *catalog.Record, caster Actor, target *TargetInfo, nearby []NearbyPlayer, now time.Time) (*ScheduledMove, error) {
	if desc.Flags.Failed {
		return nil, nil
	}

	stage := 0
	actionID := d.nextActionID()

	dest := d.computeDest(rec, stage, caster, target)

	fields := map[string]any{
		"skillId":     int32(desc.SkillID),
		"stage":       stage,
		"loc":         caster.Loc,
		"w":           caster.W,
		"speedStage":  d.actions.Current().Speed.Stage,
		"speedProj":   d.actions.Current().Speed.Projectile,
		"actionId":    actionID,
		"effectScale": d.actions.Current().Effects.EffectScale,
		"dest":        dest,
		"animSeq":     rec.AnimSeq,
	}
	if err := d.sender.SendToClient("ActionStage", fields); err != nil {
		return nil, err
	}
	d.monitor.RecordFakedStage(desc.SkillID, stage, now)

	d.actions.BeginFakeStage(action.Stage{
		SkillID:   desc.SkillID,
		Stage:     stage,
		StartTime: now,
		StageTime: now,
		AnimSeq:   rec.AnimSeq,
		ID:        actionID,
	})

	if desc.Flags.Lockon && rec.ArrowChain {
		d.sender.SendToClient("ConnectSkillArrow", map[string]any{"skillId": int32(desc.SkillID)})
	}

	if isGunnerProjectileSkill(rec.ID.Base(), rec.ID.Sub()) {
		d.emitFakeProjectile(desc.SkillID, now)
	}

	var move *ScheduledMove
	switch rec.Type {
	case catalog.TypeDash, catalog.TypeCatchBack, catalog.TypeShortTel:
		if stage == 0 || stage == 1 {
			if name, moveFields, ok := d.computeMoveOrDash(rec, caster, target, nearby); ok {
				move = &ScheduledMove{PacketName: name, Fields: moveFields}
			}
		}
	}

	return move, nil
}

// SendScheduledMove actually sends a ScheduledMove Dispatch computed
// earlier; call after waiting DashDelay(). For a shortTel move,
// records the teleport start time the Bugfix layer's
// SuppressCannotStartSkill consults.
func (d *Dispatcher) SendScheduledMove(rec *catalog.Record, move *ScheduledMove, now time.Time) error {
	if move == nil {
		return nil
	}
	if rec.Type == catalog.TypeShortTel {
		d.teleportStartedAt = now
	}
	return d.sender.SendToClient(move.PacketName, move.Fields)
}

// DashDelay is the configured per-class delay the session's scheduler
// waits before actually sending the InstantDash/InstantMove Dispatch
// computed, matching the host's dash/delay config.
func (d *Dispatcher) DashDelay() time.Duration { return d.dashDelay }

// SetDashDelay updates the configured dash delay, used when the `<ns>
// dash <n>` command changes it at runtime.
func (d *Dispatcher) SetDashDelay(delay time.Duration) { d.dashDelay = delay }

// EmitEnd emits a faked ActionEnd, following it with an InstantMove
// for teleport-shaped types per spec.md §4.I.
func (d *Dispatcher) EmitEnd(desc decision.Transition, rec *catalog.Record, caster Actor, now time.Time) error {
	fields := map[string]any{
		"skillId":  int32(desc.SkillID),
		"type":     desc.Type,
		"loc":      caster.Loc,
		"w":        caster.W,
		"actionId": d.actions.Current().Stage.ID,
	}
	if err := d.sender.SendToClient("ActionEnd", fields); err != nil {
		return err
	}
	d.monitor.RecordFakedEnd(desc.SkillID, now)
	d.actions.EndFake(desc.SkillID, now)

	if rec.Type == catalog.TypeShortTel {
		return d.sender.SendToClient("InstantMove", map[string]any{"loc": caster.Loc, "w": caster.W})
	}
	return nil
}

func (d *Dispatcher) computeDest(rec *catalog.Record, stage int, caster Actor, target *TargetInfo) Vec3 {
	if stage < 0 || stage >= len(rec.UseDest) || !rec.UseDest[stage] {
		return caster.Loc
	}
	switch rec.Type {
	case catalog.TypeCatchBack:
		if target != nil {
			return computeCatchBack(*target)
		}
	}
	var dist, dir float64
	if stage < len(rec.Distance) {
		dist = rec.Distance[stage]
	}
	if stage < len(rec.DirectionModifier) {
		dir = rec.DirectionModifier[stage]
	}
	return translate(caster.Loc, caster.W+dir, dist)
}

// computeCatchBack places the caster behind target: target's position
// translated by its radius in the direction target.W+π.
func computeCatchBack(target TargetInfo) Vec3 {
	return translate(target.Loc, target.W+math.Pi, target.Radius)
}

// computeShortTel finds the caster's teleport destination, capped at
// shortTelMaxDistance along the caster's facing. ok is false if the
// arc is blocked: a nearby player within shortTelBlockRadius, or
// within ±shortTelBlockArc radians of the bearing between
// shortTelBlockRadius and shortTelMaxDistance+shortTelBlockRadius.
func computeShortTel(caster Actor, nearby []NearbyPlayer) (Vec3, bool) {
	dest := translate(caster.Loc, caster.W, shortTelMaxDistance)
	for _, p := range nearby {
		d := distance(caster.Loc, p.Loc)
		if d < shortTelBlockRadius {
			return Vec3{}, false
		}
		bearing := angleTo(caster.Loc, p.Loc)
		diff := angleDiff(bearing, caster.W)
		if d >= shortTelBlockRadius && d <= shortTelMaxDistance+shortTelBlockRadius && math.Abs(diff) <= shortTelBlockArc {
			return Vec3{}, false
		}
	}
	return dest, true
}

func translate(from Vec3, angle, dist float64) Vec3 {
	return Vec3{X: from.X + dist*math.Cos(angle), Y: from.Y + dist*math.Sin(angle), Z: from.Z}
}

func distance(a, b Vec3) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func angleTo(from, to Vec3) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}

func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// computeMoveOrDash computes the InstantDash/InstantMove matching
// rec's type and the destination per the catchBack/shortTel rules,
// for the caller to send after DashDelay via SendScheduledMove.
func (d *Dispatcher) computeMoveOrDash(rec *catalog.Record, caster Actor, target *TargetInfo, nearby []NearbyPlayer) (name string, fields map[string]any, ok bool) {
	switch rec.Type {
	case catalog.TypeDash:
		if target == nil {
			return "", nil, false
		}
		return "InstantDash", map[string]any{
			"gameId": target.GameID, "loc": caster.Loc, "w": caster.W,
		}, true
	case catalog.TypeCatchBack:
		if target == nil {
			return "", nil, false
		}
		dest := computeCatchBack(*target)
		return "InstantDash", map[string]any{
			"gameId": target.GameID, "loc": dest, "w": caster.W,
		}, true
	case catalog.TypeShortTel:
		dest, ok := computeShortTel(caster, nearby)
		if !ok {
			slog.Debug("shortTel blocked by nearby player", "skill", rec.ID)
			return "", nil, false
		}
		return "InstantMove", map[string]any{"loc": dest, "w": caster.W}, true
	}
	return "", nil, false
}

// SuppressCannotStartSkill reports whether a CannotStartSkill system
// message arriving at now should be dropped: the bugfix layer
// suppresses these for 100ms after a teleport action begins, since the
// server routinely emits a stale refusal racing the just-applied
// teleport.
func (d *Dispatcher) SuppressCannotStartSkill(now time.Time) bool {
	return !d.teleportStartedAt.IsZero() && now.Sub(d.teleportStartedAt) <= cannotStartSkillSuppressWindow
}

// RewriteStaminaMessage substitutes the class-appropriate resource
// name into a low-resource system message for job, if one is known;
// otherwise msg is returned unchanged.
func (d *Dispatcher) RewriteStaminaMessage(job int32, msg string) string {
	name, ok := d.resourceName[job]
	if !ok {
		return msg
	}
	return strings.ReplaceAll(msg, "Stamina", name)
}
