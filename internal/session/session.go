// Package session wires every per-character component (catalog,
// network monitor, cooldown/action/effects trackers, crowd-control
// gate, decision engine, packet queue, emulation dispatcher, config
// store, command dispatcher) into one owning object and runs the
// background loops that keep their timers moving.
//
// Grounded on cmd/gameserver/main.go's errgroup.WithContext wiring of
// independent background services (AI ticker, visibility manager,
// attack-stance manager, each its own g.Go), adapted from "many
// independently-locked managers" to "one single-goroutine event loop
// plus three tickers that all funnel their work through it" per
// spec.md §5's single-logical-thread requirement — the one piece no
// teacher manager needed, since the teacher's managers each guard
// their own state with their own mutex instead of sharing one
// sequencing point.
package session

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/cc"
	"github.com/udisondev/l2latency/internal/command"
	"github.com/udisondev/l2latency/internal/config"
	"github.com/udisondev/l2latency/internal/cooldown"
	"github.com/udisondev/l2latency/internal/decision"
	"github.com/udisondev/l2latency/internal/dispatch"
	"github.com/udisondev/l2latency/internal/effects"
	"github.com/udisondev/l2latency/internal/hostproxy"
	"github.com/udisondev/l2latency/internal/network"
	"github.com/udisondev/l2latency/internal/queue"
)

const (
	pingInterval    = 8 * time.Second
	queueThrottle   = 10 * time.Millisecond
	cleanupInterval = 5 * time.Minute
)

// Session owns every mutable component for one character/connection
// and is the only thing in this module ever mutated off of its own
// event-loop goroutine — every public entry point funnels through
// do(), matching spec.md §5's "total order of observed events".
type Session struct {
	cfg        config.Config
	configPath string

	catalog   *catalog.Catalog
	monitor   *network.Monitor
	cooldowns *cooldown.Tracker
	actions   *action.Tracker
	fx        *effects.View
	gate      *cc.Gate
	engine    *decision.Engine
	queue     *queue.Queue
	dispatch  *dispatch.Dispatcher
	commands  *command.Registry

	job        int32
	isSorcerer bool
	hasWeapon  bool
	stamina    float64

	sender hostproxy.Sender

	cmds chan func()
}

// New builds a Session for a character of the given class. isWarrior
// and isSorcerer gate the job-specific rules effects.View and
// decision.Engine apply; sender is the host's outbound-injection
// surface the Dispatcher and queue flush use.
func New(cfg config.Config, configPath string, job int32, isWarrior, isSorcerer bool, sender hostproxy.Sender) *Session {
	actions := action.New()
	cooldowns := cooldown.New()
	fx := effects.New(isWarrior)
	gate := cc.New()
	monitor := network.New()
	cat := catalog.New()
	engine := decision.New(cat, actions, cooldowns, fx, gate, monitor, job, cfg.WiggleRoomBonus)
	disp := dispatch.New(sender, actions, monitor, time.Duration(cfg.DashMs)*time.Millisecond)
	q := queue.New(queue.DefaultCap)

	s := &Session{
		cfg:        cfg,
		configPath: configPath,
		catalog:    cat,
		monitor:    monitor,
		cooldowns:  cooldowns,
		actions:    actions,
		fx:         fx,
		gate:       gate,
		engine:     engine,
		queue:      q,
		dispatch:   disp,
		commands:   command.NewRegistry(),
		job:        job,
		isSorcerer: isSorcerer,
		hasWeapon:  true,
		sender:     sender,
		cmds:       make(chan func()),
	}
	cooldowns.OnReset(func(skillID catalog.SkillID) { s.queue.Cancel(skillID) })
	return s
}

// Catalog exposes the session's catalog so the host's class-load step
// can populate it via Load.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// do enqueues fn onto the event loop and blocks until it has run, or
// ctx is cancelled first. This is the synchronous-call pattern that
// lets a Hook — which must return its HookResult immediately — still
// have its logic execute on the single owning goroutine. A panic in fn
// is recovered and logged, so the hook returns whatever result fn had
// set before panicking (Pass if none) and the event loop keeps running.
func (s *Session) do(ctx context.Context, fn func()) {
	done := make(chan struct{})
	run := func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in event-loop callback", "panic", r)
			}
		}()
		fn()
	}
	select {
	case s.cmds <- run:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Run starts the event loop and the three background tickers (ping,
// queue throttle, cleanup), returning when ctx is cancelled or any
// loop fails.
func (s *Session) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.loop(gctx) })
	g.Go(func() error { return s.pingLoop(gctx) })
	g.Go(func() error { return s.queueLoop(gctx) })
	g.Go(func() error { return s.cleanupLoop(gctx) })

	return g.Wait()
}

func (s *Session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.cmds:
			fn()
		}
	}
}

func (s *Session) pingLoop(ctx context.Context) error {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			s.do(ctx, func() {
				s.monitor.Cycle()
				if err := s.sender.SendToClient("RequestGameStatPing", nil); err != nil {
					slog.Warn("failed to send ping request", "error", err)
					return
				}
				s.monitor.BeginPingRequest(now)
			})
		}
	}
}

func (s *Session) queueLoop(ctx context.Context) error {
	t := time.NewTicker(queueThrottle)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			s.do(ctx, func() { s.flushQueue(now) })
		}
	}
}

func (s *Session) cleanupLoop(ctx context.Context) error {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			s.do(ctx, func() {
				s.monitor.Cleanup(now)
				s.dispatch.CleanupProjectiles()
			})
		}
	}
}

// enqueueCooldownGatedCast implements the Packet Queue's admission
// rule (spec.md §4.H): a cast refused purely on cooldown grounds is
// held, not dropped, scheduled for sendAt = max(now, cooldown.ends −
// ping.min) and expiring 5s later, then the queue is kicked
// immediately in case it's already due.
func (s *Session) enqueueCooldownGatedCast(skillID catalog.SkillID, pc *hostproxy.PacketContext, now time.Time) {
	entry := s.cooldowns.GetData(skillID, false)
	if entry == nil {
		return
	}
	sendAt := entry.Ends.Add(-time.Duration(s.monitor.Ping()) * time.Millisecond)
	if sendAt.Before(now) {
		sendAt = now
	}
	s.queue.Add(queue.Packet{
		SkillID: skillID,
		Payload: pc.Raw,
		Version: int32(pc.Version),
		SendAt:  sendAt,
	}, now)
	s.flushQueue(now)
}

// flushQueue sends every packet the queue reports ready at now. Called
// by the queue ticker and, per spec.md §4.H, immediately after every
// Add.
func (s *Session) flushQueue(now time.Time) {
	for _, p := range s.queue.Tick(now) {
		if err := s.sender.SendToClient("StartInstanceSkill", map[string]any{
			"skillId": int32(p.SkillID),
			"kind":    p.Kind,
			"version": p.Version,
			"payload": p.Payload,
		}); err != nil {
			slog.Warn("failed to flush queued packet", "skill", p.SkillID, "error", err)
		}
	}
}

// scheduleMove sends move after the Dispatcher's configured DashDelay,
// funnelled back through the event loop so the actual send still
// happens on the single owning goroutine — Dispatch itself must never
// block waiting for this delay to elapse.
func (s *Session) scheduleMove(ctx context.Context, rec *catalog.Record, move *dispatch.ScheduledMove) {
	if move == nil {
		return
	}
	time.AfterFunc(s.dispatch.DashDelay(), func() {
		s.do(ctx, func() {
			if err := s.dispatch.SendScheduledMove(rec, move, time.Now()); err != nil {
				slog.Warn("failed to send scheduled move", "error", err)
			}
		})
	})
}

// Config returns a copy of the current configuration, for the host to
// inspect (e.g. to decide whether to register hooks at all when
// Enabled is false).
func (s *Session) Config() config.Config { return s.cfg }

// Dispatch a command line through the Command Dispatcher, persisting
// the resulting config to configPath.
func (s *Session) HandleCommand(ctx context.Context, line string) (command.Result, error) {
	var res command.Result
	var err error
	s.do(ctx, func() {
		res, err = s.commands.Dispatch(&s.cfg, line)
		if err == nil {
			s.dispatch.SetDashDelay(time.Duration(s.cfg.DashMs) * time.Millisecond)
			if saveErr := s.cfg.Save(s.configPath); saveErr != nil {
				slog.Warn("failed to save config", "error", saveErr)
			}
		}
	})
	return res, err
}
