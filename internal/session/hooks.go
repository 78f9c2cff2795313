package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/cooldown"
	"github.com/udisondev/l2latency/internal/decision"
	"github.com/udisondev/l2latency/internal/dispatch"
	"github.com/udisondev/l2latency/internal/effects"
	"github.com/udisondev/l2latency/internal/hostproxy"
)

// RegisterHooks subscribes every packet hook the core reacts to onto
// registry, wiring each named packet (§6) to the component that owns
// its side effect. All hook bodies run inside s.do so mutation always
// happens on the single event-loop goroutine even though the host may
// invoke hooks from any goroutine.
func (s *Session) RegisterHooks(ctx context.Context, registry hostproxy.Registry) {
	registry.Subscribe("StartCombo/TargetedSkill", 1, 0, hostproxy.Outbound, s.hookRequestSkill(ctx))
	registry.Subscribe("StartInstanceSkill", 1, 0, hostproxy.Outbound, s.hookRequestSkill(ctx))

	registry.Subscribe("StartCooltimeSkill", 1, 0, hostproxy.Inbound, s.hookStartCooltime(ctx))
	registry.Subscribe("DecreaseCooltimeSkill", 1, 0, hostproxy.Inbound, s.hookDecreaseCooltime(ctx))
	registry.Subscribe("CrestMessage", 1, 0, hostproxy.Inbound, s.hookCrestMessage(ctx))

	registry.Subscribe("AbnormalityBegin", 1, 0, hostproxy.Inbound, s.hookAbnormalityEnd(ctx))
	registry.Subscribe("AbnormalityBegin", 1, 1, hostproxy.Inbound, s.hookAbnormalityBegin(ctx))
	registry.Subscribe("AbnormalityEnd", 1, 0, hostproxy.Inbound, s.hookAbnormalityEnd(ctx))

	registry.Subscribe("ActionStage", 1, 0, hostproxy.Inbound, s.hookRealActionStage(ctx))
	registry.Subscribe("ActionEnd", 1, 0, hostproxy.Inbound, s.hookRealActionEnd(ctx))

	registry.Subscribe("ResponseGameStatPong", 1, 0, hostproxy.Inbound, s.hookPong(ctx))

	registry.Subscribe("StartUserProjectile", 1, 0, hostproxy.Inbound, s.hookRealProjectileStart(ctx))
	registry.Subscribe("HitUserProjectile", 1, 0, hostproxy.Inbound, s.hookRealProjectileHit(ctx))

	registry.Subscribe("CannotStartSkill", 1, 0, hostproxy.Inbound, s.hookCannotStartSkill(ctx))
	registry.Subscribe("SystemMessage", 1, 0, hostproxy.Inbound, s.hookSystemMessage(ctx))

	registry.Subscribe("PlayerStatUpdate", 1, 0, hostproxy.Inbound, s.hookPlayerStatUpdate(ctx))

	registry.Subscribe("ReturnToLobby", 1, 0, hostproxy.Inbound, s.hookReturnToLobby(ctx))
}

func vec3From(fields map[string]any, key string) dispatch.Vec3 {
	if v, ok := fields[key].(dispatch.Vec3); ok {
		return v
	}
	return dispatch.Vec3{}
}

func float64From(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func int32From(fields map[string]any, key string) int32 {
	switch v := fields[key].(type) {
	case int32:
		return v
	case int:
		return int32(v)
	case float64:
		return int32(v)
	}
	return 0
}

func boolFrom(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

// hookRequestSkill reacts to an outbound skill-cast request: runs the
// Decision Engine, drops the packet outright on refusal, and otherwise
// has the Dispatcher emit the faked stage/arrow/projectile packets,
// scheduling any computed dash/catchBack/shortTel move for later.
func (s *Session) hookRequestSkill(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		if !s.cfg.Enabled {
			return hostproxy.Pass
		}
		var result hostproxy.HookResult
		s.do(ctx, func() {
			now := time.Now()
			req := decision.Request{
				SkillID: catalog.SkillID(int32From(pc.Fields, "skillId")),
				Press:   boolFrom(pc.Fields, "press"),
			}
			player := decision.PlayerState{
				Stamina:    s.stamina,
				HasWeapon:  s.hasWeapon,
				Job:        s.job,
				IsSorcerer: s.isSorcerer,
			}
			desc := s.engine.Decide(req, player, now)
			if desc.Flags.Failed {
				if desc.IsCooldownRefusal() {
					s.enqueueCooldownGatedCast(req.SkillID, pc, now)
				}
				result = hostproxy.HookResult{Drop: true}
				return
			}

			rec := s.catalog.Get(desc.SkillID)
			if rec == nil {
				return
			}

			caster := dispatch.Actor{Loc: vec3From(pc.Fields, "loc"), W: float64From(pc.Fields, "w")}
			var target *dispatch.TargetInfo
			if boolFrom(pc.Fields, "hasTarget") {
				target = &dispatch.TargetInfo{
					GameID: int64(int32From(pc.Fields, "targetGameId")),
					Loc:    vec3From(pc.Fields, "targetLoc"),
					W:      float64From(pc.Fields, "targetW"),
					Radius: float64From(pc.Fields, "targetRadius"),
				}
			}

			move, err := s.dispatch.Dispatch(desc, rec, caster, target, nil, now)
			if err != nil {
				return
			}
			s.scheduleMove(ctx, rec, move)
			s.actions.RecordSkillUse(now)
		})
		return result
	}
}

func (s *Session) hookStartCooltime(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			now := time.Now()
			skillID := catalog.SkillID(int32From(pc.Fields, "skillId"))
			durationMs := int32From(pc.Fields, "cooldown")
			nextStackMs := int32From(pc.Fields, "nextStackCooldown")

			rewritten, rewrittenStack := cooldown.RewriteCooldown(
				time.Duration(durationMs)*time.Millisecond,
				time.Duration(nextStackMs)*time.Millisecond,
				s.monitor.Ping(), s.monitor.Jitter())
			pc.Fields["cooldown"] = int32(rewritten / time.Millisecond)
			pc.Fields["nextStackCooldown"] = int32(rewrittenStack / time.Millisecond)

			s.cooldowns.StartCooldown(skillID, time.Duration(durationMs)*time.Millisecond, now)
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookDecreaseCooltime(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			skillID := catalog.SkillID(int32From(pc.Fields, "skillId"))
			delta := time.Duration(int32From(pc.Fields, "delta")) * time.Millisecond
			s.cooldowns.DecreaseCooldown(skillID, delta)
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookCrestMessage(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			now := time.Now()
			crestType := int32From(pc.Fields, "crestType")
			skillID := catalog.SkillID(int32From(pc.Fields, "skillId"))
			if s.cooldowns.HandleCrestMessage(crestType, skillID, now) {
				if err := s.sender.SendToClient("DecreaseCooltimeSkill", map[string]any{
					"skillId": int32(skillID),
					"delta":   int32(0),
				}); err != nil {
					slog.Warn("failed to inject cooldown decrease after crest reset", "skill", skillID, "error", err)
				}
			}
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookAbnormalityBegin(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			s.fx.Begin(&effects.State{
				ID:        int32From(pc.Fields, "abnormalityId"),
				BeginTime: time.Now(),
				Status:    uint32(int32From(pc.Fields, "status")),
			})
		})
		return hostproxy.Pass
	}
}

// hookAbnormalityEnd also runs as the lower-order handler on
// AbnormalityBegin, tearing down any prior instance before the
// begin-handler installs the new one — the Open Question 5 decision.
func (s *Session) hookAbnormalityEnd(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			id := int32From(pc.Fields, "abnormalityId")
			s.fx.TearDownOnRebegin(id)
			if pc.Name == "AbnormalityEnd" {
				s.fx.End(id)
			}
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookRealActionStage(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			now := time.Now()
			skillID := catalog.SkillID(int32From(pc.Fields, "skillId"))
			stage := int(int32From(pc.Fields, "stage"))
			s.monitor.ObserveRealStage(skillID, stage, now)
			s.actions.BeginServerStage(action.Stage{
				SkillID:   skillID,
				Stage:     stage,
				StartTime: now,
				StageTime: now,
			}, s.fx.GetAppliedEffects(s.catalog.Get(skillID)))
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookRealActionEnd(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			now := time.Now()
			skillID := catalog.SkillID(int32From(pc.Fields, "skillId"))
			s.monitor.ObserveRealEnd(skillID, now)
			s.actions.EndServer(skillID, now)
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookPong(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() { s.monitor.CompletePingRequest(time.Now()) })
		return hostproxy.Pass
	}
}

// hookRealProjectileStart reconciles the server's authoritative
// StartUserProjectile against the fake one the Dispatcher already
// emitted for this skill, suppressing the real packet once reconciled.
// Keyed by skillId, not a fake id the packet could never legitimately
// carry — the fake id is synthesized locally and never sent upstream,
// so the server has no way to echo it back.
func (s *Session) hookRealProjectileStart(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		var result hostproxy.HookResult
		s.do(ctx, func() {
			skillID := catalog.SkillID(int32From(pc.Fields, "skillId"))
			realID := int64(int32From(pc.Fields, "projectileId"))
			if s.dispatch.ObserveRealStart(skillID, realID) {
				result = hostproxy.HookResult{Drop: true}
			}
		})
		return result
	}
}

func (s *Session) hookRealProjectileHit(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			realID := int64(int32From(pc.Fields, "projectileId"))
			s.dispatch.ObserveHit(realID, pc.Raw)
		})
		return hostproxy.Pass
	}
}

// hookCannotStartSkill drops a stale refusal that races a just-applied
// teleport, per the Bugfix layer's 100ms suppression window.
func (s *Session) hookCannotStartSkill(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		var result hostproxy.HookResult
		s.do(ctx, func() {
			if s.dispatch.SuppressCannotStartSkill(time.Now()) {
				result = hostproxy.HookResult{Drop: true}
			}
		})
		return result
	}
}

// hookSystemMessage substitutes the class-appropriate resource name
// into a low-stamina system message.
func (s *Session) hookSystemMessage(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			msg, _ := pc.Fields["text"].(string)
			if msg == "" {
				return
			}
			pc.Fields["text"] = s.dispatch.RewriteStaminaMessage(s.job, msg)
		})
		return hostproxy.Pass
	}
}

func (s *Session) hookPlayerStatUpdate(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			if v, ok := pc.Fields["stamina"]; ok {
				s.stamina = float64From(map[string]any{"stamina": v}, "stamina")
			}
			if v, ok := pc.Fields["hasWeapon"]; ok {
				s.hasWeapon, _ = v.(bool)
			}
		})
		return hostproxy.Pass
	}
}

// hookReturnToLobby clears the loaded catalog on a return to the
// lobby. It does not stop the ping ticker or any other timer, and it
// leaves the monitor, cooldown, action and effects state as they are.
func (s *Session) hookReturnToLobby(ctx context.Context) hostproxy.Hook {
	return func(pc *hostproxy.PacketContext) hostproxy.HookResult {
		s.do(ctx, func() {
			s.catalog.Clear()
		})
		return hostproxy.Pass
	}
}
