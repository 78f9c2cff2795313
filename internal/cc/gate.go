// Package cc implements the Crowd-Control Gate: a pure predicate that,
// given a requested skill and the current abnormalities/action,
// returns an allow code or a denial code.
//
// Grounded on internal/game/skill/effect_stun.go, effect_sleep.go and
// effect_root.go's typed effect handlers, collapsed here into a
// single ordered predicate rather than three separate Effect
// implementations, since models crowd control as one gate
// function rather than per-type handlers.
package cc

import (
	"github.com/udisondev/l2latency/internal/action"
	"github.com/udisondev/l2latency/internal/catalog"
	"github.com/udisondev/l2latency/internal/effects"
)

const (
	typeStun = 211
	typeSleep = 232
	typeRoot  = 274

	typeIDMovement = 27

	stunImmuneBit = 16
)

// Denial codes.
const (
	Allowed             = 0
	DeniedStun          = -1211
	DeniedSleep         = -1232
	DeniedRoot          = -1274
	DeniedFeared        = -21
	DeniedPushing       = -23
	DeniedAnimSequence  = -24
	DeniedKnockedDown   = -22
)

// whitelist skips CC denial checks entirely for these abnormality ids
//.
var whitelist = map[int32]struct{}{
	10133020: {},
	10133021: {},
	909745:   {},
}

// Gate holds the only piece of state the predicate needs beyond its
// arguments: whether the player is currently in a fear-induced forced
// move (toggled by fear-move begin/end events).
type Gate struct {
	feared bool
}

// New creates a Gate.
func New() *Gate { return &Gate{} }

// SetFeared toggles the fear-move flag.
func (g *Gate) SetFeared(v bool) { g.feared = v }

// CanLockonEntity reports whether a lockon skill may target the entity
// with the given game id. It always returns true; no boss or entity
// table is consulted.
func CanLockonEntity(gameID int64) bool { return true }

// Check evaluates the gate for a requested skill, returning Allowed
// or one of the Denied* codes. Precedence: stun, then sleep, then
// root (exempting movement skills), then forced-fear movement, then
// pushing, then an active animation sequence, then airborne/knocked
// down (exempting movement skills).
func (g *Gate) Check(rec *catalog.Record, view *effects.View, act *action.State) int32 {
	denial := int32(Allowed)
	view.ForEach(func(st *effects.State) {
		if denial != Allowed {
			return
		}
		if _, skip := whitelist[st.ID]; skip {
			return
		}
		for _, e := range st.Effects {
			switch e.Type {
			case typeStun:
				if !st.StatusBit(stunImmuneBit) {
					denial = DeniedStun
				}
			case typeSleep:
				denial = DeniedSleep
			case typeRoot:
				if rec.TypeID != typeIDMovement {
					denial = DeniedRoot
				}
			}
			if denial != Allowed {
				return
			}
		}
	})
	if denial != Allowed {
		return denial
	}

	if g.feared {
		return DeniedFeared
	}
	if act.Stage.Push {
		return DeniedPushing
	}
	// "currently executing an animation sequence and not knocked
	// down": Stage.AnimSeq carries the forced-movement segments for
	// the active stage; Stage.Air marks a knockdown/airborne state.
	if len(act.Stage.AnimSeq) > 0 && !act.Stage.Air {
		return DeniedAnimSequence
	}
	if act.Stage.Air && rec.TypeID != typeIDMovement {
		return DeniedKnockedDown
	}
	return Allowed
}
