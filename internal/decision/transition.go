// Package decision implements the skill decision engine: given a
// requested skill and the current action tracker / catalog / effects
// state, it decides whether the skill can execute now and under what
// transition kind and time offset.
//
// Grounded on internal/game/skill/cast_manager.go's UseMagic ordered
// validation pipeline, generalized from "validate then err" into "run
// the ordered resolution chain and return a Transition descriptor".
package decision

import "github.com/udisondev/l2latency/internal/catalog"

// Flags records which transition kinds apply to a decided cast:
// chain/front-cancel/rear-cancel/immediate/charge/self-cancel/
// knockdown/lockon/dash/block/super/keep-charge/no-action/future, plus
// whether it failed outright or was granted by an arrow shortcut.
type Flags struct {
	Chain      bool
	Front      bool
	Rear       bool
	Immediate  bool
	Charge     bool
	Cancel     bool
	KD         bool
	Lockon     bool
	Dash       bool
	Block      bool
	Super      bool
	KeepCharge bool
	NoAction   bool
	Future     bool
	Failed     bool
	ByGrant    bool
}

// Transition is the decision engine's output. Type is a
// small integer tag; when Flags.Failed is set, Type doubles as the
// refusal error code.
type Transition struct {
	SkillID catalog.SkillID
	Type    int32
	Code    int32
	Time    float64
	Flags   Flags
}

// failed builds a refused Transition: negative codes mean refuse,
// with Type doubling as the refusal's error code.
func failed(code int32) Transition {
	return Transition{Type: code, Code: code, Flags: Flags{Failed: true}}
}

// Refusal codes used directly by the resolution order (catalog-miss
// and the final default fallthrough); canCast's own codes live in
// cancast.go.
const (
	codeNotFound = -1
	codeDefault  = -1
)
