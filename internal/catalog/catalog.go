package catalog

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Catalog is the read-only, per-class skill metadata table. It is
// loaded once per character class on login and cleared on
// logout/class change.
//
// Grounded on internal/data/skill_loader.go's immutable
// map[id]map[level]*Template pattern, collapsed here to map[SkillID]
// since our SkillID already encodes the level.
type Catalog struct {
	mu sync.RWMutex

	className string
	records   map[SkillID]*Record

	// supported holds the skills.json per-class override table:
	// supported[base][sub] = enabled.
	supported map[int32]map[int32]bool

	cache *prefixSumCache
}

// New creates an empty Catalog. Load must be called before use.
func New() *Catalog {
	return &Catalog{
		records:   make(map[SkillID]*Record),
		supported: make(map[int32]map[int32]bool),
		cache:     newPrefixSumCache(),
	}
}

// Load replaces the catalog's contents with records for className,
// as if freshly read from `<gender>/<race>/<class>.json` plus the
// shared `skills.json` override table.
func (c *Catalog) Load(className string, records []*Record, overrides map[int32]map[int32]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := make(map[SkillID]*Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	c.className = className
	c.records = byID
	c.supported = overrides
	c.cache = newPrefixSumCache()

	slog.Info("catalog loaded", "class", className, "skills", len(byID))
}

// Clear empties the catalog (logout / class change).
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.className = ""
	c.records = make(map[SkillID]*Record)
	c.supported = make(map[int32]map[int32]bool)
	c.cache = newPrefixSumCache()
}

// Get returns the record for id, or nil if the catalog has no entry —
// consumers must handle a miss by failing the transition, never by
// crashing.
func (c *Catalog) Get(id SkillID) *Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records[id]
}

// IsSupported reports whether skills.json enables this skill for the
// currently loaded class.
func (c *Catalog) IsSupported(id SkillID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	subs, ok := c.supported[id.Base()]
	if !ok {
		return true // absence of an override entry means "supported"
	}
	enabled, ok := subs[id.Sub()]
	if !ok {
		return true
	}
	return enabled
}

// StageCount returns the number of animation stages for id, or 0 if
// the skill is not in the catalog.
func (c *Catalog) StageCount(id SkillID) int {
	r := c.Get(id)
	if r == nil {
		return 0
	}
	return r.StageCount()
}

// unknownAnimLength is the sentinel returned by AnimLength when a
// shouldNotUseLength record is queried at or beyond its last stage.
const unknownAnimLength = math.MaxFloat64

// AnimLength computes the animation length in ms for (skillID, stage)
// at the given speed multiplier, branching on the record's
// AnimLengthKind (dash/movingCharge/shouldNotUseLength/scalar/sequence).
// distance is the caster→destination distance, used only for dash
// skills. ok is false when the length is the "unknown" sentinel
// (a shouldNotUseLength record queried at or beyond its last stage)
// or when the stage has no length data.
func (c *Catalog) AnimLength(id SkillID, stage int, speedReal, distance float64) (ms float64, ok bool) {
	r := c.Get(id)
	if r == nil {
		return 0, false
	}
	return animLength(r, stage, speedReal, distance)
}

func animLength(r *Record, stage int, speedReal, distance float64) (float64, bool) {
	if speedReal == 0 {
		speedReal = 1
	}

	if r.Type == TypeDash {
		if r.AnimLength.Kind != AnimLengthScalar || r.AnimLength.Scalar == 0 {
			return 0, false
		}
		return (distance + 25) * 1000 / r.AnimLength.Scalar / speedReal, true
	}

	if r.Type == TypeMovingCharge {
		if stage < 0 || stage >= len(r.AnimLength.MovingCharge) {
			return 0, false
		}
		return r.AnimLength.MovingCharge[stage].DurationMs / speedReal, true
	}

	if r.ShouldNotUseLength {
		last := r.StageCount() - 1
		if stage < last {
			if stage < 0 || stage >= len(r.AnimLength.Sequence) {
				return 0, false
			}
			return r.AnimLength.Sequence[stage] / speedReal, true
		}
		return unknownAnimLength, false
	}

	switch r.AnimLength.Kind {
	case AnimLengthScalar:
		return r.AnimLength.Scalar / speedReal, true
	case AnimLengthSequence:
		if stage < 0 || stage >= len(r.AnimLength.Sequence) {
			return 0, false
		}
		return r.AnimLength.Sequence[stage] / speedReal, true
	default:
		return 0, false
	}
}

// PrefixSum returns the sum of animation lengths for stages [0, stage)
// at speed 1.0, used by the decision engine's calculateTime to
// estimate where in an animation sequence a given elapsed time falls.
// Cached per (skill, stage) since calculateTime is invoked repeatedly
// during a single decision.
func (c *Catalog) PrefixSum(id SkillID, stage int) (float64, bool) {
	if stage <= 0 {
		return 0, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.get(id, stage); ok {
		return v, true
	}

	r := c.records[id]
	if r == nil {
		return 0, false
	}
	var sum float64
	for s := 0; s < stage; s++ {
		v, ok := animLength(r, s, 1.0, 0)
		if !ok {
			return 0, false
		}
		sum += v
	}
	c.cache.put(id, stage, sum)
	return sum, true
}

// ErrNotFound names a catalog miss for callers that want an error
// value. The lookups in this package do not return it: Get reports a
// miss as nil, and AnimLength/PrefixSum as ok == false.
var ErrNotFound = fmt.Errorf("catalog: skill not found")
