// Package catalog provides the read-only lookup of per-skill metadata
// (type, animation lengths, chains, cancel windows, cooldown rules,
// abnormality redirects) that the decision engine queries.
//
// Java/L2 reference idiom: immutable per-(id,level) template tables,
// loaded once and shared — see internal/data/skill_template.go for the
// pattern this package generalizes.
package catalog

import "fmt"

// SkillID encodes base*10000 + level*100 + sub, matching the wire
// identifier the host proxy hands us in packet payloads. Held as a
// 64-bit type since base alone ranges over [0, 2^24) and base*10000
// already overflows int32.
type SkillID int64

// NewSkillID builds a SkillID from its three components.
func NewSkillID(base, level, sub int32) SkillID {
	return SkillID(int64(base)*10000 + int64(level)*100 + int64(sub))
}

// Base returns the skill's base identifier.
func (id SkillID) Base() int32 { return int32(int64(id) / 10000) }

// Level returns the skill's level component.
func (id SkillID) Level() int32 { return int32((int64(id) / 100) % 100) }

// Sub returns the skill's sub component.
func (id SkillID) Sub() int32 { return int32(int64(id) % 100) }

func (id SkillID) String() string {
	return fmt.Sprintf("%d(base=%d,lvl=%d,sub=%d)", int64(id), id.Base(), id.Level(), id.Sub())
}
