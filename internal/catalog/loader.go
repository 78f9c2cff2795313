package catalog

import (
	"encoding/json"
	"fmt"
)

// jsonRecord mirrors the on-disk shape of a `<gender>/<race>/<class>.json`
// skill entry. Kept distinct from Record so the wire/file
// format can evolve independently of the in-memory representation,
// matching the skillDef/SkillTemplate split in
// internal/data/skill_data.go and skill_template.go.
type jsonRecord struct {
	ID     int32  `json:"id"`
	Type   string `json:"type"`
	TypeID int32  `json:"typeId"`

	AnimLengthScalar   *float64               `json:"animLength,omitempty"`
	AnimLengthSequence []float64              `json:"animLengthSeq,omitempty"`
	MovingChargeStages []jsonMovingChargeStage `json:"movingChargeStages,omitempty"`
	ShouldNotUseLength bool                   `json:"shouldNotUseLength,omitempty"`

	Cancels jsonCancels `json:"cancels"`

	Chains        map[string][]int32 `json:"chains,omitempty"`        // base(string) -> subs
	ConnectSkills map[string]int32   `json:"connectSkills,omitempty"` // "base-sub" -> level

	AbnormalityRedirect     []jsonAbnormalityRedirect `json:"abnormalityRedirect,omitempty"`
	AbnormalityRedirectToMe []int32                   `json:"abnormalityRedirectToMe,omitempty"`
	AbnormalityApply        []int32                   `json:"abnormalityApply,omitempty"`
	AbnormalityConsumeStage []int32                   `json:"abnormalityConsume.stage,omitempty"`
	AbnormalityConsumeEnd   []int32                   `json:"abnormalityConsume.end,omitempty"`

	ApplyCooldown []string `json:"applyCooldown,omitempty"` // "base-sub"
	Categories    []int32  `json:"categories,omitempty"`
	PendingType   int32    `json:"pendingType,omitempty"`

	KeepMovingCharge        bool `json:"keepMovingCharge,omitempty"`
	KeptMovingCharge        bool `json:"keptMovingCharge,omitempty"`
	CanCastDuringBlock      bool `json:"canCastDuringBlock,omitempty"`
	OnlyAfterDefenceSuccess bool `json:"onlyAfterDefenceSuccess,omitempty"`
	HoldIfNotMoving         bool `json:"holdIfNotMoving,omitempty"`
	NoNeedWeapon            bool `json:"noNeedWeapon,omitempty"`
	FixedSpeed              bool `json:"fixedSpeed,omitempty"`
	Lockon                  bool `json:"lockon,omitempty"`
	ArrowChain              bool `json:"arrowChain,omitempty"`

	NextSkill              int32 `json:"nextSkill,omitempty"`
	ConnectNextSkill       int32 `json:"connectNextSkill,omitempty"`
	OverChargeConnectSkill int32 `json:"overChargeConnectSkill,omitempty"`

	DashRedirect     map[string]int32 `json:"dashRedirect,omitempty"`
	DashRedirectFail map[string]int32 `json:"dashRedirectFail,omitempty"`

	ResourceUsageSt float64 `json:"resourceUsage.st,omitempty"`

	AnimSeq           []jsonAnimSegment `json:"animSeq,omitempty"`
	Distance          []float64         `json:"distance,omitempty"`
	UseDest           []bool            `json:"useDest,omitempty"`
	DirectionModifier []float64         `json:"directionModifier,omitempty"`
}

type jsonMovingChargeStage struct {
	DurationMs float64 `json:"duration"`
	NextSkill  int32   `json:"nextSkillId"`
}

type jsonCancels struct {
	Front            *float64 `json:"front"`
	PendingStartTime *float64 `json:"pendingStartTime"`
	PendingEndTime   *float64 `json:"pendingEndTime"`
	RearStartTime    *float64 `json:"rearStartTime"`
	RearEndTime      *float64 `json:"rearEndTime"`
}

type jsonAbnormalityRedirect struct {
	AbnormalityID int32 `json:"abnormalityId"`
	Alt           int32 `json:"alt"`
}

type jsonAnimSegment struct {
	Distance  float64 `json:"distance"`
	Direction float64 `json:"direction"`
}

// ParseRecords decodes the contents of a `<gender>/<race>/<class>.json`
// catalog file into Records.
func ParseRecords(data []byte) ([]*Record, error) {
	var raw []jsonRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse records: %w", err)
	}
	out := make([]*Record, 0, len(raw))
	for i := range raw {
		r, err := buildRecord(&raw[i])
		if err != nil {
			return nil, fmt.Errorf("catalog: build record %d: %w", raw[i].ID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ParseOverrides decodes the `skills.json` per-class isSupported
// override table: {className: {base: {sub: bool}}}.
func ParseOverrides(data []byte, className string) (map[int32]map[int32]bool, error) {
	var raw map[string]map[string]map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: parse overrides: %w", err)
	}
	out := make(map[int32]map[int32]bool)
	for baseStr, subs := range raw[className] {
		var base int32
		if _, err := fmt.Sscanf(baseStr, "%d", &base); err != nil {
			continue
		}
		subMap := make(map[int32]bool, len(subs))
		for subStr, enabled := range subs {
			var sub int32
			if _, err := fmt.Sscanf(subStr, "%d", &sub); err != nil {
				continue
			}
			subMap[sub] = enabled
		}
		out[base] = subMap
	}
	return out, nil
}

func cancelOr(v *float64) float64 {
	if v == nil {
		return none
	}
	return *v
}

func buildRecord(j *jsonRecord) (*Record, error) {
	r := &Record{
		ID:                      SkillID(j.ID),
		Type:                    Type(j.Type),
		TypeID:                  j.TypeID,
		ShouldNotUseLength:      j.ShouldNotUseLength,
		AbnormalityRedirectToMe: toSet(j.AbnormalityRedirectToMe),
		AbnormalityApply:        j.AbnormalityApply,
		AbnormalityConsumeStage: j.AbnormalityConsumeStage,
		AbnormalityConsumeEnd:   j.AbnormalityConsumeEnd,
		Categories:              j.Categories,
		PendingType:             j.PendingType,
		KeepMovingCharge:        j.KeepMovingCharge,
		KeptMovingCharge:        j.KeptMovingCharge,
		CanCastDuringBlock:      j.CanCastDuringBlock,
		OnlyAfterDefenceSuccess: j.OnlyAfterDefenceSuccess,
		HoldIfNotMoving:         j.HoldIfNotMoving,
		NoNeedWeapon:            j.NoNeedWeapon,
		FixedSpeed:              j.FixedSpeed,
		Lockon:                  j.Lockon,
		ArrowChain:              j.ArrowChain,
		NextSkill:               SkillID(j.NextSkill),
		ConnectNextSkill:        SkillID(j.ConnectNextSkill),
		OverChargeConnectSkill:  SkillID(j.OverChargeConnectSkill),
		ResourceUsage:           ResourceUsage{Stamina: j.ResourceUsageSt},
		Distance:                j.Distance,
		UseDest:                 j.UseDest,
		DirectionModifier:       j.DirectionModifier,
		Cancels: CancelWindow{
			Front:        cancelOr(j.Cancels.Front),
			PendingStart: cancelOr(j.Cancels.PendingStartTime),
			PendingEnd:   cancelOr(j.Cancels.PendingEndTime),
			RearStart:    cancelOr(j.Cancels.RearStartTime),
			RearEnd:      cancelOr(j.Cancels.RearEndTime),
		},
	}

	switch {
	case len(j.MovingChargeStages) > 0:
		stages := make([]MovingChargeStage, len(j.MovingChargeStages))
		for i, s := range j.MovingChargeStages {
			stages[i] = MovingChargeStage{DurationMs: s.DurationMs, NextSkill: SkillID(s.NextSkill)}
		}
		r.AnimLength = AnimLength{Kind: AnimLengthMovingChargeStages, MovingCharge: stages}
	case len(j.AnimLengthSequence) > 0:
		r.AnimLength = AnimLength{Kind: AnimLengthSequence, Sequence: j.AnimLengthSequence}
	case j.AnimLengthScalar != nil:
		r.AnimLength = AnimLength{Kind: AnimLengthScalar, Scalar: *j.AnimLengthScalar}
	}

	if len(j.Chains) > 0 {
		r.Chains = make(map[int32]map[int32]struct{}, len(j.Chains))
		for baseStr, subs := range j.Chains {
			var base int32
			if _, err := fmt.Sscanf(baseStr, "%d", &base); err != nil {
				return nil, fmt.Errorf("bad chain base %q: %w", baseStr, err)
			}
			set := make(map[int32]struct{}, len(subs))
			for _, s := range subs {
				set[s] = struct{}{}
			}
			r.Chains[base] = set
		}
	}

	if len(j.ConnectSkills) > 0 {
		r.ConnectSkills = make(map[SiblingKey]int32, len(j.ConnectSkills))
		for k, level := range j.ConnectSkills {
			key, err := parseSiblingKey(k)
			if err != nil {
				return nil, err
			}
			r.ConnectSkills[key] = level
		}
	}

	if len(j.ApplyCooldown) > 0 {
		r.ApplyCooldown = make([]SiblingKey, 0, len(j.ApplyCooldown))
		for _, k := range j.ApplyCooldown {
			key, err := parseSiblingKey(k)
			if err != nil {
				return nil, err
			}
			r.ApplyCooldown = append(r.ApplyCooldown, key)
		}
	}

	if len(j.AbnormalityRedirect) > 0 {
		r.AbnormalityRedirect = make([]AbnormalityRedirect, len(j.AbnormalityRedirect))
		for i, ar := range j.AbnormalityRedirect {
			r.AbnormalityRedirect[i] = AbnormalityRedirect{AbnormalityID: ar.AbnormalityID, Alt: SkillID(ar.Alt)}
		}
	}

	if len(j.DashRedirect) > 0 {
		r.DashRedirect = make(map[int32]SkillID, len(j.DashRedirect))
		for baseStr, v := range j.DashRedirect {
			var base int32
			fmt.Sscanf(baseStr, "%d", &base)
			r.DashRedirect[base] = SkillID(v)
		}
	}
	if len(j.DashRedirectFail) > 0 {
		r.DashRedirectFail = make(map[int32]SkillID, len(j.DashRedirectFail))
		for baseStr, v := range j.DashRedirectFail {
			var base int32
			fmt.Sscanf(baseStr, "%d", &base)
			r.DashRedirectFail[base] = SkillID(v)
		}
	}

	if len(j.AnimSeq) > 0 {
		r.AnimSeq = make([]AnimSegment, len(j.AnimSeq))
		for i, s := range j.AnimSeq {
			r.AnimSeq[i] = AnimSegment{Distance: s.Distance, Direction: s.Direction}
		}
	}

	return r, nil
}

func toSet(ids []int32) map[int32]struct{} {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func parseSiblingKey(s string) (SiblingKey, error) {
	var base, sub int32
	if _, err := fmt.Sscanf(s, "%d-%d", &base, &sub); err != nil {
		return SiblingKey{}, fmt.Errorf("catalog: bad sibling key %q: %w", s, err)
	}
	return SiblingKey{Base: base, Sub: sub}, nil
}
