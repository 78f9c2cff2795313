package catalog

// Type tags the skill's execution shape, mirroring the protocol's own
// type taxonomy. Kept as a small closed string enum rather
// than raw TypeID so call sites read naturally; TypeID is still kept
// on SkillRecord for the numeric comparisons the decision engine needs.
type Type string

const (
	TypeNormal               Type = "normal"
	TypeDash                 Type = "dash"
	TypeCatchBack            Type = "catchBack"
	TypeShortTel             Type = "shortTel"
	TypeMovingCharge         Type = "movingCharge"
	TypeMovingSkill          Type = "movingSkill"
	TypeShootingMovingSkill  Type = "shootingmovingskill"
	TypeMovingDefence        Type = "movingDefence"
	TypeConnect              Type = "connect"
	TypeDrain                Type = "drain"
	TypeProjectile           Type = "projectile"
	TypeNoTimeline           Type = "notimeline"
	TypeNoCasting            Type = "nocasting"
	TypeLockon               Type = "lockon"
)

// none is the sentinel value for "no such cancel-window boundary":
// each CancelWindow field is either an ms offset or this sentinel.
const none float64 = -1

// AnimLengthKind selects which shape of animation-length data a
// SkillRecord carries.
type AnimLengthKind int

const (
	AnimLengthScalar AnimLengthKind = iota
	AnimLengthSequence
	AnimLengthMovingChargeStages
)

// MovingChargeStage is one (duration, next-skill) entry of a
// movingCharge skill's per-stage animation length.
type MovingChargeStage struct {
	DurationMs float64
	NextSkill  SkillID
}

// AnimLength holds exactly one of the three shapes above, selected by
// Kind: a flat scalar duration, a per-stage sequence, or a
// moving-charge stage list.
type AnimLength struct {
	Kind         AnimLengthKind
	Scalar       float64
	Sequence     []float64
	MovingCharge []MovingChargeStage
}

// CancelWindow is the {front, pendingStartTime, pendingEndTime,
// rearStartTime, rearEndTime} tuple; each field is an ms offset or
// the `none` sentinel.
type CancelWindow struct {
	Front        float64
	PendingStart float64
	PendingEnd   float64
	RearStart    float64
	RearEnd      float64
}

// IsInPendingTime implements isInPendingTime predicate.
func IsInPendingTime(elapsed float64, c CancelWindow) bool {
	if c.PendingStart < 0 {
		return false
	}
	if elapsed < c.PendingStart {
		return false
	}
	return c.PendingEnd < 0 || elapsed <= c.PendingEnd
}

// CanFrontCancel implements canFrontCancel predicate.
func CanFrontCancel(elapsed float64, c CancelWindow) bool {
	return c.Front >= 0 && elapsed >= c.Front
}

// CanRearCancel implements canRearCancel predicate.
func CanRearCancel(elapsed float64, c CancelWindow) bool {
	if c.RearStart < 0 {
		return false
	}
	if elapsed < c.RearStart {
		return false
	}
	return c.RearEnd < 0 || elapsed <= c.RearEnd
}

// AbnormalityRedirect is one entry of a SkillRecord's ordered redirect
// list: if AbnormalityID is active, switch to Alt.
type AbnormalityRedirect struct {
	AbnormalityID int32
	Alt           SkillID
}

// SiblingKey identifies a skill by base-sub for applyCooldown groups
// and connectSkills lookups.
type SiblingKey struct {
	Base int32
	Sub  int32
}

// AnimSegment is one stage's movement segment.
type AnimSegment struct {
	Distance  float64
	Direction float64
}

// ResourceUsage is the stamina (and future resource) cost of a skill.
type ResourceUsage struct {
	Stamina float64
}

// Record is the immutable per-(id) skill metadata the decision engine
// consults. One Record exists per SkillID; consumers must treat it as
// read-only once returned from Catalog.Get.
type Record struct {
	ID     SkillID
	Type   Type
	TypeID int32

	AnimLength         AnimLength
	ShouldNotUseLength bool

	Cancels CancelWindow

	// Chains maps a follow-up base id to the set of acceptable subs.
	Chains map[int32]map[int32]struct{}

	// ConnectSkills maps "base-sub" to the level required for
	// connect-type transitions.
	ConnectSkills map[SiblingKey]int32

	AbnormalityRedirect     []AbnormalityRedirect
	AbnormalityRedirectToMe map[int32]struct{}
	AbnormalityApply        []int32
	AbnormalityConsumeStage []int32
	AbnormalityConsumeEnd   []int32

	ApplyCooldown []SiblingKey
	Categories    []int32
	PendingType   int32

	KeepMovingCharge        bool
	KeptMovingCharge        bool
	CanCastDuringBlock      bool
	OnlyAfterDefenceSuccess bool
	HoldIfNotMoving         bool
	NoNeedWeapon            bool
	FixedSpeed              bool
	Lockon                  bool
	ArrowChain              bool

	NextSkill              SkillID
	ConnectNextSkill       SkillID
	OverChargeConnectSkill SkillID

	// DashRedirect/DashRedirectFail map a current-skill typeId-29
	// dash's new-skill base to the redirect target, used on success
	// and on failure respectively.
	DashRedirect     map[int32]SkillID
	DashRedirectFail map[int32]SkillID

	ResourceUsage ResourceUsage

	AnimSeq           []AnimSegment
	Distance          []float64
	UseDest           []bool
	DirectionModifier []float64
}

// StageCount returns the number of animation stages this record
// defines, used by the decision engine's prefix-sum cache.
func (r *Record) StageCount() int {
	switch r.AnimLength.Kind {
	case AnimLengthSequence:
		return len(r.AnimLength.Sequence)
	case AnimLengthMovingChargeStages:
		return len(r.AnimLength.MovingCharge)
	default:
		return 1
	}
}
