package catalog

import "testing"

func TestAnimLengthScalar(t *testing.T) {
	c := New()
	id := NewSkillID(1001, 1, 0)
	c.Load("test", []*Record{{
		ID:         id,
		Type:       TypeNormal,
		AnimLength: AnimLength{Kind: AnimLengthScalar, Scalar: 1000},
	}}, nil)

	ms, ok := c.AnimLength(id, 0, 2.0, 0)
	if !ok || ms != 500 {
		t.Fatalf("got (%v, %v), want (500, true)", ms, ok)
	}
}

func TestAnimLengthDash(t *testing.T) {
	c := New()
	id := NewSkillID(2001, 1, 0)
	c.Load("test", []*Record{{
		ID:         id,
		Type:       TypeDash,
		AnimLength: AnimLength{Kind: AnimLengthScalar, Scalar: 100},
	}}, nil)

	// (|dist| + 25) * 1000 / animLength / speed
	ms, ok := c.AnimLength(id, 0, 1.0, 75)
	if !ok {
		t.Fatal("expected ok")
	}
	want := (75.0 + 25) * 1000 / 100 / 1.0
	if ms != want {
		t.Fatalf("got %v want %v", ms, want)
	}
}

func TestAnimLengthShouldNotUseLength(t *testing.T) {
	c := New()
	id := NewSkillID(3001, 1, 0)
	c.Load("test", []*Record{{
		ID:                 id,
		Type:               TypeNormal,
		ShouldNotUseLength: true,
		AnimLength:         AnimLength{Kind: AnimLengthSequence, Sequence: []float64{100, 200}},
	}}, nil)

	ms, ok := c.AnimLength(id, 0, 1.0, 0)
	if !ok || ms != 100 {
		t.Fatalf("stage 0: got (%v,%v) want (100,true)", ms, ok)
	}
	_, ok = c.AnimLength(id, 1, 1.0, 0)
	if ok {
		t.Fatal("last stage should be unknown")
	}
}

func TestAnimLengthMovingCharge(t *testing.T) {
	c := New()
	id := NewSkillID(4001, 1, 0)
	next := NewSkillID(4002, 1, 0)
	c.Load("test", []*Record{{
		ID:   id,
		Type: TypeMovingCharge,
		AnimLength: AnimLength{
			Kind:         AnimLengthMovingChargeStages,
			MovingCharge: []MovingChargeStage{{DurationMs: 400, NextSkill: next}},
		},
	}}, nil)

	ms, ok := c.AnimLength(id, 0, 2.0, 0)
	if !ok || ms != 200 {
		t.Fatalf("got (%v,%v) want (200,true)", ms, ok)
	}
}

func TestPrefixSum(t *testing.T) {
	c := New()
	id := NewSkillID(5001, 1, 0)
	c.Load("test", []*Record{{
		ID:         id,
		Type:       TypeNormal,
		AnimLength: AnimLength{Kind: AnimLengthSequence, Sequence: []float64{100, 200, 300}},
	}}, nil)

	sum, ok := c.PrefixSum(id, 2)
	if !ok || sum != 300 {
		t.Fatalf("got (%v,%v) want (300,true)", sum, ok)
	}
	// second call exercises the cache path
	sum2, ok2 := c.PrefixSum(id, 2)
	if !ok2 || sum2 != 300 {
		t.Fatalf("cached: got (%v,%v) want (300,true)", sum2, ok2)
	}
}

func TestIsSupported(t *testing.T) {
	c := New()
	overrides := map[int32]map[int32]bool{1001: {0: false}}
	c.Load("test", nil, overrides)

	if c.IsSupported(NewSkillID(1001, 1, 0)) {
		t.Fatal("expected unsupported")
	}
	if !c.IsSupported(NewSkillID(9999, 1, 0)) {
		t.Fatal("expected supported by default")
	}
}

func TestGetMissingNeverCrashes(t *testing.T) {
	c := New()
	if r := c.Get(NewSkillID(1, 1, 1)); r != nil {
		t.Fatalf("expected nil, got %v", r)
	}
}
