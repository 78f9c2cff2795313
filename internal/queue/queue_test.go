package queue

import (
	"testing"
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

func TestAddAndTickReleasesAtSendAt(t *testing.T) {
	q := New(DefaultCap)
	now := time.Now()
	skill := catalog.NewSkillID(1001, 1, 0)

	q.Add(Packet{SkillID: skill, SendAt: now.Add(50 * time.Millisecond)}, now)

	if got := q.Tick(now); len(got) != 0 {
		t.Fatalf("expected nothing ready yet, got %d", len(got))
	}
	got := q.Tick(now.Add(50 * time.Millisecond))
	if len(got) != 1 || got[0].SkillID != skill {
		t.Fatalf("expected packet ready at sendAt, got %+v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue drained after release, got len=%d", q.Len())
	}
}

// S5 — queue release: ping.min=60, cooldown.ends=now+500 → sendAt=now+440.
func TestQueueReleaseScenario(t *testing.T) {
	q := New(DefaultCap)
	now := time.Now()
	skill := catalog.NewSkillID(2003, 1, 0)

	q.Add(Packet{SkillID: skill, SendAt: now.Add(440 * time.Millisecond)}, now)

	if got := q.Tick(now.Add(439 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("fired too early: %+v", got)
	}
	got := q.Tick(now.Add(440 * time.Millisecond))
	if len(got) != 1 {
		t.Fatalf("expected exactly one release, got %d", len(got))
	}
}

func TestExpiredPacketDiscarded(t *testing.T) {
	q := New(DefaultCap)
	now := time.Now()
	skill := catalog.NewSkillID(1002, 1, 0)

	q.Add(Packet{SkillID: skill, SendAt: now.Add(time.Second), ExpiresAt: now.Add(2 * time.Second)}, now)

	got := q.Tick(now.Add(3 * time.Second))
	if len(got) != 0 {
		t.Fatalf("expected expired packet discarded, not released: %+v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("expected expired packet removed from queue, got len=%d", q.Len())
	}
}

func TestQueueFullDropsNewest(t *testing.T) {
	q := New(2)
	now := time.Now()

	q.Add(Packet{SkillID: catalog.NewSkillID(1, 1, 0), SendAt: now.Add(time.Second)}, now)
	q.Add(Packet{SkillID: catalog.NewSkillID(2, 1, 0), SendAt: now.Add(time.Second)}, now)
	q.Add(Packet{SkillID: catalog.NewSkillID(3, 1, 0), SendAt: now.Add(time.Second)}, now)

	if q.Len() != 2 {
		t.Fatalf("expected cap enforced at 2, got %d", q.Len())
	}
}

func TestCancelRemovesQueuedSkill(t *testing.T) {
	q := New(DefaultCap)
	now := time.Now()
	skill := catalog.NewSkillID(1003, 1, 0)

	q.Add(Packet{SkillID: skill, SendAt: now.Add(time.Second)}, now)
	q.Cancel(skill)

	if q.Len() != 0 {
		t.Fatalf("expected cancelled packet removed, got len=%d", q.Len())
	}
}

func TestAddDefaultsSendAtAndExpiresAt(t *testing.T) {
	q := New(DefaultCap)
	now := time.Now()
	skill := catalog.NewSkillID(1004, 1, 0)

	q.Add(Packet{SkillID: skill}, now)
	got := q.Tick(now)
	if len(got) != 1 {
		t.Fatalf("expected immediate release when SendAt is zero, got %d", len(got))
	}
}
