// Package queue implements the deferred skill-packet queue: a bounded
// holding area for skill-cast packets whose cooldown hasn't yet
// cleared, released once cooldown (minus ping) expires.
//
// Grounded on internal/gameserver/client.go's sendCh idiom (bounded
// buffered channel, drain-on-close, pool-backed payloads); generalized
// here from "buffer bytes for the write syscall" to "hold a skill
// packet until its scheduled release time", which a channel can't
// express on its own, so entries live in a slice scanned by the
// session's scheduler tick instead of a chan.
package queue

import (
	"log/slog"
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

// DefaultCap is the queue's default bound.
const DefaultCap = 50

// DefaultTTL is how long a queued packet survives before it expires
// unsent.
const DefaultTTL = 5 * time.Second

// Packet is a skill-cast packet held pending release.
type Packet struct {
	SkillID   catalog.SkillID
	Payload   []byte
	Kind      int32
	Version   int32
	SendAt    time.Time
	ExpiresAt time.Time
}

// Queue holds packets awaiting release. Not safe for concurrent use —
// all calls happen on the session's single event-loop goroutine.
type Queue struct {
	capacity int
	ttl      time.Duration
	entries  []*Packet
}

// New creates a Queue with the given capacity (DefaultCap if capacity<=0).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Queue{capacity: capacity, ttl: DefaultTTL}
}

// Add schedules pkt for release at its SendAt (no earlier than now),
// expiring at now+ttl unless pkt.ExpiresAt is already set. If the
// queue is already at capacity the new packet is dropped (drop-newest)
// and a warning is logged.
func (q *Queue) Add(pkt Packet, now time.Time) {
	if pkt.SendAt.Before(now) {
		pkt.SendAt = now
	}
	if pkt.ExpiresAt.IsZero() {
		pkt.ExpiresAt = now.Add(q.ttl)
	}
	if len(q.entries) >= q.capacity {
		slog.Warn("packet queue full, dropping newest", "skill", pkt.SkillID, "cap", q.capacity)
		return
	}
	q.entries = append(q.entries, &pkt)
}

// Len reports the number of packets currently held.
func (q *Queue) Len() int { return len(q.entries) }

// Tick scans the queue, returning packets whose SendAt has arrived
// (in enqueue order) and discarding any whose ExpiresAt has already
// passed. Called by the session's scheduler every queueThrottleTime
// and once more immediately after every Add.
func (q *Queue) Tick(now time.Time) []*Packet {
	if len(q.entries) == 0 {
		return nil
	}
	var ready []*Packet
	remaining := q.entries[:0]
	for _, p := range q.entries {
		switch {
		case now.After(p.ExpiresAt):
			slog.Debug("queued packet expired", "skill", p.SkillID)
		case !now.Before(p.SendAt):
			ready = append(ready, p)
		default:
			remaining = append(remaining, p)
		}
	}
	q.entries = remaining
	return ready
}

// Cancel removes any queued packet for skillID, used when a
// CrestMessage resets the skill's cooldown before its scheduled send.
func (q *Queue) Cancel(skillID catalog.SkillID) {
	remaining := q.entries[:0]
	for _, p := range q.entries {
		if p.SkillID != skillID {
			remaining = append(remaining, p)
		}
	}
	q.entries = remaining
}
