// Package network measures ping and jitter, the timing compensation
// fed into the decision engine and cooldown tracker.
//
// Grounded on the ticker-driven background-measurement idiom of
// cmd/gameserver/main.go's errgroup-supervised goroutines; the
// actual ticking is owned by internal/session so that every mutation
// still funnels through the single event-loop goroutine.
package network

import (
	"log/slog"
	"time"

	"github.com/udisondev/l2latency/internal/catalog"
)

const (
	// DefaultPing/DefaultJitter are the values reported before any
	// measurement completes.
	DefaultPing   = 88
	DefaultJitter = 11

	maxPingHistory = 22

	pingMin = 0
	pingMax = 800

	jitterMin = 0
	jitterMax = 220

	fakedTTL       = 33 * time.Second
	fakedMapCap    = 11
)

type fakedKey struct {
	skill catalog.SkillID
	stage int
}

// Monitor tracks ping/jitter state for one session. Not safe for
// concurrent use by design (: all mutation happens on the
// single session event-loop goroutine).
type Monitor struct {
	pingHistory []int // bounded at maxPingHistory, oldest evicted
	ping        int
	jitter      int

	pendingJitter []int // samples observed since the last 8s cycle

	pendingPingSentAt time.Time
	pendingPingActive bool

	fakedStage map[fakedKey]time.Time
	fakedEnd   map[catalog.SkillID]time.Time
}

// New creates a Monitor seeded with conservative ping/jitter defaults,
// reported before any measurement completes.
func New() *Monitor {
	return &Monitor{
		ping:       DefaultPing,
		jitter:     DefaultJitter,
		fakedStage: make(map[fakedKey]time.Time),
		fakedEnd:   make(map[catalog.SkillID]time.Time),
	}
}

// Ping returns the current reported ping: the minimum of the last up
// to 22 accepted round-trip samples.
func (m *Monitor) Ping() int { return m.ping }

// Jitter returns the current jitter estimate, always in [0, 220]ms.
func (m *Monitor) Jitter() int { return m.jitter }

// AveragePing returns the mean of the retained ping history, used by
// the optional periodic status message.
func (m *Monitor) AveragePing() int {
	if len(m.pingHistory) == 0 {
		return m.ping
	}
	sum := 0
	for _, v := range m.pingHistory {
		sum += v
	}
	return sum / len(m.pingHistory)
}

// BeginPingRequest records that a RequestGameStatPing was just sent,
// so the matching ResponseGameStatPong can be timed.
func (m *Monitor) BeginPingRequest(now time.Time) {
	m.pendingPingSentAt = now
	m.pendingPingActive = true
}

// CompletePingRequest consumes the pending ping request and records
// the round-trip sample. Values outside [0,800]ms are rejected
// silently.
func (m *Monitor) CompletePingRequest(now time.Time) {
	if !m.pendingPingActive {
		return
	}
	m.pendingPingActive = false
	rtt := int(now.Sub(m.pendingPingSentAt) / time.Millisecond)
	m.recordPingSample(rtt)
}

func (m *Monitor) recordPingSample(rtt int) {
	if rtt < pingMin || rtt > pingMax {
		slog.Debug("ping sample rejected", "rtt", rtt)
		return
	}
	m.pingHistory = append(m.pingHistory, rtt)
	if len(m.pingHistory) > maxPingHistory {
		m.pingHistory = m.pingHistory[len(m.pingHistory)-maxPingHistory:]
	}
	min := m.pingHistory[0]
	for _, v := range m.pingHistory[1:] {
		if v < min {
			min = v
		}
	}
	m.ping = min
}

// RecordFakedStage notes that a fake ActionStage for (skillID, stage)
// was emitted at ts, so a later real stage packet can be timed
// against it.
func (m *Monitor) RecordFakedStage(skillID catalog.SkillID, stage int, ts time.Time) {
	m.fakedStage[fakedKey{skillID, stage}] = ts
	m.trimFakedMaps()
}

// RecordFakedEnd notes that a fake ActionEnd for skillID was emitted
// at ts.
func (m *Monitor) RecordFakedEnd(skillID catalog.SkillID, ts time.Time) {
	m.fakedEnd[skillID] = ts
	m.trimFakedMaps()
}

// ObserveRealStage reports a real ActionStage arriving at ts; if a
// matching fake was emitted earlier, the jitter sample is accumulated
// for the next 8s cycle.
func (m *Monitor) ObserveRealStage(skillID catalog.SkillID, stage int, ts time.Time) {
	key := fakedKey{skillID, stage}
	fakeTs, ok := m.fakedStage[key]
	if !ok {
		return
	}
	delete(m.fakedStage, key)
	m.observeSample(ts, fakeTs)
}

// ObserveRealEnd reports a real ActionEnd arriving at ts.
func (m *Monitor) ObserveRealEnd(skillID catalog.SkillID, ts time.Time) {
	fakeTs, ok := m.fakedEnd[skillID]
	if !ok {
		return
	}
	delete(m.fakedEnd, skillID)
	m.observeSample(ts, fakeTs)
}

func (m *Monitor) observeSample(realTs, fakeTs time.Time) {
	sample := int(realTs.Sub(fakeTs)/time.Millisecond) - m.ping
	if sample < jitterMin || sample > jitterMax {
		return
	}
	m.pendingJitter = append(m.pendingJitter, sample)
}

// Cycle runs the 8s measurement cycle: the new jitter is the minimum
// of samples observed since the previous cycle, or the previous
// jitter if none were valid.
func (m *Monitor) Cycle() {
	if len(m.pendingJitter) > 0 {
		min := m.pendingJitter[0]
		for _, v := range m.pendingJitter[1:] {
			if v < min {
				min = v
			}
		}
		m.jitter = min
	}
	m.pendingJitter = m.pendingJitter[:0]
}

// trimFakedMaps caps each faked.* map at fakedMapCap entries,
// evicting the oldest by timestamp. Cleanup also runs a coarser pass
// on a 5-minute cycle; this call keeps growth bounded between
// cleanups too.
func (m *Monitor) trimFakedMaps() {
	if len(m.fakedStage) > fakedMapCap {
		evictOldest(m.fakedStage)
	}
	if len(m.fakedEnd) > fakedMapCap {
		evictOldestByID(m.fakedEnd)
	}
}

func evictOldest(mp map[fakedKey]time.Time) {
	var oldestKey fakedKey
	var oldestTs time.Time
	first := true
	for k, ts := range mp {
		if first || ts.Before(oldestTs) {
			oldestKey, oldestTs, first = k, ts, false
		}
	}
	if !first {
		delete(mp, oldestKey)
	}
}

func evictOldestByID(mp map[catalog.SkillID]time.Time) {
	var oldestKey catalog.SkillID
	var oldestTs time.Time
	first := true
	for k, ts := range mp {
		if first || ts.Before(oldestTs) {
			oldestKey, oldestTs, first = k, ts, false
		}
	}
	if !first {
		delete(mp, oldestKey)
	}
}

// Cleanup discards faked.* entries older than 33s. Intended to be
// invoked every 5 minutes by the session's background ticker.
func (m *Monitor) Cleanup(now time.Time) {
	for k, ts := range m.fakedStage {
		if now.Sub(ts) > fakedTTL {
			delete(m.fakedStage, k)
		}
	}
	for k, ts := range m.fakedEnd {
		if now.Sub(ts) > fakedTTL {
			delete(m.fakedEnd, k)
		}
	}
}
