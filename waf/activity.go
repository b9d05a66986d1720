package waf

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pollguard/logger"
	"pollguard/store"
)

// BlockDecision is the outcome of recording a finding against a client.
type BlockDecision int

const (
	// Tracked: the event was counted, the client stays unblocked.
	Tracked BlockDecision = iota
	// NewlyBlocked: this event pushed the client into the block set.
	NewlyBlocked
)

// ActivityRecord is the escalation state for one offending client.
type ActivityRecord struct {
	ClientID   string    `json:"client_id"`
	EventCount int       `json:"event_count"`
	LastSeen   time.Time `json:"last_seen"`
}

// ActivityTracker counts findings per client and promotes repeat offenders
// into the block set. A scheduled sweep evicts records not seen within the
// retention window; the sweep never touches the block set, auto-blocks stay
// until an explicit unblock.
type ActivityTracker struct {
	mu        sync.Mutex
	records   map[string]*ActivityRecord
	threshold int
	retention time.Duration
	blocks    store.Storer
	sched     *cron.Cron

	// OnBlock, if set, is called (outside the lock) when a client is
	// auto-blocked. Used for webhook alerting.
	OnBlock func(clientID string, rec ActivityRecord)

	now func() time.Time
}

const (
	defaultEscalationThreshold = 10
	defaultRetention           = time.Hour
)

func NewActivityTracker(blocks store.Storer, threshold int, retention time.Duration) *ActivityTracker {
	if threshold <= 0 {
		threshold = defaultEscalationThreshold
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &ActivityTracker{
		records:   make(map[string]*ActivityRecord),
		threshold: threshold,
		retention: retention,
		blocks:    blocks,
		now:       time.Now,
	}
}

// Start schedules the periodic sweep. Safe to call once per tracker; Stop
// cancels the schedule so repeated construction in tests does not leak.
func (t *ActivityTracker) Start() {
	if t.sched != nil {
		return
	}
	t.sched = cron.New()
	t.sched.Schedule(cron.Every(t.retention), cron.FuncJob(func() {
		evicted := t.Sweep(t.now())
		if evicted > 0 {
			logger.Info("activity sweep completed", "evicted", evicted)
		}
	}))
	t.sched.Start()
}

func (t *ActivityTracker) Stop() {
	if t.sched != nil {
		t.sched.Stop()
		t.sched = nil
	}
}

// Record counts one finding for clientID. When the count reaches the
// escalation threshold and the finding is High severity or worse, the
// client is added to the block set permanently.
func (t *ActivityTracker) Record(clientID string, severity Severity) BlockDecision {
	t.mu.Lock()
	rec, ok := t.records[clientID]
	if !ok {
		rec = &ActivityRecord{ClientID: clientID}
		t.records[clientID] = rec
		trackedClients.Inc()
	}
	rec.EventCount++
	rec.LastSeen = t.now()

	decision := Tracked
	var snapshot ActivityRecord
	if rec.EventCount >= t.threshold && severity >= SeverityHigh {
		t.blocks.Block(clientID, store.BlockInfo{
			Source:    "auto",
			Reason:    "escalation threshold reached",
			CreatedAt: t.now(),
		})
		decision = NewlyBlocked
		snapshot = *rec
	}
	t.mu.Unlock()

	if decision == NewlyBlocked {
		logger.Warn("client auto-blocked",
			"client", clientID, "events", snapshot.EventCount, "threshold", t.threshold)
		if t.OnBlock != nil {
			t.OnBlock(clientID, snapshot)
		}
	}
	return decision
}

// Sweep evicts records whose last event is older than the retention window
// and returns the number evicted. Block-set entries are left alone.
func (t *ActivityTracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for id, rec := range t.records {
		if now.Sub(rec.LastSeen) > t.retention {
			delete(t.records, id)
			trackedClients.Dec()
			evicted++
		}
	}
	return evicted
}

// Snapshot returns a copy of all live records for the admin surface.
func (t *ActivityTracker) Snapshot() []ActivityRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ActivityRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}
