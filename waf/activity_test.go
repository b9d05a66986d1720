package waf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollguard/store"
)

func TestRecordEscalatesAtThreshold(t *testing.T) {
	blocks := store.NewLocalStore()
	tr := NewActivityTracker(blocks, 10, time.Hour)

	for i := 0; i < 9; i++ {
		assert.Equal(t, Tracked, tr.Record("198.51.100.7", SeverityHigh))
		assert.False(t, blocks.IsBlocked("198.51.100.7"))
	}
	assert.Equal(t, NewlyBlocked, tr.Record("198.51.100.7", SeverityHigh))
	assert.True(t, blocks.IsBlocked("198.51.100.7"))
}

func TestRecordLowSeverityNeverPromotes(t *testing.T) {
	blocks := store.NewLocalStore()
	tr := NewActivityTracker(blocks, 5, time.Hour)

	for i := 0; i < 20; i++ {
		assert.Equal(t, Tracked, tr.Record("198.51.100.8", SeverityMedium))
	}
	assert.False(t, blocks.IsBlocked("198.51.100.8"))
}

func TestRecordCriticalQualifies(t *testing.T) {
	blocks := store.NewLocalStore()
	tr := NewActivityTracker(blocks, 3, time.Hour)

	tr.Record("198.51.100.9", SeverityCritical)
	tr.Record("198.51.100.9", SeverityCritical)
	assert.Equal(t, NewlyBlocked, tr.Record("198.51.100.9", SeverityCritical))
	assert.True(t, blocks.IsBlocked("198.51.100.9"))
}

func TestEventCountMonotonic(t *testing.T) {
	tr := NewActivityTracker(store.NewLocalStore(), 100, time.Hour)
	last := 0
	for i := 0; i < 10; i++ {
		tr.Record("203.0.113.1", SeverityLow)
		snap := tr.Snapshot()
		require.Len(t, snap, 1)
		assert.Greater(t, snap[0].EventCount, last)
		last = snap[0].EventCount
	}
}

func TestSweepEvictsStaleRecordsOnly(t *testing.T) {
	blocks := store.NewLocalStore()
	tr := NewActivityTracker(blocks, 10, time.Hour)

	base := time.Now()
	tr.now = func() time.Time { return base }
	tr.Record("198.51.100.10", SeverityHigh)

	tr.now = func() time.Time { return base.Add(30 * time.Minute) }
	tr.Record("198.51.100.11", SeverityHigh)

	evicted := tr.Sweep(base.Add(90 * time.Minute))
	assert.Equal(t, 1, evicted)

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "198.51.100.11", snap[0].ClientID)
}

func TestSweepNeverUnblocks(t *testing.T) {
	blocks := store.NewLocalStore()
	tr := NewActivityTracker(blocks, 1, time.Hour)

	require.Equal(t, NewlyBlocked, tr.Record("198.51.100.12", SeverityHigh))
	require.True(t, blocks.IsBlocked("198.51.100.12"))

	tr.Sweep(time.Now().Add(48 * time.Hour))
	assert.Empty(t, tr.Snapshot(), "record evicted")
	assert.True(t, blocks.IsBlocked("198.51.100.12"), "block must survive the sweep")
}

func TestOnBlockHookFires(t *testing.T) {
	tr := NewActivityTracker(store.NewLocalStore(), 1, time.Hour)
	var gotClient string
	tr.OnBlock = func(clientID string, rec ActivityRecord) { gotClient = clientID }

	tr.Record("198.51.100.13", SeverityCritical)
	assert.Equal(t, "198.51.100.13", gotClient)
}

func TestStartStopDoesNotLeak(t *testing.T) {
	tr := NewActivityTracker(store.NewLocalStore(), 10, time.Hour)
	tr.Start()
	tr.Start() // second Start is a no-op
	tr.Stop()
	tr.Stop() // and Stop is idempotent
}
