package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risklab/internal/audit"
	"risklab/internal/domain"
	"risklab/internal/storage/memory"
)

func newTestTracker() (*Tracker, *memory.TraceStore, *audit.MemorySink) {
	traces := memory.NewTraceStore()
	sink := audit.NewMemorySink()
	tracker := NewTracker(TrackerOptions{
		Traces: traces,
		Audit:  sink,
		Clock:  func() time.Time { return time.UnixMilli(1700000000000).UTC() },
	})
	return tracker, traces, sink
}

func TestTracker_Record_DerivesRatio(t *testing.T) {
	tracker, traces, sink := newTestTracker()
	ctx := context.Background()

	entry, err := tracker.Record(ctx, Shock{
		DecisionID:      "dec-001",
		OptionID:        "opt-build",
		PreviousUtility: 50,
		NewUtility:      62,
		ShockMagnitude:  20,
		RecordedAt:      1000,
	})
	require.NoError(t, err)

	assert.Equal(t, 12.0, entry.DeltaUtility)
	assert.Equal(t, 0.6, entry.RecoveryRatio)
	assert.Equal(t, int64(1000), entry.RecordedAt)

	stored, err := traces.ListByDecision(ctx, "dec-001")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 0.6, stored[0].RecoveryRatio)

	events := sink.ByType(audit.EventLearningTraceUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, "dec-001", events[0].Payload["decisionId"])
	assert.Equal(t, 0.6, events[0].Payload["recoveryRatio"])
}

func TestTracker_Record_ZeroShockYieldsZeroRatio(t *testing.T) {
	tracker, _, _ := newTestTracker()

	entry, err := tracker.Record(context.Background(), Shock{
		DecisionID:      "dec-001",
		OptionID:        "opt-build",
		PreviousUtility: 50,
		NewUtility:      40,
		ShockMagnitude:  0,
		RecordedAt:      1000,
	})
	require.NoError(t, err)

	assert.Equal(t, -10.0, entry.DeltaUtility)
	assert.Equal(t, 0.0, entry.RecoveryRatio)
}

func TestTracker_Record_FillsRecordedAtFromClock(t *testing.T) {
	tracker, _, _ := newTestTracker()

	entry, err := tracker.Record(context.Background(), Shock{
		DecisionID:     "dec-001",
		OptionID:       "opt-build",
		ShockMagnitude: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), entry.RecordedAt)
}

func TestTracker_Record_RejectsInvalid(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()

	_, err := tracker.Record(ctx, Shock{OptionID: "opt-build"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = tracker.Record(ctx, Shock{
		DecisionID:     "dec-001",
		OptionID:       "opt-build",
		ShockMagnitude: -1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestTracker_Assess(t *testing.T) {
	tracker, _, _ := newTestTracker()
	ctx := context.Background()

	shocks := []Shock{
		{DecisionID: "dec-001", OptionID: "opt-build", PreviousUtility: 50, NewUtility: 62, ShockMagnitude: 20, RecordedAt: 1000},
		{DecisionID: "dec-001", OptionID: "opt-build", PreviousUtility: 62, NewUtility: 64, ShockMagnitude: 10, RecordedAt: 2000},
		{DecisionID: "dec-001", OptionID: "opt-build", PreviousUtility: 64, NewUtility: 68, ShockMagnitude: 10, RecordedAt: 3000},
	}
	for _, s := range shocks {
		_, err := tracker.Record(ctx, s)
		require.NoError(t, err)
	}

	// Ratios 0.6, 0.2, 0.4 average to 0.4
	report, err := tracker.Assess(ctx, "dec-001")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, report.Score, 1e-12)
	assert.Equal(t, domain.BandAntifragile, report.Band)
	assert.Equal(t, 3, report.Entries)
}

func TestTracker_Assess_EmptyTrace(t *testing.T) {
	tracker, _, _ := newTestTracker()

	report, err := tracker.Assess(context.Background(), "dec-unknown")
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.Score)
	assert.Equal(t, domain.BandRobust, report.Band)
	assert.Equal(t, 0, report.Entries)
}

func TestClassify_Bands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{-0.7, domain.BandHighlyFragile},
		{-0.6, domain.BandHighlyFragile},
		{-0.5, domain.BandHighlyFragile},
		{-0.3, domain.BandFragile},
		{-0.1, domain.BandFragile},
		{-0.05, domain.BandRobust},
		{0, domain.BandRobust},
		{0.09, domain.BandRobust},
		{0.1, domain.BandAntifragile},
		{0.49, domain.BandAntifragile},
		{0.5, domain.BandHighlyAntifragile},
		{0.6, domain.BandHighlyAntifragile},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.score), "score %f", tc.score)
	}
}

func TestScore_MeanRecoveryRatio(t *testing.T) {
	entries := []*domain.LearningTraceEntry{
		{RecoveryRatio: 0.5},
		{RecoveryRatio: -0.1},
		{RecoveryRatio: 0.2},
	}
	assert.InDelta(t, 0.2, Score(entries), 1e-12)
	assert.Equal(t, 0.0, Score(nil))
}
