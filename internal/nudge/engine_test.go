package nudge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/refdata"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	lunchtime = time.Date(2025, 6, 2, 12, 15, 0, 0, time.UTC)
	morning   = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
)

var testStation = refdata.CupStation{ID: "t3", Name: "Terminal 3 Cup Return", Latitude: 1.3564, Longitude: 103.9860}

func testSettings() Settings {
	s := DefaultSettings()
	s.CupStations = []refdata.CupStation{testStation}
	return s
}

func newTestEngine(t *testing.T, at time.Time) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock(at)
	e, err := NewEngine(NewMemoryHistoryStore(), testSettings(), WithClock(clock))
	require.NoError(t, err)
	return e, clock
}

func postFlight() Context {
	return Context{Journey: Journey{FlightCalculated: true, Destination: "LHR", EmissionsCO2eKg: 1818.24}}
}

func TestEvaluate_HighPriorityBeatsMealTime(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, lunchtime)

	n, err := e.Evaluate(context.Background(), "alice", postFlight())
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, RulePostFlightCalculation, n.ID)
	assert.Equal(t, PriorityHigh, n.Priority)
	assert.Contains(t, n.Message, "to LHR")
	assert.Contains(t, n.Message, "1.82 t")
	assert.Equal(t, "saf_contribution", n.ActionType)
}

func TestEvaluate_IsSideEffectFree(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, lunchtime)
	ctx := context.Background()

	first, err := e.Evaluate(ctx, "alice", postFlight())
	require.NoError(t, err)
	second, err := e.Evaluate(ctx, "alice", postFlight())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	h, err := e.History(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, h.LastSentAt.IsZero())
	assert.Empty(t, h.Dismissed)
}

func TestEvaluate_CooldownAfterMarkSent(t *testing.T) {
	t.Parallel()
	e, clock := newTestEngine(t, lunchtime)
	ctx := context.Background()

	n, err := e.Evaluate(ctx, "alice", postFlight())
	require.NoError(t, err)
	require.NotNil(t, n)
	require.NoError(t, e.MarkSent(ctx, "alice", n.ID))

	clock.Advance(10 * time.Minute)
	again, err := e.Evaluate(ctx, "alice", postFlight())
	require.NoError(t, err)
	if again != nil {
		assert.NotEqual(t, n.ID, again.ID)
		assert.Greater(t, again.Priority, n.Priority)
	}

	clock.Advance(DefaultCooldown)
	later, err := e.Evaluate(ctx, "alice", postFlight())
	require.NoError(t, err)
	require.NotNil(t, later)
	assert.Equal(t, RulePostFlightCalculation, later.ID)

	// Other users are unaffected.
	bob, err := e.Evaluate(ctx, "bob", postFlight())
	require.NoError(t, err)
	require.NotNil(t, bob)
}

func TestEvaluate_DismissedNeverReappears(t *testing.T) {
	t.Parallel()
	e, clock := newTestEngine(t, lunchtime)
	ctx := context.Background()

	require.NoError(t, e.MarkDismissed(ctx, "alice", RulePostFlightCalculation))

	for i := 0; i < 5; i++ {
		n, err := e.Evaluate(ctx, "alice", postFlight())
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.NotEqual(t, RulePostFlightCalculation, n.ID)
		clock.Advance(2 * time.Hour)
	}

	// Dismissing twice keeps a single entry.
	require.NoError(t, e.MarkDismissed(ctx, "alice", RulePostFlightCalculation))
	h, err := e.History(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{RulePostFlightCalculation}, h.Dismissed)
}

func TestEvaluate_TiesFollowCatalogOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("meal before transport at lunch", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, lunchtime)
		require.NoError(t, e.MarkDismissed(ctx, "u", RulePostFlightCalculation))
		n, err := e.Evaluate(ctx, "u", postFlight())
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Equal(t, RuleMealTimePlantBased, n.ID)
	})

	t.Run("transport outside meal time", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, morning)
		require.NoError(t, e.MarkDismissed(ctx, "u", RulePostFlightCalculation))
		n, err := e.Evaluate(ctx, "u", postFlight())
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Equal(t, RulePreTripTransport, n.ID)
	})

	t.Run("post flight before tier upgrade", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, morning)
		nc := postFlight()
		nc.Progress = progressWithPointsToNext(40)

		n, err := e.Evaluate(ctx, "u", nc)
		require.NoError(t, err)
		assert.Equal(t, RulePostFlightCalculation, n.ID)

		require.NoError(t, e.MarkDismissed(ctx, "u", RulePostFlightCalculation))
		n, err = e.Evaluate(ctx, "u", nc)
		require.NoError(t, err)
		assert.Equal(t, RuleNearTierUpgrade, n.ID)
		assert.Contains(t, n.Message, "40 eco-points to Eco Champion")
	})
}

func progressWithPointsToNext(n int64) *ecopoints.Progress {
	next := refdata.Tier{ID: "eco-champion", Name: "Eco Champion", Level: 2, MinPoints: 500}
	return &ecopoints.Progress{
		Points:       500 - n,
		CurrentTier:  refdata.Tier{ID: "green-explorer", Name: "Green Explorer", Level: 1},
		PointsToNext: &n,
		NextTier:     &next,
	}
}

func TestRules_Conditions(t *testing.T) {
	t.Parallel()

	near := Location{Latitude: testStation.Latitude + 0.0009, Longitude: testStation.Longitude}
	far := Location{Latitude: testStation.Latitude + 0.005, Longitude: testStation.Longitude}

	tests := []struct {
		name string
		at   time.Time
		nc   Context
		want string
	}{
		{"nothing to say", morning, Context{}, ""},
		{"near cup station", morning, Context{Location: &near}, RuleNearCupStation},
		{"too far from cup station", morning, Context{Location: &far}, ""},
		{"tier upgrade within threshold", morning, Context{Progress: progressWithPointsToNext(100)}, RuleNearTierUpgrade},
		{"tier upgrade beyond threshold", morning, Context{Progress: progressWithPointsToNext(101)}, ""},
		{"top tier has nothing to reach", morning, Context{Progress: &ecopoints.Progress{Points: 9000}}, ""},
		{"dinner time", time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC), Context{}, RuleMealTimePlantBased},
		{"after dinner window", time.Date(2025, 6, 2, 21, 0, 0, 0, time.UTC), Context{}, ""},
		{"transport logged and contribution made", morning,
			Context{Journey: Journey{FlightCalculated: true, TransportLogged: true, SAFContributed: true}}, RuleJourneyComplete},
		{"offset counts as contribution", morning,
			Context{Journey: Journey{FlightCalculated: true, TransportLogged: true, OffsetPurchased: true}}, RuleJourneyComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, _ := newTestEngine(t, tt.at)
			n, err := e.Evaluate(context.Background(), "u", tt.nc)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, n)
				return
			}
			require.NotNil(t, n)
			assert.Equal(t, tt.want, n.ID)
		})
	}
}

func TestEvaluate_MealTimeUsesConfiguredZone(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Location = time.FixedZone("SGT", 8*60*60)
	// 04:30 UTC is 12:30 in Singapore.
	clock := newFakeClock(time.Date(2025, 6, 2, 4, 30, 0, 0, time.UTC))
	e, err := NewEngine(NewMemoryHistoryStore(), s, WithClock(clock))
	require.NoError(t, err)

	n, err := e.Evaluate(context.Background(), "u", Context{})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, RuleMealTimePlantBased, n.ID)
}

func TestEvaluateAndMark_AtomicPerUser(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, lunchtime)

	var (
		wg        sync.WaitGroup
		delivered atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := e.EvaluateAndMark(context.Background(), "alice", postFlight())
			if err != nil {
				t.Error(err)
				return
			}
			if n != nil {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), delivered.Load())

	h, err := e.History(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, lunchtime, h.LastSentAt)
	assert.Equal(t, RulePostFlightCalculation, h.LastNudgeID)
}

func TestEngine_Errors(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, lunchtime)
	ctx := context.Background()

	assert.ErrorIs(t, e.MarkDismissed(ctx, "alice", "free_upgrade"), greenops.ErrNotFound)
	assert.ErrorIs(t, e.MarkSent(ctx, "", RuleJourneyComplete), greenops.ErrInvalidInput)
	_, err := e.Evaluate(ctx, "", Context{})
	assert.ErrorIs(t, err, greenops.ErrInvalidInput)

	bad := DefaultSettings()
	bad.Cooldown = 0
	_, err = NewEngine(NewMemoryHistoryStore(), bad)
	assert.ErrorIs(t, err, greenops.ErrInvalidInput)

	bad = DefaultSettings()
	bad.MealWindows = []HourWindow{{Start: 20, End: 19}}
	_, err = NewEngine(NewMemoryHistoryStore(), bad)
	assert.ErrorIs(t, err, greenops.ErrInvalidInput)

	dup := DefaultCatalog(DefaultSettings())
	_, err = NewEngine(NewMemoryHistoryStore(), DefaultSettings(), WithRules(append(dup, dup[0])))
	assert.ErrorIs(t, err, greenops.ErrInvalidInput)
}

func TestEngine_CatalogOrder(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, lunchtime)
	assert.Equal(t, []string{
		RulePostFlightCalculation,
		RuleNearCupStation,
		RuleNearTierUpgrade,
		RuleMealTimePlantBased,
		RulePreTripTransport,
		RuleJourneyComplete,
	}, e.Rules())
}

func TestPriorityJSON(t *testing.T) {
	t.Parallel()

	for _, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		data, err := p.MarshalJSON()
		require.NoError(t, err)
		var got Priority
		require.NoError(t, got.UnmarshalJSON(data))
		assert.Equal(t, p, got)
	}
	var p Priority
	assert.Error(t, p.UnmarshalJSON([]byte(`"urgent"`)))
}
