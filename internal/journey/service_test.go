package journey

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ecojourney/internal/activity"
	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/metrics"
	"github.com/rshade/ecojourney/internal/nudge"
	"github.com/rshade/ecojourney/internal/refdata"
	"github.com/rshade/ecojourney/internal/saf"
)

// 09:00 in Singapore, outside both meal windows.
var start = time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc    *Service
	log    activity.Log
	clock  *testClock
}

func newFixture(t *testing.T, log activity.Log) fixture {
	t.Helper()

	refs, err := refdata.LoadDefault()
	require.NoError(t, err)
	calc := emissions.NewCalculator(refs, greenops.DefaultRadiativeForcingModel())

	clock := &testClock{now: start}
	safLedger, err := saf.NewLedger(saf.DefaultMarket(), saf.WithClock(clock.Now))
	require.NoError(t, err)

	engine, err := ecopoints.NewEngine(refs.Tiers())
	require.NoError(t, err)
	points := ecopoints.NewLedger(engine, ecopoints.WithLoader(PointsLoader(log)))

	settings := nudge.DefaultSettings()
	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)
	settings.Location = loc
	settings.CupStations = refs.CupStations()
	nudges, err := nudge.NewEngine(nudge.NewMemoryHistoryStore(), settings, nudge.WithClock(clock))
	require.NoError(t, err)

	svc, err := New(Deps{
		Calculator:          calc,
		SAF:                 safLedger,
		OffsetPricePerTonne: saf.DefaultOffsetPricePerTonne,
		Points:              points,
		Nudges:              nudges,
		Activities:          log,
		Metrics:             metrics.New(false),
		Now:                 clock.Now,
	})
	require.NoError(t, err)
	return fixture{svc: svc, log: log, clock: clock}
}

func (f fixture) fly(t *testing.T, userID string) FlightOutcome {
	t.Helper()
	out, err := f.svc.CalculateFlight(context.Background(), userID, emissions.NewRequest("SIN-LHR"))
	require.NoError(t, err)
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	require.Error(t, err)

	f := newFixture(t, activity.NewMemoryLog())
	_, err = New(Deps{
		Calculator: f.svc.calc,
		SAF:        f.svc.saf,
		Points:     f.svc.points,
		Nudges:     f.svc.nudges,
		Activities: f.log,
	})
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
}

func TestCalculateFlight_RecordsActivity(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	out := f.fly(t, "u1")
	assert.Equal(t, "SIN-LHR", out.Result.RouteID)
	assert.InDelta(t, 1818.24, out.Result.EmissionsCO2eKg, 0.01)
	assert.False(t, out.Equivalencies.IsEmpty)
	assert.NotEmpty(t, out.ActivityID)

	acts, err := f.svc.Activities(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	flight, ok := acts[0].Details.(activity.FlightCalculated)
	require.True(t, ok)
	assert.Equal(t, "LHR", flight.Destination)
	assert.InDelta(t, out.Result.EmissionsCO2eKg, flight.CO2eKg, 1e-9)
	assert.Zero(t, acts[0].Points)
}

func TestCalculateFlight_UnknownRoute(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())

	_, err := f.svc.CalculateFlight(context.Background(), "u1", emissions.NewRequest("SIN-XXX"))
	require.ErrorIs(t, err, greenops.ErrNotFound)

	acts, err := f.svc.Activities(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, acts)
}

func TestContributeSAFByPercent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	t.Run("needs a flight first", func(t *testing.T) {
		_, err := f.svc.ContributeSAFByPercent(ctx, "nobody", 50)
		require.ErrorIs(t, err, ErrNoFlight)
		require.ErrorIs(t, err, greenops.ErrNotFound)
	})

	flight := f.fly(t, "u1")
	out, err := f.svc.ContributeSAFByPercent(ctx, "u1", 10)
	require.NoError(t, err)

	c := out.Contribution
	assert.Equal(t, saf.StatusPending, c.VerificationStatus)
	assert.InDelta(t, flight.Result.EmissionsCO2eKg*0.10, c.CO2eAvoidedKg, 1e-6)
	assert.InDelta(t, 10, saf.CoverageOf(c, flight.Result.EmissionsCO2eKg), 1e-9)

	// First tier multiplier is 1.0, so the credit equals the base award.
	assert.Equal(t, c.EcoPoints(), out.Credit.Delta)
	assert.Equal(t, int64(0), out.Credit.Before)
	require.NotNil(t, out.Credit.Upgrade)
	assert.Equal(t, "green-explorer", out.Credit.Upgrade.From.ID)

	summary, err := f.svc.Points(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, out.Credit.After, summary.Account.TotalPoints)
	assert.Equal(t, summary.Account.TierID, summary.Progress.CurrentTier.ID)

	_, err = f.svc.ContributeSAFByPercent(ctx, "u1", 101)
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
}

func TestContributeSAFByAmount(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	out, err := f.svc.ContributeSAFByAmount(ctx, "u1", 25)
	require.NoError(t, err)
	assert.InDelta(t, 10, out.Contribution.LitersAttributed, 1e-9)
	assert.Equal(t, int64(250), out.Credit.Delta)
	assert.Nil(t, out.Credit.Upgrade)

	_, err = f.svc.ContributeSAFByAmount(ctx, "u1", -1)
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
}

func TestPurchaseOffset(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	_, err := f.svc.PurchaseOffset(ctx, "u1", 100)
	require.ErrorIs(t, err, ErrNoFlight)

	flight := f.fly(t, "u1")
	out, err := f.svc.PurchaseOffset(ctx, "u1", 100)
	require.NoError(t, err)
	assert.InDelta(t, flight.Result.EmissionsCO2eKg, out.Offset.KgCovered, 1e-9)
	assert.InDelta(t, flight.Result.EmissionsCO2eKg/1000*15, out.Offset.Cost, 1e-9)
	assert.Equal(t, out.Offset.EcoPoints(), out.Credit.Delta)

	j, err := f.svc.Journey(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, j.OffsetPurchased)
	assert.True(t, j.HasContribution())
}

func TestRecordAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     ActionRequest
		points  int64
		wantErr error
	}{
		{"cup return", ActionRequest{Kind: ecopoints.ActionCircularity, StationID: "T3-B-PIER"}, 20, nil},
		{"plant-based meal", ActionRequest{Kind: ecopoints.ActionPlantBasedMeal, Venue: "Food court"}, 15, nil},
		{"public transport", ActionRequest{Kind: ecopoints.ActionPublicTransportTrip, Mode: "MRT"}, 30, nil},
		{"green merchant", ActionRequest{Kind: ecopoints.ActionGreenMerchantPurchase, Merchant: "Refill shop", Amount: 12}, 36, nil},
		{"saf via actions", ActionRequest{Kind: ecopoints.ActionSAFContribution, Amount: 10}, 0, greenops.ErrInvalidInput},
		{"offset via actions", ActionRequest{Kind: ecopoints.ActionOffsetPurchase, Amount: 10}, 0, greenops.ErrInvalidInput},
		{"unknown kind", ActionRequest{Kind: "skydiving"}, 0, greenops.ErrNotFound},
		{"negative amount", ActionRequest{Kind: ecopoints.ActionGreenMerchantPurchase, Amount: -5}, 0, greenops.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, activity.NewMemoryLog())

			out, err := f.svc.RecordAction(context.Background(), "u1", tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				summary, sErr := f.svc.Points(context.Background(), "u1")
				require.NoError(t, sErr)
				assert.Zero(t, summary.Account.TotalPoints)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.points, out.Credit.Delta)
			assert.NotEmpty(t, out.ActivityID)
		})
	}
}

func TestRecordAction_TierMultiplierUsesPreCreditTier(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	// 50 dollars of SAF is exactly 500 points: the credit lands on the
	// Eco Champion boundary at multiplier 1.0.
	out, err := f.svc.ContributeSAFByAmount(ctx, "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(500), out.Credit.Delta)
	require.NotNil(t, out.Credit.Upgrade)
	assert.Equal(t, "eco-champion", out.Credit.Upgrade.To.ID)

	// From Eco Champion on, awards are scaled by 1.1.
	trip, err := f.svc.RecordAction(ctx, "u1", ActionRequest{Kind: ecopoints.ActionPublicTransportTrip})
	require.NoError(t, err)
	assert.Equal(t, int64(33), trip.Credit.Delta)
}

type failingLog struct {
	activity.Log
	failKinds map[activity.Kind]bool
}

func (l failingLog) Append(ctx context.Context, a activity.Activity) (activity.Activity, error) {
	if a.Details != nil && l.failKinds[a.Details.Kind()] {
		return activity.Activity{}, errors.New("disk full")
	}
	return l.Log.Append(ctx, a)
}

func TestCreditRolledBackWhenRecordingFails(t *testing.T) {
	t.Parallel()
	log := failingLog{
		Log:       activity.NewMemoryLog(),
		failKinds: map[activity.Kind]bool{activity.KindPlantBasedMeal: true},
	}
	f := newFixture(t, log)
	ctx := context.Background()

	_, err := f.svc.RecordAction(ctx, "u1", ActionRequest{Kind: ecopoints.ActionPublicTransportTrip})
	require.NoError(t, err)

	_, err = f.svc.RecordAction(ctx, "u1", ActionRequest{Kind: ecopoints.ActionPlantBasedMeal})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	summary, err := f.svc.Points(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), summary.Account.TotalPoints)
	assert.Equal(t, int64(30), summary.Account.LifetimePoints)
}

func TestVerifyContribution(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	out, err := f.svc.ContributeSAFByAmount(ctx, "u1", 10)
	require.NoError(t, err)
	id := out.Contribution.CertificateID

	_, err = f.svc.VerifyContribution(ctx, "SAF-UNKNOWN", saf.StatusVerified)
	require.ErrorIs(t, err, ErrCertificateNotFound)
	require.ErrorIs(t, err, greenops.ErrNotFound)

	c, err := f.svc.VerifyContribution(ctx, id, saf.StatusVerified)
	require.NoError(t, err)
	assert.Equal(t, saf.StatusVerified, c.VerificationStatus)
	assert.InDelta(t, out.Contribution.LitersAttributed, c.LitersAttributed, 1e-9)

	// Repeating the current status changes nothing.
	c, err = f.svc.VerifyContribution(ctx, id, saf.StatusVerified)
	require.NoError(t, err)
	assert.Equal(t, saf.StatusVerified, c.VerificationStatus)

	_, err = f.svc.VerifyContribution(ctx, id, saf.StatusPending)
	require.ErrorIs(t, err, greenops.ErrInvalidInput)
	_, err = f.svc.VerifyContribution(ctx, id, saf.StatusRejected)
	require.ErrorIs(t, err, greenops.ErrInvalidInput)

	changes, err := f.log.Query(ctx, activity.Filter{Kinds: []activity.Kind{activity.KindSAFStatusChanged}})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "u1", changes[0].UserID)
	assert.Equal(t, activity.SAFStatusChanged{
		CertificateID: id,
		From:          string(saf.StatusPending),
		To:            string(saf.StatusVerified),
	}, changes[0].Details)
}

func TestNextNudge(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()

	n, err := f.svc.NextNudge(ctx, "u1", NudgeRequest{})
	require.NoError(t, err)
	assert.Nil(t, n, "nothing applies before a flight outside meal times")

	f.fly(t, "u1")

	preview, err := f.svc.PreviewNudge(ctx, "u1", NudgeRequest{})
	require.NoError(t, err)
	require.NotNil(t, preview)
	assert.Equal(t, nudge.RulePostFlightCalculation, preview.ID)
	assert.Contains(t, preview.Message, "LHR")

	n, err = f.svc.NextNudge(ctx, "u1", NudgeRequest{})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, nudge.RulePostFlightCalculation, n.ID)

	n, err = f.svc.NextNudge(ctx, "u1", NudgeRequest{})
	require.NoError(t, err)
	assert.Nil(t, n, "cooldown applies after delivery")

	require.NoError(t, f.svc.DismissNudge(ctx, "u1", nudge.RulePostFlightCalculation))
	f.clock.Advance(31 * time.Minute)

	n, err = f.svc.NextNudge(ctx, "u1", NudgeRequest{})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, nudge.RulePreTripTransport, n.ID)

	require.ErrorIs(t, f.svc.DismissNudge(ctx, "u1", "no_such_rule"), greenops.ErrNotFound)
}

func TestNextNudge_ConcurrentCallsDeliverOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())
	ctx := context.Background()
	f.fly(t, "u1")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.svc.NextNudge(ctx, "u1", NudgeRequest{})
			assert.NoError(t, err)
			if n != nil {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, delivered)
}

func TestNextNudge_NearCupStation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, activity.NewMemoryLog())

	n, err := f.svc.NextNudge(context.Background(), "u1", NudgeRequest{
		Location: &nudge.Location{Latitude: 1.3565, Longitude: 103.9866},
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, nudge.RuleNearCupStation, n.ID)
	assert.Contains(t, n.Message, "Terminal 3")
}

func TestReconstruct(t *testing.T) {
	t.Parallel()

	acts := []activity.Activity{
		{Details: activity.FlightCalculated{RouteID: "SIN-NRT", Destination: "NRT", CO2eKg: 900}},
		{Details: activity.SAFContributed{CertificateID: "SAF-1"}},
		{Details: activity.PlantBasedMeal{}},
		{Details: activity.FlightCalculated{RouteID: "SIN-LHR", Destination: "LHR", CO2eKg: 1818.24}},
		{Details: activity.Circularity{Item: "reusable cup"}},
		{Details: activity.Circularity{Item: "reusable cup"}},
		{Details: activity.PlantBasedMeal{}},
		{Details: activity.PublicTransportTrip{Mode: "MRT"}},
	}

	j := Reconstruct(acts)
	assert.Equal(t, nudge.Journey{
		FlightCalculated:   true,
		RouteID:            "SIN-LHR",
		Destination:        "LHR",
		EmissionsCO2eKg:    1818.24,
		TransportLogged:    true,
		CircularityActions: 2,
		PlantBasedMeals:    1,
	}, j)
	assert.False(t, j.HasContribution(), "a new flight starts a new trip")

	assert.Equal(t, nudge.Journey{}, Reconstruct(nil))
}

func TestPointsLoader_RestoresBalances(t *testing.T) {
	t.Parallel()
	log := activity.NewMemoryLog()
	ctx := context.Background()

	first := newFixture(t, log)
	_, err := first.svc.RecordAction(ctx, "u1", ActionRequest{Kind: ecopoints.ActionPublicTransportTrip})
	require.NoError(t, err)
	_, err = first.svc.ContributeSAFByAmount(ctx, "u1", 20)
	require.NoError(t, err)

	// A fresh service over the same log starts from the recorded points.
	second := newFixture(t, log)
	summary, err := second.svc.Points(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(230), summary.Account.TotalPoints)
	assert.Equal(t, int64(230), summary.Account.LifetimePoints)
	assert.Equal(t, "green-explorer", summary.Account.TierID)
}
