// Package journey runs one user action end to end: it calls the
// calculators, credits eco-points, records the activity, and asks the
// nudge engine what to show next.
package journey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rshade/ecojourney/internal/activity"
	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/logging"
	"github.com/rshade/ecojourney/internal/metrics"
	"github.com/rshade/ecojourney/internal/nudge"
	"github.com/rshade/ecojourney/internal/refdata"
	"github.com/rshade/ecojourney/internal/saf"
)

// ErrNoFlight is returned when a contribution needs a flight and the
// user has not calculated one.
var ErrNoFlight = fmt.Errorf("flight %w: calculate a flight first", greenops.ErrNotFound)

// ErrCertificateNotFound is returned for an unknown SAF certificate.
var ErrCertificateNotFound = fmt.Errorf("certificate %w", greenops.ErrNotFound)

// Deps are the collaborators of a Service. Metrics may be nil.
type Deps struct {
	Calculator          *emissions.Calculator
	SAF                 *saf.Ledger
	OffsetPricePerTonne float64
	Points              *ecopoints.Ledger
	Nudges              *nudge.Engine
	Activities          activity.Log
	Metrics             *metrics.Metrics
	Now                 func() time.Time
}

// Service is safe for concurrent use.
type Service struct {
	calc        *emissions.Calculator
	saf         *saf.Ledger
	offsetPrice float64
	points      *ecopoints.Ledger
	nudges      *nudge.Engine
	log         activity.Log
	metrics     *metrics.Metrics
	now         func() time.Time

	verifyMu sync.Mutex
}

// New validates deps and returns a Service.
func New(d Deps) (*Service, error) {
	switch {
	case d.Calculator == nil:
		return nil, errors.New("journey: calculator is required")
	case d.SAF == nil:
		return nil, errors.New("journey: SAF ledger is required")
	case d.Points == nil:
		return nil, errors.New("journey: points ledger is required")
	case d.Nudges == nil:
		return nil, errors.New("journey: nudge engine is required")
	case d.Activities == nil:
		return nil, errors.New("journey: activity log is required")
	case d.OffsetPricePerTonne <= 0:
		return nil, fmt.Errorf("%w: offset price per tonne must be positive", greenops.ErrInvalidInput)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New(false)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		calc:        d.Calculator,
		saf:         d.SAF,
		offsetPrice: d.OffsetPricePerTonne,
		points:      d.Points,
		nudges:      d.Nudges,
		log:         d.Activities,
		metrics:     d.Metrics,
		now:         d.Now,
	}, nil
}

// PointsLoader restores balances by summing the points recorded in the
// activity log.
func PointsLoader(log activity.Log) ecopoints.Loader {
	return func(userID string) (ecopoints.Balance, error) {
		acts, err := log.Query(context.Background(), activity.Filter{UserID: userID})
		if err != nil {
			return ecopoints.Balance{}, err
		}
		var total int64
		for _, a := range acts {
			total += a.Points
		}
		return ecopoints.Balance{Total: total, Lifetime: total}, nil
	}
}

// FlightOutcome is the result of CalculateFlight.
type FlightOutcome struct {
	Result        emissions.FlightEmissionResult `json:"result"`
	Equivalencies greenops.EquivalencyOutput     `json:"equivalencies"`
	ActivityID    string                         `json:"activity_id,omitempty"`
}

// EstimateFlight computes a flight's emissions without recording them.
func (s *Service) EstimateFlight(req emissions.Request) (FlightOutcome, error) {
	res, err := s.calc.Calculate(req)
	if err != nil {
		return FlightOutcome{}, err
	}
	eq, err := greenops.CalculateKg(res.EmissionsCO2eKg)
	if err != nil {
		return FlightOutcome{}, err
	}
	return FlightOutcome{Result: res, Equivalencies: eq}, nil
}

// Tiers returns the tier catalog, lowest first.
func (s *Service) Tiers() []refdata.Tier { return s.points.Engine().Tiers() }

// Tier looks up one tier by id.
func (s *Service) Tier(id string) (refdata.Tier, error) { return s.points.Engine().Tier(id) }

// CalculateFlight computes and records a flight's emissions.
func (s *Service) CalculateFlight(ctx context.Context, userID string, req emissions.Request) (FlightOutcome, error) {
	logger := logging.FromContext(ctx).With().Str("component", "journey").Str("user_id", userID).Logger()

	out, err := s.EstimateFlight(req)
	if err != nil {
		s.metrics.FlightCalculations.WithLabelValues("error").Inc()
		return FlightOutcome{}, err
	}
	res := out.Result

	stored, err := s.log.Append(ctx, activity.Activity{
		UserID:     userID,
		OccurredAt: s.now(),
		Details: activity.FlightCalculated{
			RouteID:     res.RouteID,
			Destination: res.Destination,
			Passengers:  res.Passengers,
			CabinClass:  string(res.CabinClass),
			CO2Kg:       res.EmissionsCO2Kg,
			CO2eKg:      res.EmissionsCO2eKg,
		},
	})
	if err != nil {
		return FlightOutcome{}, fmt.Errorf("recording flight: %w", err)
	}

	s.metrics.FlightCalculations.WithLabelValues("ok").Inc()
	s.metrics.FlightCO2eKg.Observe(res.EmissionsCO2eKg)
	logger.Info().
		Str("route_id", res.RouteID).
		Int("passengers", res.Passengers).
		Float64("co2e_kg", res.EmissionsCO2eKg).
		Msg("flight emissions calculated")

	out.ActivityID = stored.ID
	return out, nil
}

// ContributionOutcome is the result of a SAF contribution.
type ContributionOutcome struct {
	Contribution saf.Contribution `json:"contribution"`
	Credit       ecopoints.Credit `json:"credit"`
	ActivityID   string           `json:"activity_id"`
}

// ContributeSAFByPercent covers percent of the user's latest flight.
func (s *Service) ContributeSAFByPercent(ctx context.Context, userID string, percent float64) (ContributionOutcome, error) {
	flight, err := s.latestFlight(ctx, userID)
	if err != nil {
		return ContributionOutcome{}, err
	}
	c, err := s.saf.FromCoveragePercent(flight.CO2eKg, percent)
	if err != nil {
		return ContributionOutcome{}, err
	}
	return s.recordContribution(ctx, userID, c)
}

// ContributeSAFByAmount spends amount on SAF.
func (s *Service) ContributeSAFByAmount(ctx context.Context, userID string, amount float64) (ContributionOutcome, error) {
	c, err := s.saf.FromContributionAmount(amount)
	if err != nil {
		return ContributionOutcome{}, err
	}
	return s.recordContribution(ctx, userID, c)
}

func (s *Service) recordContribution(ctx context.Context, userID string, c saf.Contribution) (ContributionOutcome, error) {
	credit, activityID, err := s.creditAndRecord(ctx, userID,
		ecopoints.Action{Kind: ecopoints.ActionSAFContribution, Amount: c.CostAmount},
		activity.SAFContributed{
			CertificateID:  c.CertificateID,
			Provider:       c.Provider,
			PercentCovered: c.PercentCovered,
			Liters:         c.LitersAttributed,
			CO2eAvoidedKg:  c.CO2eAvoidedKg,
			Cost:           c.CostAmount,
			Status:         string(c.VerificationStatus),
		})
	if err != nil {
		return ContributionOutcome{}, err
	}

	s.metrics.SAFContributions.Inc()
	s.metrics.SAFLiters.Add(c.LitersAttributed)
	s.metrics.SAFAvoidedKg.Add(c.CO2eAvoidedKg)
	logging.FromContext(ctx).Info().
		Str("component", "journey").
		Str("user_id", userID).
		Str("certificate_id", c.CertificateID).
		Float64("liters", c.LitersAttributed).
		Float64("cost", c.CostAmount).
		Int64("points", credit.Delta).
		Msg("SAF contribution recorded")

	return ContributionOutcome{Contribution: c, Credit: credit, ActivityID: activityID}, nil
}

// OffsetOutcome is the result of PurchaseOffset.
type OffsetOutcome struct {
	Offset     saf.OffsetPurchase `json:"offset"`
	Credit     ecopoints.Credit   `json:"credit"`
	ActivityID string             `json:"activity_id"`
}

// PurchaseOffset buys generic offsets for percent of the latest flight.
func (s *Service) PurchaseOffset(ctx context.Context, userID string, percent float64) (OffsetOutcome, error) {
	flight, err := s.latestFlight(ctx, userID)
	if err != nil {
		return OffsetOutcome{}, err
	}
	o, err := saf.QuoteOffset(flight.CO2eKg, percent, s.offsetPrice)
	if err != nil {
		return OffsetOutcome{}, err
	}
	credit, activityID, err := s.creditAndRecord(ctx, userID,
		ecopoints.Action{Kind: ecopoints.ActionOffsetPurchase, Amount: o.Cost},
		activity.OffsetPurchased{
			PercentCovered: o.PercentCovered,
			KgCovered:      o.KgCovered,
			PricePerTonne:  o.PricePerTonne,
			Cost:           o.Cost,
		})
	if err != nil {
		return OffsetOutcome{}, err
	}
	s.metrics.OffsetPurchases.Inc()
	return OffsetOutcome{Offset: o, Credit: credit, ActivityID: activityID}, nil
}

// ActionRequest describes a discrete green action.
type ActionRequest struct {
	Kind      ecopoints.ActionKind `json:"kind"`
	Amount    float64              `json:"amount,omitempty"`
	Merchant  string               `json:"merchant,omitempty"`
	Venue     string               `json:"venue,omitempty"`
	StationID string               `json:"station_id,omitempty"`
	Item      string               `json:"item,omitempty"`
	Mode      string               `json:"mode,omitempty"`
}

// ActionOutcome is the result of RecordAction.
type ActionOutcome struct {
	Credit     ecopoints.Credit `json:"credit"`
	ActivityID string           `json:"activity_id"`
}

// RecordAction credits a circularity, dining, merchant or transport
// action. SAF and offsets have their own entry points.
func (s *Service) RecordAction(ctx context.Context, userID string, req ActionRequest) (ActionOutcome, error) {
	var details activity.Details
	switch req.Kind {
	case ecopoints.ActionCircularity:
		item := req.Item
		if item == "" {
			item = "reusable cup"
		}
		details = activity.Circularity{StationID: req.StationID, Item: item}
	case ecopoints.ActionPlantBasedMeal:
		details = activity.PlantBasedMeal{Venue: req.Venue}
	case ecopoints.ActionGreenMerchantPurchase:
		details = activity.GreenMerchantPurchase{Merchant: req.Merchant, Amount: req.Amount}
	case ecopoints.ActionPublicTransportTrip:
		mode := req.Mode
		if mode == "" {
			mode = "public transport"
		}
		details = activity.PublicTransportTrip{Mode: mode}
	case ecopoints.ActionSAFContribution, ecopoints.ActionOffsetPurchase:
		return ActionOutcome{}, fmt.Errorf("%w: %s is recorded through its own endpoint", greenops.ErrInvalidInput, req.Kind)
	default:
		return ActionOutcome{}, fmt.Errorf("action %q: %w", req.Kind, greenops.ErrNotFound)
	}

	credit, id, err := s.creditAndRecord(ctx, userID, ecopoints.Action{Kind: req.Kind, Amount: req.Amount}, details)
	if err != nil {
		return ActionOutcome{}, err
	}
	return ActionOutcome{Credit: credit, ActivityID: id}, nil
}

// creditAndRecord awards points then appends the activity. A failed
// append takes the points back out.
func (s *Service) creditAndRecord(ctx context.Context, userID string, action ecopoints.Action, details activity.Details) (ecopoints.Credit, string, error) {
	credit, err := s.points.AwardAction(userID, action)
	if err != nil {
		return ecopoints.Credit{}, "", err
	}
	stored, err := s.log.Append(ctx, activity.Activity{
		UserID:     userID,
		OccurredAt: s.now(),
		Points:     credit.Delta,
		Details:    details,
	})
	if err != nil {
		if undoErr := s.points.Revert(credit); undoErr != nil {
			err = errors.Join(err, fmt.Errorf("reverting points: %w", undoErr))
		}
		return ecopoints.Credit{}, "", fmt.Errorf("recording %s: %w", action.Kind, err)
	}

	s.metrics.PointsAwarded.WithLabelValues(string(action.Kind)).Add(float64(credit.Delta))
	if credit.Upgrade != nil {
		s.metrics.TierUpgrades.WithLabelValues(credit.Upgrade.To.ID).Inc()
		logging.FromContext(ctx).Info().
			Str("component", "journey").
			Str("user_id", userID).
			Str("from_tier", credit.Upgrade.From.ID).
			Str("to_tier", credit.Upgrade.To.ID).
			Msg("tier upgrade")
	}
	return credit, stored.ID, nil
}

// VerifyContribution applies a verification registry decision to the
// certificate. Regressions such as verified → pending are refused.
func (s *Service) VerifyContribution(ctx context.Context, certificateID string, status saf.Status) (saf.Contribution, error) {
	s.verifyMu.Lock()
	defer s.verifyMu.Unlock()

	acts, err := s.log.Query(ctx, activity.Filter{
		Kinds: []activity.Kind{activity.KindSAFContributed, activity.KindSAFStatusChanged},
	})
	if err != nil {
		return saf.Contribution{}, err
	}

	var (
		found  bool
		userID string
		c      saf.Contribution
	)
	for _, a := range acts {
		switch d := a.Details.(type) {
		case activity.SAFContributed:
			if d.CertificateID == certificateID {
				found, userID = true, a.UserID
				c = saf.Contribution{
					CertificateID:      d.CertificateID,
					Provider:           d.Provider,
					PercentCovered:     d.PercentCovered,
					LitersAttributed:   d.Liters,
					CO2eAvoidedKg:      d.CO2eAvoidedKg,
					CostAmount:         d.Cost,
					VerificationStatus: saf.Status(d.Status),
					CreatedAt:          a.OccurredAt,
				}
			}
		case activity.SAFStatusChanged:
			if d.CertificateID == certificateID {
				c.VerificationStatus = saf.Status(d.To)
			}
		}
	}
	if !found {
		return saf.Contribution{}, fmt.Errorf("%w: %q", ErrCertificateNotFound, certificateID)
	}

	from := c.VerificationStatus
	next, err := saf.Transition(c, status)
	if err != nil {
		return c, err
	}
	if next.VerificationStatus == from {
		return next, nil
	}
	if _, err := s.log.Append(ctx, activity.Activity{
		UserID:     userID,
		OccurredAt: s.now(),
		Details: activity.SAFStatusChanged{
			CertificateID: certificateID,
			From:          string(from),
			To:            string(next.VerificationStatus),
		},
	}); err != nil {
		return c, fmt.Errorf("recording verification: %w", err)
	}
	return next, nil
}

// PointsSummary is a user's balance and tier position.
type PointsSummary struct {
	Account  ecopoints.Account  `json:"account"`
	Progress ecopoints.Progress `json:"progress"`
}

// Points returns the user's balance and tier progress.
func (s *Service) Points(_ context.Context, userID string) (PointsSummary, error) {
	acct, err := s.points.Account(userID)
	if err != nil {
		return PointsSummary{}, err
	}
	return PointsSummary{Account: acct, Progress: s.points.Engine().Progress(acct.TotalPoints)}, nil
}

// NudgeRequest carries request-time context the log cannot know.
type NudgeRequest struct {
	Location *nudge.Location `json:"location,omitempty"`
}

// NextNudge picks and marks the nudge to deliver now, or returns nil.
func (s *Service) NextNudge(ctx context.Context, userID string, req NudgeRequest) (*nudge.Nudge, error) {
	nc, err := s.nudgeContext(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	n, err := s.nudges.EvaluateAndMark(ctx, userID, nc)
	if err != nil {
		return nil, err
	}
	if n != nil {
		s.metrics.NudgesDelivered.WithLabelValues(n.ID).Inc()
		logging.FromContext(ctx).Debug().
			Str("component", "journey").
			Str("user_id", userID).
			Str("nudge_id", n.ID).
			Msg("nudge delivered")
	}
	return n, nil
}

// PreviewNudge reports what NextNudge would return without marking it.
func (s *Service) PreviewNudge(ctx context.Context, userID string, req NudgeRequest) (*nudge.Nudge, error) {
	nc, err := s.nudgeContext(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return s.nudges.Evaluate(ctx, userID, nc)
}

// DismissNudge stops nudgeID from being shown to the user again.
func (s *Service) DismissNudge(ctx context.Context, userID, nudgeID string) error {
	if err := s.nudges.MarkDismissed(ctx, userID, nudgeID); err != nil {
		return err
	}
	s.metrics.NudgesDismissed.WithLabelValues(nudgeID).Inc()
	return nil
}

// NudgeHistory returns the user's nudge delivery and dismissal state.
func (s *Service) NudgeHistory(ctx context.Context, userID string) (nudge.History, error) {
	if userID == "" {
		return nudge.History{}, fmt.Errorf("%w: empty user id", greenops.ErrInvalidInput)
	}
	return s.nudges.History(ctx, userID)
}

// Activities returns the user's most recent activities, oldest first.
func (s *Service) Activities(ctx context.Context, userID string, limit int) ([]activity.Activity, error) {
	return s.log.Query(ctx, activity.Filter{UserID: userID, Limit: limit})
}

// Journey reconstructs the current trip from the activity log.
func (s *Service) Journey(ctx context.Context, userID string) (nudge.Journey, error) {
	acts, err := s.log.Query(ctx, activity.Filter{UserID: userID})
	if err != nil {
		return nudge.Journey{}, err
	}
	return Reconstruct(acts), nil
}

func (s *Service) nudgeContext(ctx context.Context, userID string, req NudgeRequest) (nudge.Context, error) {
	j, err := s.Journey(ctx, userID)
	if err != nil {
		return nudge.Context{}, err
	}
	summary, err := s.Points(ctx, userID)
	if err != nil {
		return nudge.Context{}, err
	}
	return nudge.Context{Journey: j, Progress: &summary.Progress, Location: req.Location}, nil
}

func (s *Service) latestFlight(ctx context.Context, userID string) (activity.FlightCalculated, error) {
	acts, err := s.log.Query(ctx, activity.Filter{
		UserID: userID,
		Kinds:  []activity.Kind{activity.KindFlightCalculated},
		Limit:  1,
	})
	if err != nil {
		return activity.FlightCalculated{}, err
	}
	if len(acts) == 0 {
		return activity.FlightCalculated{}, ErrNoFlight
	}
	f, _ := acts[0].Details.(activity.FlightCalculated)
	return f, nil
}

// Reconstruct folds a user's activities, oldest first, into the state of
// the current trip. A new flight calculation starts a new trip.
func Reconstruct(acts []activity.Activity) nudge.Journey {
	var j nudge.Journey
	for _, a := range acts {
		switch d := a.Details.(type) {
		case activity.FlightCalculated:
			j = nudge.Journey{
				FlightCalculated: true,
				RouteID:          d.RouteID,
				Destination:      d.Destination,
				EmissionsCO2eKg:  d.CO2eKg,
			}
		case activity.SAFContributed:
			j.SAFContributed = true
		case activity.OffsetPurchased:
			j.OffsetPurchased = true
		case activity.PublicTransportTrip:
			j.TransportLogged = true
		case activity.Circularity:
			j.CircularityActions++
		case activity.PlantBasedMeal:
			j.PlantBasedMeals++
		}
	}
	return j
}
