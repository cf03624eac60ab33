package emissions

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/refdata"
)

// Source label for factors that come from the route table itself.
const routeTableSource = "ecojourney route reference data"

// Aircraft rating calibration citation.
const ratingCitation = "Fleet efficiency calibration: A=0.85 (new-generation twin), B=1.0 (fleet average), C=1.15 (older narrow-body)"

// maxBatchWorkers bounds concurrent calculations in EstimateBatch.
const maxBatchWorkers = 8

// Calculator turns a Request into a FlightEmissionResult. It is safe for
// concurrent use: it holds only read-only reference data.
type Calculator struct {
	refs refdata.Provider
	rf   greenops.RadiativeForcingModel
}

// NewCalculator returns a calculator over refs using rf for non-CO2 effects.
func NewCalculator(refs refdata.Provider, rf greenops.RadiativeForcingModel) *Calculator {
	return &Calculator{refs: refs, rf: rf}
}

// RadiativeForcing exposes the model in use.
func (c *Calculator) RadiativeForcing() greenops.RadiativeForcingModel { return c.rf }

// Calculate computes the emissions of req. It fails with
// refdata.ErrRouteNotFound for an unknown route and with
// greenops.ErrInvalidInput for fewer than one passenger or an unknown
// cabin class. The result depends only on req and the reference data.
func (c *Calculator) Calculate(req Request) (FlightEmissionResult, error) {
	if req.Passengers < 1 {
		return FlightEmissionResult{}, fmt.Errorf("%w: passengers must be >= 1, got %d",
			greenops.ErrInvalidInput, req.Passengers)
	}
	cabin, err := ParseCabinClass(string(req.CabinClass))
	if err != nil {
		return FlightEmissionResult{}, err
	}
	route, ok := c.refs.Route(req.RouteID)
	if !ok {
		return FlightEmissionResult{}, fmt.Errorf("%w: %q", refdata.ErrRouteNotFound, req.RouteID)
	}
	efficiency, ok := route.Rating.EfficiencyFactor()
	if !ok {
		return FlightEmissionResult{}, fmt.Errorf("%w: route %q has unknown rating %q",
			greenops.ErrInvariantViolation, route.ID, route.Rating)
	}

	factors := c.refs.EmissionFactors()
	rfInfo := c.rf.Info()
	pax := float64(req.Passengers)

	fuelLiters := route.DistanceKm * factors.FuelPerKmPerPassenger * pax
	co2Kg := fuelLiters * factors.CO2PerLiter * efficiency
	co2eKg := c.rf.Apply(co2Kg)

	uncertaintyPct := CombineUncertainty(factors.UncertaintyPercent, rfInfo.UncertaintyPercent)
	band := uncertaintyPct / 100

	result := FlightEmissionResult{
		RouteID:         route.ID,
		Origin:          route.Origin,
		Destination:     route.Destination,
		DistanceKm:      route.DistanceKm,
		Passengers:      req.Passengers,
		CabinClass:      cabin,
		FuelLiters:      fuelLiters,
		EmissionsCO2Kg:  co2Kg,
		EmissionsCO2eKg: co2eKg,
		PerPassenger: PerPassenger{
			FuelLiters: fuelLiters / pax,
			CO2Kg:      co2Kg / pax,
			CO2eKg:     co2eKg / pax,
		},
		Uncertainty: Uncertainty{
			Percent: uncertaintyPct,
			MinKg:   co2eKg * (1 - band),
			MaxKg:   co2eKg * (1 + band),
		},
	}

	result.Methodology = []MethodologyFactor{
		{Name: "distance", Value: route.DistanceKm, Unit: "km", Source: routeTableSource},
		{Name: "fuel_per_km_per_passenger", Value: factors.FuelPerKmPerPassenger, Unit: "L/pkm", Source: factors.Source, Citation: factors.Citation},
		{Name: "passengers", Value: pax, Unit: "pax", Source: "booking"},
		{Name: "fuel_burn", Value: fuelLiters, Unit: "L", Source: "distance × fuel_per_km_per_passenger × passengers"},
		{Name: "aircraft_efficiency_factor", Value: efficiency, Unit: "ratio", Source: "aircraft rating " + string(route.Rating), Citation: ratingCitation},
		{Name: "co2_per_liter", Value: factors.CO2PerLiter, Unit: "kg CO2/L", Source: factors.Source, Citation: factors.Citation},
		{Name: "co2", Value: co2Kg, Unit: "kg CO2", Source: "fuel_burn × co2_per_liter × aircraft_efficiency_factor"},
		{Name: "radiative_forcing_multiplier", Value: rfInfo.Multiplier, Unit: "ratio", Source: "non-CO2 effects, confidence " + rfInfo.Confidence, Citation: rfInfo.Source},
		{Name: "co2e", Value: co2eKg, Unit: "kg CO2e", Source: "co2 × radiative_forcing_multiplier"},
		{Name: "fuel_factor_uncertainty", Value: factors.UncertaintyPercent, Unit: "%", Source: factors.Source, Citation: factors.Citation},
		{Name: "radiative_forcing_uncertainty", Value: rfInfo.UncertaintyPercent, Unit: "%", Source: rfInfo.Source},
		{Name: "combined_uncertainty", Value: uncertaintyPct, Unit: "%", Source: "root-sum-square of independent uncertainties"},
	}

	return result, nil
}

// CombineUncertainty adds independent relative uncertainties in quadrature.
func CombineUncertainty(percents ...float64) float64 {
	var sum float64
	for _, p := range percents {
		sum += p * p
	}
	return math.Sqrt(sum)
}

// EstimateBatch calculates every request, in order. The first failure
// cancels the remaining work and is returned.
func (c *Calculator) EstimateBatch(ctx context.Context, reqs []Request) ([]FlightEmissionResult, error) {
	results := make([]FlightEmissionResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchWorkers)
	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := c.Calculate(req)
			if err != nil {
				return fmt.Errorf("request %d (%s): %w", i, req.RouteID, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
