package greenops

// Radiative forcing defaults. Aviation's non-CO2 effects (contrails, NOx,
// water vapour) are folded into a single multiplier on CO2.
// Source: Lee et al. (2021), "The contribution of global aviation to
// anthropogenic climate forcing for 2000 to 2018", Atmospheric Environment 244.
const (
	// DefaultRFMultiplier converts CO2-only emissions to CO2e.
	DefaultRFMultiplier = 1.9

	// DefaultRFUncertaintyPercent is the published ±uncertainty of the multiplier.
	DefaultRFUncertaintyPercent = 25.0

	// RFConfidence is the qualitative confidence attached to the multiplier.
	RFConfidence = "medium"

	// RFSource names the publication the multiplier is taken from.
	RFSource = "Lee et al. 2021, Atmospheric Environment 244, 117834"

	// MinRFMultiplier is the smallest multiplier the model accepts.
	MinRFMultiplier = 1.0
)

// EPA equivalency factors (2024 edition), in kg CO2e per unit.
// Source: https://www.epa.gov/energy/greenhouse-gas-equivalencies-calculator
//
//	equivalency = kg_CO2e / factor
const (
	// EPAMilesDrivenFactor is kg CO2e per mile in an average passenger vehicle.
	EPAMilesDrivenFactor = 0.192

	// EPASmartphoneChargeFactor is kg CO2e per full smartphone charge.
	EPASmartphoneChargeFactor = 0.00822

	// EPATreeSeedlingFactor is kg CO2e absorbed by one seedling grown for 10 years.
	EPATreeSeedlingFactor = 60.0
)

// Unit conversion factors to kilograms.
const (
	GramsToKg  = 0.001
	KgToKg     = 1.0
	TonsToKg   = 1000.0
	PoundsToKg = 0.453592
)

// Display thresholds.
const (
	// MinEquivalencyThresholdKg is the smallest value for which
	// equivalencies are produced; below it they round to nothing useful.
	MinEquivalencyThresholdKg = 1.0

	// TreeSeedlingThresholdKg is the smallest value for which the
	// tree-seedling equivalency is included.
	TreeSeedlingThresholdKg = EPATreeSeedlingFactor

	// LargeNumberThreshold switches display to "~X.X million".
	LargeNumberThreshold = 1_000_000

	// BillionThreshold switches display to "~X.X billion".
	BillionThreshold = 1_000_000_000
)
