package greenops

import (
	"fmt"
	"math"
	"strings"
)

type equivalencyDef struct {
	typ       EquivalencyType
	factor    float64
	label     string
	prose     string
	compact   string
	threshold float64
}

// flightEquivalencies lists the equivalencies shown for a flight, in display order.
//
//nolint:gochecknoglobals // read-only table
var flightEquivalencies = []equivalencyDef{
	{EquivalencyMilesDriven, EPAMilesDrivenFactor, "miles driven", "driving ~%s miles", "%s mi", MinEquivalencyThresholdKg},
	{EquivalencySmartphonesCharged, EPASmartphoneChargeFactor, "smartphones charged", "charging ~%s smartphones", "%s phones", MinEquivalencyThresholdKg},
	{EquivalencyTreeSeedlings, EPATreeSeedlingFactor, "tree seedlings grown for 10 years", "~%s tree seedlings grown for 10 years", "%s trees", TreeSeedlingThresholdKg},
}

// Calculate normalises input to kilograms and converts it into EPA
// equivalencies. Values below MinEquivalencyThresholdKg yield an empty
// output without error; the tree-seedling equivalency only appears once
// the value reaches one seedling's worth of CO2e.
func Calculate(input CarbonInput) (EquivalencyOutput, error) {
	kg, err := NormalizeToKg(input.Value, input.Unit)
	if err != nil {
		return EquivalencyOutput{IsEmpty: true}, err
	}
	return CalculateKg(kg)
}

// CalculateKg is Calculate for a value already in kilograms CO2e.
func CalculateKg(kg float64) (EquivalencyOutput, error) {
	if math.IsInf(kg, 0) || math.IsNaN(kg) {
		return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
	}
	if kg < 0 {
		return EquivalencyOutput{IsEmpty: true}, ErrNegativeValue
	}
	if kg < MinEquivalencyThresholdKg {
		return EquivalencyOutput{InputKg: kg, IsEmpty: true}, nil
	}

	var (
		results []EquivalencyResult
		prose   []string
		compact []string
	)
	for _, def := range flightEquivalencies {
		if kg < def.threshold {
			continue
		}
		v := kg / def.factor
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return EquivalencyOutput{IsEmpty: true}, ErrCalculationOverflow
		}
		formatted := formatEquivalencyValue(v)
		results = append(results, EquivalencyResult{
			Type:           def.typ,
			Value:          v,
			FormattedValue: formatted,
			Label:          def.label,
		})
		prose = append(prose, fmt.Sprintf(def.prose, formatted))
		compact = append(compact, fmt.Sprintf(def.compact, formatted))
	}

	return EquivalencyOutput{
		InputKg:     kg,
		Results:     results,
		DisplayText: "Equivalent to " + joinProse(prose),
		CompactText: "(≈ " + strings.Join(compact, ", ") + ")",
	}, nil
}

func joinProse(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
	}
}

func formatEquivalencyValue(v float64) string {
	if v >= LargeNumberThreshold {
		return FormatLarge(v)
	}
	return FormatNumber(int64(math.Round(v)))
}
