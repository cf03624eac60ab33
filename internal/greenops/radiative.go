package greenops

import (
	"fmt"
	"math"
)

// ForcingInfo describes the radiative forcing multiplier in use.
type ForcingInfo struct {
	Multiplier         float64 `json:"multiplier"`
	UncertaintyPercent float64 `json:"uncertainty_percent"`
	Confidence         string  `json:"confidence"`
	Source             string  `json:"source"`
}

// RadiativeForcingModel converts CO2-only emissions into total
// climate-impact-equivalent emissions. The zero value is not usable;
// construct it with NewRadiativeForcingModel or DefaultRadiativeForcingModel.
type RadiativeForcingModel struct {
	info ForcingInfo
}

// NewRadiativeForcingModel validates the multiplier and uncertainty and
// returns a model. A multiplier below MinRFMultiplier would make Apply
// report less impact than CO2 alone, so it is rejected.
func NewRadiativeForcingModel(multiplier, uncertaintyPercent float64) (RadiativeForcingModel, error) {
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier < MinRFMultiplier {
		return RadiativeForcingModel{}, fmt.Errorf("%w: radiative forcing multiplier %v must be >= %v",
			ErrInvalidInput, multiplier, MinRFMultiplier)
	}
	if math.IsNaN(uncertaintyPercent) || uncertaintyPercent < 0 || uncertaintyPercent > 100 {
		return RadiativeForcingModel{}, fmt.Errorf("%w: radiative forcing uncertainty %v%% outside [0,100]",
			ErrInvalidInput, uncertaintyPercent)
	}
	return RadiativeForcingModel{info: ForcingInfo{
		Multiplier:         multiplier,
		UncertaintyPercent: uncertaintyPercent,
		Confidence:         RFConfidence,
		Source:             RFSource,
	}}, nil
}

// DefaultRadiativeForcingModel returns the model with the published multiplier.
func DefaultRadiativeForcingModel() RadiativeForcingModel {
	m, err := NewRadiativeForcingModel(DefaultRFMultiplier, DefaultRFUncertaintyPercent)
	if err != nil {
		panic(err)
	}
	return m
}

// Apply returns co2Kg scaled by the multiplier.
func (m RadiativeForcingModel) Apply(co2Kg float64) float64 {
	return co2Kg * m.info.Multiplier
}

// Info returns the multiplier, its uncertainty and source.
func (m RadiativeForcingModel) Info() ForcingInfo {
	return m.info
}
