package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/rshade/ecojourney/internal/greenops"
)

// SupportedVersions is the dataset schema range this build understands.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// ErrRouteNotFound is returned for an unknown route id. It matches
// greenops.ErrNotFound.
var ErrRouteNotFound = fmt.Errorf("route %w", greenops.ErrNotFound)

//go:embed default.yaml
var defaultDataset []byte

// Provider is the read-only view of reference data used by the calculators.
type Provider interface {
	Route(id string) (Route, bool)
	Routes() []Route
	Tiers() []Tier
	EmissionFactors() EmissionFactors
	CupStations() []CupStation
}

// Snapshot is an immutable, validated Dataset. It is safe for concurrent
// use without synchronisation.
type Snapshot struct {
	version     *semver.Version
	factors     EmissionFactors
	routes      []Route
	routeIndex  map[string]int
	tiers       []Tier
	cupStations []CupStation
}

var _ Provider = (*Snapshot)(nil)

// LoadDefault returns the dataset compiled into the binary.
func LoadDefault() (*Snapshot, error) {
	return Parse(defaultDataset)
}

// LoadFile reads and validates a dataset from a YAML file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference data %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading reference data %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML dataset.
func Parse(data []byte) (*Snapshot, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("%w: decoding dataset: %w", greenops.ErrInvariantViolation, err)
	}
	return NewSnapshot(ds)
}

// NewSnapshot validates ds and freezes it.
func NewSnapshot(ds Dataset) (*Snapshot, error) {
	v, err := checkVersion(ds.Version)
	if err != nil {
		return nil, err
	}
	if err := ValidateEmissionFactors(ds.EmissionFactors); err != nil {
		return nil, err
	}
	if err := ValidateRoutes(ds.Routes); err != nil {
		return nil, err
	}
	if err := ValidateTiers(ds.Tiers); err != nil {
		return nil, err
	}

	s := &Snapshot{
		version:     v,
		factors:     ds.EmissionFactors,
		routes:      slices.Clone(ds.Routes),
		routeIndex:  make(map[string]int, len(ds.Routes)),
		tiers:       cloneTiers(ds.Tiers),
		cupStations: slices.Clone(ds.CupStations),
	}
	for i, r := range s.routes {
		s.routeIndex[r.ID] = i
	}
	return s, nil
}

func checkVersion(raw string) (*semver.Version, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: dataset has no version", greenops.ErrInvariantViolation)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: dataset version %q is not semver: %w", greenops.ErrInvariantViolation, raw, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return nil, fmt.Errorf("%w: dataset version %s not in supported range %q",
			greenops.ErrInvariantViolation, v, SupportedVersions)
	}
	return v, nil
}

// Version returns the dataset version.
func (s *Snapshot) Version() string { return s.version.String() }

// Route looks up a route by id.
func (s *Snapshot) Route(id string) (Route, bool) {
	i, ok := s.routeIndex[id]
	if !ok {
		return Route{}, false
	}
	return s.routes[i], true
}

// Routes returns a copy of all routes in file order.
func (s *Snapshot) Routes() []Route { return slices.Clone(s.routes) }

// Tiers returns a copy of the tier catalog sorted by level.
func (s *Snapshot) Tiers() []Tier { return cloneTiers(s.tiers) }

// EmissionFactors returns the fuel model constants.
func (s *Snapshot) EmissionFactors() EmissionFactors { return s.factors }

// CupStations returns a copy of the cup-return stations.
func (s *Snapshot) CupStations() []CupStation { return slices.Clone(s.cupStations) }

func cloneTiers(in []Tier) []Tier {
	out := make([]Tier, len(in))
	for i, t := range in {
		out[i] = t
		if t.MaxPoints != nil {
			m := *t.MaxPoints
			out[i].MaxPoints = &m
		}
		out[i].Perks = slices.Clone(t.Perks)
	}
	return out
}

// WithFuelUncertainty returns a copy of s whose emission factors carry a
// different uncertainty percentage.
func (s *Snapshot) WithFuelUncertainty(percent float64) (*Snapshot, error) {
	factors := s.factors
	factors.UncertaintyPercent = percent
	if err := ValidateEmissionFactors(factors); err != nil {
		return nil, err
	}
	c := *s
	c.factors = factors
	return &c, nil
}
