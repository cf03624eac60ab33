package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML keys that an overlay may replace.
const (
	keyLogging   = "logging"
	keyServer    = "server"
	keyEmissions = "emissions"
	keySAF       = "saf"
	keyOffsets   = "offsets"
	keyNudges    = "nudges"
	keyStorage   = "storage"
	keyRefData   = "refdata"
)

// MergeYAML applies an overlay file onto target section by section. A
// section present in the overlay replaces the target's section wholesale;
// fields the overlay leaves out fall back to the defaults, not to the
// target's previous values. Unknown keys are ignored.
func MergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in MergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]yaml.Node
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	defaults := New()
	for key, node := range overlay {
		if err := mergeSection(target, defaults, key, &node); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}
	return nil
}

func mergeSection(target, defaults *Config, key string, node *yaml.Node) error {
	switch key {
	case keyLogging:
		return decodeInto(node, defaults.Logging, &target.Logging)
	case keyServer:
		return decodeInto(node, defaults.Server, &target.Server)
	case keyEmissions:
		return decodeInto(node, defaults.Emissions, &target.Emissions)
	case keySAF:
		return decodeInto(node, defaults.SAF, &target.SAF)
	case keyOffsets:
		return decodeInto(node, defaults.Offsets, &target.Offsets)
	case keyNudges:
		return decodeInto(node, defaults.Nudges, &target.Nudges)
	case keyStorage:
		return decodeInto(node, defaults.Storage, &target.Storage)
	case keyRefData:
		return decodeInto(node, defaults.RefData, &target.RefData)
	default:
		return nil
	}
}

// decodeInto decodes node over a copy of base and stores it in dst.
func decodeInto[T any](node *yaml.Node, base T, dst *T) error {
	v := base
	if err := node.Decode(&v); err != nil {
		return err
	}
	*dst = v
	return nil
}
