// Package features tracks runtime feature gates and the slot they were
// activated at.
package features

import (
	"fmt"
	"sort"

	"github.com/julianzamt/bankrun-counter/pkg/base58"
)

type Features struct {
	enabled map[[32]byte]uint64
	gates   map[[32]byte]FeatureGate
}

func NewFeaturesDefault() *Features {
	return &Features{enabled: make(map[[32]byte]uint64), gates: make(map[[32]byte]FeatureGate)}
}

func (f *Features) EnableFeature(gate FeatureGate, slot uint64) {
	if f.enabled == nil {
		f.enabled = make(map[[32]byte]uint64)
		f.gates = make(map[[32]byte]FeatureGate)
	}
	f.enabled[gate.Address] = slot
	f.gates[gate.Address] = gate
}

func (f *Features) DisableFeature(gate FeatureGate) {
	delete(f.enabled, gate.Address)
	delete(f.gates, gate.Address)
}

func (f *Features) IsActive(gate FeatureGate) bool {
	_, ok := f.enabled[gate.Address]
	return ok
}

func (f *Features) ActivationSlot(gate FeatureGate) (uint64, bool) {
	slot, ok := f.enabled[gate.Address]
	return slot, ok
}

func (f *Features) Clone() *Features {
	c := NewFeaturesDefault()
	for addr, slot := range f.enabled {
		c.EnableFeature(f.gates[addr], slot)
	}
	return c
}

// AllEnabled returns a sorted, human readable list of the active gates.
func (f *Features) AllEnabled() []string {
	var out []string
	for addr := range f.enabled {
		gate := f.gates[addr]
		out = append(out, fmt.Sprintf("feature %s (%s) enabled", gate.Name, base58.Encode(gate.Address[:])))
	}
	sort.Strings(out)
	return out
}

func GateByName(name string) (FeatureGate, bool) {
	for _, gate := range AllFeatureGates {
		if gate.Name == name {
			return gate, true
		}
	}
	return FeatureGate{}, false
}
