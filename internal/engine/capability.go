package engine

import "strings"

// Capability identifies one operation of the adapter contract. An
// engine declares the set it supports in its metadata as a bit-or of
// these flags; the host routes calls only to declared capabilities.
type Capability uint8

const (
	CapCreate Capability = 1 << iota
	CapPredict
	CapUpdate
	CapDescribe
	CapConnect
)

// BaseCapabilities is the mandatory part of the contract. Every engine
// must create models and predict with them.
const BaseCapabilities = CapCreate | CapPredict

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapCreate, "create"},
	{CapPredict, "predict"},
	{CapUpdate, "update"},
	{CapDescribe, "describe"},
	{CapConnect, "connect"},
}

// Has reports whether every flag in other is set.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// List returns the names of the set flags in declaration order.
func (c Capability) List() []string {
	var out []string
	for _, entry := range capabilityNames {
		if c.Has(entry.cap) {
			out = append(out, entry.name)
		}
	}
	return out
}

func (c Capability) String() string {
	names := c.List()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseCapability resolves a single capability name.
func ParseCapability(name string) (Capability, bool) {
	for _, entry := range capabilityNames {
		if entry.name == name {
			return entry.cap, true
		}
	}
	return 0, false
}
