package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Capability is a single CRUD permission.
type Capability uint8

const (
	CapabilityCreate Capability = 1 << iota
	CapabilityRead
	CapabilityUpdate
	CapabilityDelete
)

// AllCapabilities lists the CRUD permissions in canonical order.
var AllCapabilities = []Capability{CapabilityCreate, CapabilityRead, CapabilityUpdate, CapabilityDelete}

func (c Capability) String() string {
	switch c {
	case CapabilityCreate:
		return "CREATE"
	case CapabilityRead:
		return "READ"
	case CapabilityUpdate:
		return "UPDATE"
	case CapabilityDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("CAPABILITY(%d)", uint8(c))
	}
}

// ParseCapability resolves a capability name, case-insensitively.
func ParseCapability(name string) (Capability, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CREATE":
		return CapabilityCreate, nil
	case "READ":
		return CapabilityRead, nil
	case "UPDATE":
		return CapabilityUpdate, nil
	case "DELETE":
		return CapabilityDelete, nil
	}
	return 0, fmt.Errorf("%w: unknown capability %q", ErrInvalidInput, name)
}

// CapabilitySet is an immutable set of capabilities backed by a bitmask.
// The zero value is the empty set.
type CapabilitySet uint8

const fullCapabilityMask = CapabilitySet(CapabilityCreate | CapabilityRead | CapabilityUpdate | CapabilityDelete)

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set & fullCapabilityMask
}

// FullCapabilitySet returns {Create, Read, Update, Delete}.
func FullCapabilitySet() CapabilitySet {
	return fullCapabilityMask
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	return c != 0 && s&CapabilitySet(c) == CapabilitySet(c)
}

// Intersect returns the capabilities present in both sets.
func (s CapabilitySet) Intersect(other CapabilitySet) CapabilitySet {
	return s & other
}

// Union returns the capabilities present in either set.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	return (s | other) & fullCapabilityMask
}

// Without returns a copy of the set with caps removed.
func (s CapabilitySet) Without(caps ...Capability) CapabilitySet {
	return s &^ NewCapabilitySet(caps...)
}

// IsEmpty reports whether the set holds no capability.
func (s CapabilitySet) IsEmpty() bool {
	return s&fullCapabilityMask == 0
}

// SubsetOf reports whether every capability in s is also in other.
func (s CapabilitySet) SubsetOf(other CapabilitySet) bool {
	return s&^other == 0
}

// List returns the members in canonical order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the member names in canonical order.
func (s CapabilitySet) Names() []string {
	caps := s.List()
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.String())
	}
	return names
}

func (s CapabilitySet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// ParseCapabilitySet builds a set from capability names.
func ParseCapabilitySet(names []string) (CapabilitySet, error) {
	var set CapabilitySet
	for _, name := range names {
		c, err := ParseCapability(name)
		if err != nil {
			return 0, err
		}
		set |= CapabilitySet(c)
	}
	return set, nil
}

// MarshalJSON encodes the set as a list of names.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of names.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseCapabilitySet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
