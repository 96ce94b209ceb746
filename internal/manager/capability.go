package manager

import (
	"sort"
	"strings"
)

// Capability tags one optional plugin feature.
type Capability string

const (
	CapPopulate  Capability = "populate"
	CapDrop      Capability = "drop"
	CapSummarize Capability = "summarize"
	CapCache     Capability = "cache"
	CapBEL       Capability = "bel"
	CapNamespace Capability = "namespace"
)

// Capabilities is an immutable capability set.
type Capabilities struct {
	set map[Capability]struct{}
}

// NewCapabilities builds a set; empty tags are ignored.
func NewCapabilities(caps ...Capability) Capabilities {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		c = Capability(strings.ToLower(strings.TrimSpace(string(c))))
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return Capabilities{set: set}
}

// Has reports membership.
func (c Capabilities) Has(capability Capability) bool {
	_, ok := c.set[capability]
	return ok
}

// List returns tags sorted.
func (c Capabilities) List() []Capability {
	out := make([]Capability, 0, len(c.set))
	for k := range c.set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c Capabilities) Len() int { return len(c.set) }

func (c Capabilities) String() string {
	list := c.List()
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}
