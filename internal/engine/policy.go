package engine

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoutingPolicy shapes how the router slices an order into venue
// submissions.
type RoutingPolicy struct {
	Name string `yaml:"-"`
	// SliceFraction of the remaining quantity submitted per venue call,
	// in (0, 1]. 1 submits everything at once.
	SliceFraction float64 `yaml:"slice_fraction"`
}

const (
	PolicyMinimizeLatency = "minimize_latency"
	PolicyMinimizeImpact  = "minimize_impact"
)

// DefaultPolicies is used when no policy file is configured.
func DefaultPolicies() map[string]RoutingPolicy {
	return map[string]RoutingPolicy{
		PolicyMinimizeLatency: {Name: PolicyMinimizeLatency, SliceFraction: 1},
		PolicyMinimizeImpact:  {Name: PolicyMinimizeImpact, SliceFraction: 0.25},
	}
}

// LoadPolicies reads a routing-policy table from a YAML file and merges it
// over the defaults.
func LoadPolicies(path string) (map[string]RoutingPolicy, error) {
	out := DefaultPolicies()
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file failed: %w", err)
	}
	var doc struct {
		Policies map[string]RoutingPolicy `yaml:"policies"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy file failed: %w", err)
	}
	for name, p := range doc.Policies {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if p.SliceFraction <= 0 || p.SliceFraction > 1 {
			return nil, fmt.Errorf("policy %s: slice_fraction must be in (0,1], got %v", name, p.SliceFraction)
		}
		p.Name = name
		out[name] = p
	}
	return out, nil
}
