// Package filters holds the read-time transformations applied to a single
// blueprint lookup. One filter is chosen per process at startup.
package filters

import (
	"blueprints-server/core"
	"fmt"
	"strings"
)

const (
	NameIdentity      = "identity"
	NameRedundancy    = "redundancy"
	NameUndersampling = "undersampling"

	// DefaultStep keeps every second point.
	DefaultStep = 2
)

// New returns the filter registered under name. An empty name selects the
// identity filter. step is only read by the undersampling filter.
func New(name string, step int) (core.BlueprintFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameIdentity:
		return Identity{}, nil
	case NameRedundancy:
		return Redundancy{}, nil
	case NameUndersampling:
		if step < 2 {
			return nil, fmt.Errorf("undersampling step must be at least 2, got %d", step)
		}
		return Undersampling{Step: step}, nil
	default:
		return nil, fmt.Errorf("unknown blueprint filter %q", name)
	}
}

// Name returns the registered name of f, or its Go type for unknown filters.
func Name(f core.BlueprintFilter) string {
	switch f.(type) {
	case Identity, *Identity:
		return NameIdentity
	case Redundancy, *Redundancy:
		return NameRedundancy
	case Undersampling, *Undersampling:
		return NameUndersampling
	default:
		return fmt.Sprintf("%T", f)
	}
}

// Identity returns blueprints unchanged.
type Identity struct{}

func (Identity) Apply(bp core.Blueprint) core.Blueprint { return bp }
