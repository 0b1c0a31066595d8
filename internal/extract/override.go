package extract

import (
	"sort"
	"sync"

	"github.com/catalog-group/pricebook-cli/internal/pdfio"
)

// Override is a manufacturer-specific strategy that preempts the generic
// layers for pages it claims. Candidates it emits carry the override tag and
// win every merge disagreement. Concrete override parsers live outside the
// core; this registry is the seam they plug into.
type Override interface {
	Strategy

	// Manufacturer names the strategy for registration and run metadata.
	Manufacturer() string

	// Claims reports whether this strategy recognizes the page's layout.
	Claims(page *pdfio.PageContext) bool
}

// Registry holds registered manufacturer overrides.
type Registry struct {
	mu        sync.RWMutex
	overrides map[string]Override
}

// NewRegistry creates an empty override registry.
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[string]Override)}
}

// Register adds an override, replacing any previous registration under the
// same manufacturer name.
func (r *Registry) Register(o Override) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[o.Manufacturer()] = o
}

// Match returns the first registered override claiming the page, trying
// overrides in manufacturer-name order for reproducibility. Nil when no
// override claims it.
func (r *Registry) Match(page *pdfio.PageContext) Override {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.overrides))
	for name := range r.overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if o := r.overrides[name]; o.Claims(page) {
			return o
		}
	}
	return nil
}
