package formats

import (
	"sort"
	"sync"

	"github.com/mind-engage/quiztab/internal/question"
)

// Document is a decoded pack document (JSON object model).
type Document = map[string]any

// Meta is the descriptive header of a pack.
type Meta struct {
	Title       string `json:"title,omitempty"`
	GeneratedBy string `json:"generated_by,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Bank is the canonical content an adapter exports.
type Bank struct {
	Meta      Meta
	Topics    []question.Topic
	Questions []question.Question
	Assets    []any
}

// Adapter converts one dialect family to and from the canonical model.
type Adapter interface {
	// Import normalizes a decoded document. Problems are reported in the
	// result; Import does not fail.
	Import(doc Document) *ImportResult
	// Export renders the bank in the adapter's dialect.
	Export(b Bank) (Document, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Adapter{}
)

// Register an adapter for a schema tag. Call from init() in subpackages.
func Register(schema string, a Adapter) {
	mu.Lock()
	defer mu.Unlock()
	registry[schema] = a
}

// Lookup returns the adapter registered for a schema tag.
func Lookup(schema string) (Adapter, bool) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := registry[schema]
	return a, ok
}

// Schemas lists registered schema tags.
func Schemas() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
