package index

import "time"

// Document is one stored chunk returned by a search, scored by cosine
// similarity against the query embedding.
type Document struct {
	ID        string
	Content   string
	Score     float64
	Namespace string
	Metadata  map[string]string
}

// UpsertResult reports the outcome of an Upsert call.
type UpsertResult struct {
	Namespace string
	Written   int
	Elapsed   time.Duration
}

// DeleteOutcome distinguishes "namespace removed" from "namespace was
// never there". Both are successful calls.
type DeleteOutcome int

const (
	// NamespaceDeleted means at least one record was removed.
	NamespaceDeleted DeleteOutcome = iota
	// NamespaceAbsent means the namespace held no records.
	NamespaceAbsent
)

func (o DeleteOutcome) String() string {
	switch o {
	case NamespaceDeleted:
		return "deleted"
	case NamespaceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Stats summarizes index contents per namespace.
type Stats struct {
	TotalRecords int
	Dimension    int
	Namespaces   map[string]int
}

type searchConfig struct {
	topK       int
	threshold  float64
	namespaces []string
}

// SearchOption customizes a Search call.
type SearchOption func(*searchConfig)

// WithTopK overrides the configured result cap.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold overrides the configured minimum similarity score.
func WithThreshold(t float64) SearchOption {
	return func(c *searchConfig) { c.threshold = t }
}

// WithNamespaces restricts the search to the given namespaces instead of
// all populated ones.
func WithNamespaces(namespaces ...string) SearchOption {
	return func(c *searchConfig) { c.namespaces = namespaces }
}
