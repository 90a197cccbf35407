// Package ingest orchestrates the document-to-index pipeline: routing
// documents to namespaces, chunking, and upserting, with optional
// namespace refresh.
package ingest

import "sort"

// Router maps document categories to index namespaces.
type Router struct {
	mapping  map[string]string
	fallback string
}

// NewRouter builds a router from an explicit mapping. Categories not in
// the mapping route to fallback.
func NewRouter(mapping map[string]string, fallback string) *Router {
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &Router{mapping: m, fallback: fallback}
}

// DefaultRouter reflects the standard layout: structured data is
// partitioned by kind, everything scraped lands in "wikipedia".
func DefaultRouter() *Router {
	return NewRouter(map[string]string{
		"race_results": "ergast-results",
		"standings":    "ergast-results",
		"drivers":      "ergast-drivers",
		"constructors": "ergast-constructors",
	}, "wikipedia")
}

// Route returns the namespace for a category.
func (r *Router) Route(category string) string {
	if ns, ok := r.mapping[category]; ok {
		return ns
	}
	return r.fallback
}

// Namespaces lists every namespace the router can produce, sorted.
func (r *Router) Namespaces() []string {
	set := map[string]bool{r.fallback: true}
	for _, ns := range r.mapping {
		set[ns] = true
	}
	out := make([]string, 0, len(set))
	for ns := range set {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
