// Package source acquires raw documents for ingestion: Wikipedia article
// scraping and the Jolpica (Ergast-compatible) structured data API.
package source

import "time"

// Document is raw acquired content before chunking.
type Document struct {
	Content       string
	Title         string
	URL           string
	Category      string
	Priority      int
	ScrapedAt     time.Time
	ContentLength int
}

// Stats summarizes an acquisition run. Failures are recorded, not fatal:
// a partially successful run still yields documents.
type Stats struct {
	Total   int
	Success int
	Failed  int
	Skipped int
	Errors  []string
}
