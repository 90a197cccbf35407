package chunker

import (
	"regexp"
	"sort"
	"strings"
)

// maxTagMatches bounds the number of detected entities attached per
// category, keeping metadata payloads small.
const maxTagMatches = 5

// seasonPattern matches F1 season years (1950-2099).
var seasonPattern = regexp.MustCompile(`\b(19[5-9]\d|20\d\d)\b`)

// driverKeywords covers current grid plus notable champions. Matched
// case-insensitively as substrings of the chunk text.
var driverKeywords = []string{
	"verstappen", "hamilton", "leclerc", "norris", "sainz", "piastri",
	"russell", "alonso", "stroll", "gasly", "ocon", "tsunoda", "ricciardo",
	"hulkenberg", "magnussen", "bottas", "zhou", "albon", "sargeant", "lawson",
	"bearman", "colapinto", "schumacher", "senna", "prost", "lauda", "vettel",
	"raikkonen", "hakkinen", "fangio", "clark", "hill", "mansell", "piquet",
	"antonelli",
}

// teamKeywords covers current constructors and common historical names.
var teamKeywords = []string{
	"red bull", "mercedes", "ferrari", "mclaren", "aston martin",
	"alpine", "williams", "haas", "rb", "sauber", "kick sauber",
	"alfa romeo", "alphatauri", "renault", "racing point", "toro rosso",
	"cadillac",
}

// extractMetadata scans chunk text for F1 domain tags: season years,
// driver names and team names. Each tag list carries at most
// maxTagMatches entries, comma-joined.
func extractMetadata(text string) map[string]string {
	lower := strings.ToLower(text)
	meta := make(map[string]string, 3)

	if years := seasonPattern.FindAllString(text, -1); len(years) > 0 {
		unique := dedupeSorted(years)
		if len(unique) > maxTagMatches {
			unique = unique[:maxTagMatches]
		}
		meta["seasons"] = strings.Join(unique, ",")
	}

	if drivers := matchKeywords(lower, driverKeywords); len(drivers) > 0 {
		meta["drivers"] = strings.Join(drivers, ",")
	}

	if teams := matchKeywords(lower, teamKeywords); len(teams) > 0 {
		meta["teams"] = strings.Join(teams, ",")
	}

	return meta
}

// matchKeywords returns the first maxTagMatches keywords contained in the
// lowercased text, preserving keyword list order for determinism.
func matchKeywords(lower string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
			if len(found) == maxTagMatches {
				break
			}
		}
	}
	return found
}

// dedupeSorted returns the unique values in ascending order.
func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			unique = append(unique, v)
		}
	}
	sort.Strings(unique)
	return unique
}
