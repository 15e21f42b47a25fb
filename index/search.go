package index

import (
	"regexp"
	"strings"

	"github.com/countermap/countermap/ontology"
)

// attackIDPattern recognizes an ATT&CK-ID shaped substring anywhere in an
// uppercased query.
var attackIDPattern = regexp.MustCompile(`T\d{4}(\.\d{3})?`)

// DefaultListLimit caps ListTechniques output when no limit is given.
const DefaultListLimit = 500

// SearchResult is the outcome of a successful query.
type SearchResult struct {
	// Query echoes the caller's trimmed query text.
	Query string `json:"query"`

	// Techniques holds the matched records in index order.
	Techniques []ontology.Technique `json:"matches"`

	// TotalCountermeasures is the summed countermeasure count across all
	// matched techniques.
	TotalCountermeasures int `json:"total_d3fend"`
}

// TechniqueSummary is one row of a ListTechniques response.
type TechniqueSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Search answers a point or substring lookup.
//
// A query containing an ATT&CK-ID shaped substring is resolved by ID: a
// parent ID (T####) matches itself and every sub-technique sharing the
// prefix, a sub-technique ID (T####.###) matches exactly that record.
// Queries without an ID shape fall back to case-insensitive substring
// matching on technique names.
//
// Blank input returns ErrEmptyQuery. A query matching nothing returns a
// *NoResultsError (errors.Is-compatible with ErrNoResults) carrying the
// original query for the caller to echo.
func (ix *Index) Search(query string) (*SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	q := strings.ToUpper(trimmed)

	var matches []ontology.Technique
	if id := attackIDPattern.FindString(q); id != "" {
		matches = ix.matchByID(id)
	} else {
		matches = ix.matchByName(q)
	}

	if len(matches) == 0 {
		return nil, &NoResultsError{Query: trimmed}
	}

	total := 0
	for _, t := range matches {
		total += len(t.Countermeasures)
	}
	return &SearchResult{
		Query:                trimmed,
		Techniques:           matches,
		TotalCountermeasures: total,
	}, nil
}

// matchByID resolves an extracted ATT&CK ID. Parent IDs expand to the whole
// sub-technique family in index order; sub-technique IDs hit the lookup map
// directly.
func (ix *Index) matchByID(id string) []ontology.Technique {
	if strings.Contains(id, ".") {
		if t, ok := ix.Get(id); ok {
			return []ontology.Technique{t}
		}
		return nil
	}

	prefix := id + "."
	var matches []ontology.Technique
	for _, t := range ix.techniques {
		if t.AttackID == id || strings.HasPrefix(t.AttackID, prefix) {
			matches = append(matches, t)
		}
	}
	return matches
}

// matchByName scans all techniques for a case-insensitive name substring.
// Linear scan; the index holds a few hundred records.
func (ix *Index) matchByName(upperQuery string) []ontology.Technique {
	var matches []ontology.Technique
	for _, t := range ix.techniques {
		if strings.Contains(strings.ToUpper(t.AttackName), upperQuery) {
			matches = append(matches, t)
		}
	}
	return matches
}

// ListTechniques returns up to limit {id, name} rows whose ID or name
// contains filter case-insensitively, in index order. An empty filter
// matches everything; a non-positive limit uses DefaultListLimit.
func (ix *Index) ListTechniques(filter string, limit int) []TechniqueSummary {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := strings.ToUpper(strings.TrimSpace(filter))

	out := make([]TechniqueSummary, 0, min(limit, len(ix.techniques)))
	for _, t := range ix.techniques {
		if t.AttackID == "" {
			continue
		}
		name := strings.TrimSpace(t.AttackName)
		if q == "" || strings.Contains(t.AttackID, q) || strings.Contains(strings.ToUpper(name), q) {
			out = append(out, TechniqueSummary{ID: t.AttackID, Name: name})
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}
