package index

import (
	"errors"
	"fmt"
)

// Sentinel errors for query handling. Use errors.Is to test for them.
var (
	// ErrEmptyQuery indicates blank search text. Callers surface it as an
	// input prompt, not a failure.
	ErrEmptyQuery = errors.New("empty query")

	// ErrNoResults indicates a well-formed query that matched nothing.
	// Errors returned by Search wrap it in a NoResultsError carrying the
	// original query text.
	ErrNoResults = errors.New("no results")
)

// NoResultsError reports a query with no D3FEND correlations. Query holds
// the caller's original text so it can be echoed back verbatim.
type NoResultsError struct {
	Query string
}

func (e *NoResultsError) Error() string {
	return fmt.Sprintf("no D3FEND correlations for %q", e.Query)
}

// Is makes errors.Is(err, ErrNoResults) match.
func (e *NoResultsError) Is(target error) bool {
	return target == ErrNoResults
}
