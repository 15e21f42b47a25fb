package ontology

import "errors"

// Sentinel errors for normalization. Use errors.Is to test for them.
var (
	// ErrMalformedSource indicates the mapping document failed to parse or
	// had an unrecognized top-level shape. A rebuild that hits this error
	// produces no output; callers must keep serving their previous index.
	ErrMalformedSource = errors.New("malformed mapping source")

	// ErrEnrichmentUnavailable indicates the secondary ontology document
	// was missing or unreadable. Enrichment is best-effort, so this is
	// logged and ignored, never surfaced to end users.
	ErrEnrichmentUnavailable = errors.New("enrichment source unavailable")
)
