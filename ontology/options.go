package ontology

import "log/slog"

// ProgressFunc reports normalization progress. It is called with the number
// of rows processed so far and the total row count. Callers that feed a
// progress bar or a status endpoint pass one in via WithProgress; the
// callback runs on the normalizing goroutine and must not block.
type ProgressFunc func(done, total int)

// Option configures a Normalize run.
type Option func(*options)

type options struct {
	enrichment []byte
	progress   ProgressFunc
	logger     *slog.Logger
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithEnrichment supplies the secondary D3FEND ontology document used to
// attach canonical catalog IDs and reverse ATT&CK references to
// countermeasures. Enrichment is best-effort: a document that fails to
// parse is logged and skipped.
func WithEnrichment(doc []byte) Option {
	return func(o *options) {
		o.enrichment = doc
	}
}

// WithProgress registers a progress callback for the run.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithLogger sets the structured logger for the run. Defaults to
// slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
