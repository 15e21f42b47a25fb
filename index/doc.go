// Package index holds normalized ATT&CK→D3FEND technique records in a
// read-optimized, immutable form and answers point and substring lookups
// with deterministic ordering.
//
// An Index is built once from the normalizer's output and never mutated:
// after New returns, any number of goroutines may query it concurrently
// without locking. Rebuilds produce a new Index; swapping it in is the
// caller's concern (see the service package).
//
// Search resolves queries in two modes. If the query contains an ATT&CK-ID
// shaped substring (T#### or T####.###), the ID path is used: a parent ID
// matches itself and all of its sub-techniques, a sub-technique ID matches
// exactly. Otherwise the query falls back to case-insensitive substring
// matching over technique names. Results always come back in index order.
//
// Results keep raw field values; call Sanitized on a SearchResult to get an
// HTML-escaped copy for transports that render fields directly.
package index
