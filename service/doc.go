// Package service owns the lifecycle of the lookup index: building it from
// the raw mapping documents, persisting it through a configured store, and
// serving queries against an immutable snapshot.
//
// The service holds the current index behind a read-write mutex and
// replaces it wholesale after a successful rebuild. Readers observe either
// the fully-old or fully-new index, never a partially populated one. A
// failed rebuild leaves the serving index untouched.
//
// Queries are traced and counted through OpenTelemetry; pass providers via
// Options or rely on the globals.
package service
