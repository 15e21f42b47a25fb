// Package ontology implements the offline normalization pipeline that turns
// MITRE's ATT&CK/D3FEND mapping dump into canonical technique records.
//
// The mapping dump is published in two shapes: a SPARQL result document
// (rows under results.bindings) and a UUID-keyed object whose values are the
// same row objects. Normalize detects the shape once, then runs a
// shape-agnostic pipeline over the rows:
//
//   - resolve the offensive ATT&CK technique ID (URI fragment extraction,
//     uppercase, rows without a T-prefixed subject are dropped)
//   - derive D3FEND countermeasures from the def_tech and def_artifact
//     fields, classifying each as one of the six top-level tactics or as a
//     specific technique
//   - enrich countermeasures with canonical catalog IDs from the secondary
//     D3FEND ontology document, when one is supplied
//   - group rows by ATT&CK ID, deduplicate countermeasures by D3FEND ID
//     (first occurrence wins) and drop techniques left with none
//
// Row-level problems (missing fields, wrong types) skip the row; only a
// document that cannot be parsed at the top level fails the whole build with
// ErrMalformedSource. A missing or malformed enrichment document is never
// fatal: the canonical-ID fields are simply left empty.
//
// Normalization is a single-threaded batch transform. The returned slice is
// not retained by the package and is safe to hand to a read-only index.
package ontology
