package ontology

import (
	"errors"
	"sort"
	"strings"
)

// Normalize parses a raw mapping document and returns the canonical
// technique records: grouped by ATT&CK ID, countermeasures deduplicated by
// D3FEND ID with tactic entries sorted first, and techniques without any
// countermeasure dropped.
//
// The only fatal condition is a document whose top level cannot be parsed;
// that returns ErrMalformedSource and no records. Individual rows that are
// missing fields or carry unexpected types are skipped.
func Normalize(raw []byte, opts ...Option) ([]Technique, error) {
	o := newOptions(opts)

	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}

	var enrich map[string]enrichmentRecord
	if o.enrichment != nil {
		enrich, err = buildEnrichment(o.enrichment)
		if err != nil {
			// Best-effort: canonical IDs stay empty.
			o.logger.Warn("skipping countermeasure enrichment", "error", err)
			enrich = nil
		}
	}

	var retained []Technique
	for i, row := range rows {
		if rec, ok := parseRow(row, enrich); ok {
			retained = append(retained, rec)
		}
		if o.progress != nil {
			o.progress(i+1, len(rows))
		}
	}

	techniques := group(retained)
	o.logger.Info("normalized mapping document",
		"rows", len(rows),
		"retained_rows", len(retained),
		"techniques", len(techniques))
	return techniques, nil
}

// IsFatal reports whether a Normalize error must abort the rebuild. Only a
// malformed primary document qualifies; everything else is tolerated.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMalformedSource)
}

// parseRow turns one mapping row into a single-row technique record. It
// returns false for rows without a T-prefixed ATT&CK subject or without any
// derivable countermeasure.
func parseRow(row map[string]any, enrich map[string]enrichmentRecord) (Technique, bool) {
	id := extractField(row, "off_tech_id")
	if id == "" {
		id = extractField(row, "off_tech")
	}
	id = strings.ToUpper(strings.TrimSpace(fragment(id)))
	if id == "" || !strings.HasPrefix(id, "T") {
		return Technique{}, false
	}

	name := strings.TrimSpace(extractField(row, "off_tech_label"))
	if name == "" {
		name = id
	}

	parentTactic := strings.ToUpper(strings.TrimSpace(fragment(extractField(row, "def_tactic"))))

	seen := make(map[string]bool, 2)
	var entries []Entry
	for _, field := range []string{"def_tech", "def_artifact"} {
		uri := extractField(row, field)
		label := extractField(row, field+"_label")
		if label == "" {
			label = uri
		}

		// The D3FEND ID is the URI fragment; some rows carry no URI but a
		// label that already is an ID.
		var d3ID string
		if strings.Contains(uri, "#") {
			d3ID = strings.TrimSpace(fragment(uri))
		} else if strings.HasPrefix(label, "D3") {
			d3ID = label
		}
		if d3ID == "" || seen[d3ID] {
			continue
		}
		seen[d3ID] = true

		entryName := strings.TrimSpace(label)
		if entryName == "" {
			entryName = d3ID
		}

		kind := KindTechnique
		if canonicalTactics[strings.ToLower(entryName)] {
			kind = KindTactic
		}

		e := Entry{
			ID:   d3ID,
			Name: entryName,
			Kind: kind,
			URL:  entryURL(kind, d3ID),
		}
		if kind == KindTechnique {
			e.TacticID = parentTactic
		}
		if rec, ok := enrich[d3ID]; ok {
			e.CanonicalID = rec.CanonicalID
			e.AttackRef = rec.AttackRef
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return Technique{}, false
	}
	sortTacticsFirst(entries)

	return Technique{AttackID: id, AttackName: name, Countermeasures: entries}, true
}

// sortTacticsFirst moves canonical tactic entries ahead of technique
// entries, keeping the relative order within each group.
func sortTacticsFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Kind == KindTactic && entries[j].Kind != KindTactic
	})
}

// group merges single-row records by ATT&CK ID. The first non-empty name
// per ID wins, countermeasure lists concatenate in row order and are then
// deduplicated by D3FEND ID with the first occurrence kept. Technique order
// is first-appearance order.
func group(rows []Technique) []Technique {
	byID := make(map[string]int, len(rows))
	out := make([]Technique, 0, len(rows))

	for _, r := range rows {
		i, ok := byID[r.AttackID]
		if !ok {
			i = len(out)
			byID[r.AttackID] = i
			out = append(out, Technique{AttackID: r.AttackID})
		}
		if out[i].AttackName == "" {
			out[i].AttackName = r.AttackName
		}
		out[i].Countermeasures = append(out[i].Countermeasures, r.Countermeasures...)
	}

	final := out[:0]
	for _, t := range out {
		seen := make(map[string]bool, len(t.Countermeasures))
		uniq := make([]Entry, 0, len(t.Countermeasures))
		for _, e := range t.Countermeasures {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			uniq = append(uniq, e)
		}
		if len(uniq) == 0 {
			continue
		}
		// Rows were sorted individually; concatenation can interleave
		// tactic entries behind earlier technique entries.
		sortTacticsFirst(uniq)
		t.Countermeasures = uniq
		final = append(final, t)
	}
	return final
}

// fragment returns the part of a URI after its last "#", or the input
// unchanged when it has no fragment.
func fragment(s string) string {
	if i := strings.LastIndex(s, "#"); i >= 0 {
		return s[i+1:]
	}
	return s
}
