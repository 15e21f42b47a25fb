package index

import (
	"github.com/countermap/countermap/ontology"
)

// Index is an immutable snapshot of normalized technique records with a
// map for exact ATT&CK-ID lookup and an ordered slice for scans. Safe for
// unbounded concurrent reads.
type Index struct {
	techniques []ontology.Technique
	byID       map[string]int
}

// New builds an Index from normalized technique records. The input slice
// is copied; callers may reuse it. Duplicate ATT&CK IDs keep the first
// record (the normalizer never produces duplicates).
func New(techniques []ontology.Technique) *Index {
	ix := &Index{
		techniques: make([]ontology.Technique, len(techniques)),
		byID:       make(map[string]int, len(techniques)),
	}
	copy(ix.techniques, techniques)
	for i, t := range ix.techniques {
		if _, ok := ix.byID[t.AttackID]; !ok {
			ix.byID[t.AttackID] = i
		}
	}
	return ix
}

// Len returns the number of techniques in the index.
func (ix *Index) Len() int {
	return len(ix.techniques)
}

// Get returns the technique for an exact ATT&CK ID.
func (ix *Index) Get(attackID string) (ontology.Technique, bool) {
	i, ok := ix.byID[attackID]
	if !ok {
		return ontology.Technique{}, false
	}
	return ix.techniques[i], true
}

// Techniques returns a copy of all records in index order.
func (ix *Index) Techniques() []ontology.Technique {
	out := make([]ontology.Technique, len(ix.techniques))
	copy(out, ix.techniques)
	return out
}

// Stats summarizes index contents for diagnostics.
type Stats struct {
	Techniques      int      `json:"techniques"`
	Countermeasures int      `json:"countermeasures"`
	SampleIDs       []string `json:"sample_ids,omitempty"`
}

// Stats returns technique and countermeasure counts plus a handful of
// sample IDs.
func (ix *Index) Stats() Stats {
	s := Stats{Techniques: len(ix.techniques)}
	for _, t := range ix.techniques {
		s.Countermeasures += len(t.Countermeasures)
	}
	for i := 0; i < len(ix.techniques) && i < 5; i++ {
		s.SampleIDs = append(s.SampleIDs, ix.techniques[i].AttackID)
	}
	return s
}
