package index

import (
	"html"

	"github.com/countermap/countermap/ontology"
)

// Sanitized returns a deep copy of the result with every emitted string
// field HTML-entity-escaped, for consumers that render fields directly.
// The receiver and the records stored in the index keep their raw values;
// escaping never affects matching or ordering.
func (r *SearchResult) Sanitized() *SearchResult {
	out := &SearchResult{
		Query:                r.Query,
		Techniques:           make([]ontology.Technique, len(r.Techniques)),
		TotalCountermeasures: r.TotalCountermeasures,
	}
	for i, t := range r.Techniques {
		out.Techniques[i] = sanitizeTechnique(t)
	}
	return out
}

func sanitizeTechnique(t ontology.Technique) ontology.Technique {
	name := t.AttackName
	if name == "" {
		name = t.AttackID
	}
	clean := ontology.Technique{
		AttackID:        html.EscapeString(t.AttackID),
		AttackName:      html.EscapeString(name),
		Countermeasures: make([]ontology.Entry, len(t.Countermeasures)),
	}
	for i, e := range t.Countermeasures {
		clean.Countermeasures[i] = ontology.Entry{
			ID:          html.EscapeString(e.ID),
			CanonicalID: html.EscapeString(e.CanonicalID),
			AttackRef:   html.EscapeString(e.AttackRef),
			Name:        html.EscapeString(e.Name),
			Kind:        ontology.Kind(html.EscapeString(string(e.Kind))),
			TacticID:    html.EscapeString(e.TacticID),
			URL:         html.EscapeString(e.URL),
		}
	}
	return clean
}
