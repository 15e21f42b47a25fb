package ontology

import (
	"encoding/json"
	"fmt"
	"strings"
)

// graphNamespace is the @id prefix of D3FEND nodes in the secondary
// ontology document. Nodes outside this namespace are ignored.
const graphNamespace = "d3f:"

// Secondary ontology node fields carrying the catalog ID and the reverse
// ATT&CK reference.
const (
	canonicalIDField = "d3f:d3fend-id"
	attackRefField   = "d3f:attack-id"
)

// enrichmentRecord holds the optional catalog metadata for one D3FEND ID.
type enrichmentRecord struct {
	CanonicalID string
	AttackRef   string
}

// buildEnrichment indexes the secondary ontology document by D3FEND
// fragment ID. Nodes with neither a canonical ID nor an attack reference
// are dropped; duplicate IDs keep the first node seen.
func buildEnrichment(raw []byte) (map[string]enrichmentRecord, error) {
	var doc struct {
		Graph []map[string]any `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnrichmentUnavailable, err)
	}

	idx := make(map[string]enrichmentRecord, len(doc.Graph))
	for _, node := range doc.Graph {
		id, _ := node["@id"].(string)
		if !strings.HasPrefix(id, graphNamespace) {
			continue
		}
		key := strings.TrimPrefix(id, graphNamespace)
		rec := enrichmentRecord{
			CanonicalID: nodeString(node, canonicalIDField),
			AttackRef:   nodeString(node, attackRefField),
		}
		if rec == (enrichmentRecord{}) {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = rec
		}
	}
	return idx, nil
}

// nodeString reads a string-valued node field, unwrapping JSON-LD
// {"@value": ...} literals.
func nodeString(node map[string]any, field string) string {
	switch v := node[field].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["@value"].(string); ok {
			return s
		}
	}
	return ""
}
