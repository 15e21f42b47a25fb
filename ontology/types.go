package ontology

import "fmt"

// Kind classifies a D3FEND entry as a top-level tactic or a specific
// defensive technique.
type Kind string

const (
	// KindTactic marks one of the six top-level D3FEND tactics.
	KindTactic Kind = "tactic"

	// KindTechnique marks a specific defensive technique or artifact.
	KindTechnique Kind = "technique"
)

// IsValid returns true if the kind is a known value.
func (k Kind) IsValid() bool {
	return k == KindTactic || k == KindTechnique
}

// ParseKind parses a string into a Kind value.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTactic:
		return KindTactic, nil
	case KindTechnique:
		return KindTechnique, nil
	default:
		return "", fmt.Errorf("invalid kind: %q", s)
	}
}

// canonicalTactics is the fixed set of top-level D3FEND tactic names,
// lowercased. An entry whose label matches one of these is classified as a
// tactic; everything else is a technique.
var canonicalTactics = map[string]bool{
	"harden":  true,
	"detect":  true,
	"isolate": true,
	"deceive": true,
	"evict":   true,
	"restore": true,
}

// Entry is a single D3FEND countermeasure associated with an ATT&CK
// technique.
type Entry struct {
	// ID is the D3FEND ontology fragment identifier (e.g., "D3-NTA").
	// Always non-empty.
	ID string `json:"id"`

	// CanonicalID is the official D3FEND catalog ID (e.g., "D3A-..."),
	// populated from the secondary ontology document when available.
	CanonicalID string `json:"canonical_id,omitempty"`

	// AttackRef is a reverse-reference ATT&CK ID carried in the ontology
	// metadata for this countermeasure, when present.
	AttackRef string `json:"attack_ref,omitempty"`

	// Name is the human-readable label.
	Name string `json:"name"`

	// Kind is tactic or technique.
	Kind Kind `json:"kind"`

	// TacticID is the parent ATT&CK tactic ID from the source row. Only
	// set for technique entries; always empty for tactics.
	TacticID string `json:"tactic_id,omitempty"`

	// URL is the D3FEND catalog page for this entry.
	URL string `json:"url"`
}

// Technique is one ATT&CK technique together with its deduplicated,
// ordered countermeasures. Techniques are built once per normalization run
// and never mutated afterwards.
type Technique struct {
	// AttackID is the canonical uppercase ATT&CK ID, "T####" or
	// "T####.###". Unique across a normalization run.
	AttackID string `json:"attack_id"`

	// AttackName is the human-readable technique name. The first non-empty
	// name seen for an ATT&CK ID during grouping wins.
	AttackName string `json:"attack_name"`

	// Countermeasures is ordered with canonical tactic entries first,
	// otherwise stable in row order, and contains no duplicate IDs.
	Countermeasures []Entry `json:"d3fend"`
}

// entryURL builds the deterministic D3FEND catalog URL for an entry.
func entryURL(kind Kind, id string) string {
	return fmt.Sprintf("https://d3fend.mitre.org/%s/d3f:%s", kind, id)
}
