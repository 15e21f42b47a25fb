package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/countermap/countermap/ontology"
)

func entry(id, name string, kind ontology.Kind) ontology.Entry {
	return ontology.Entry{
		ID:   id,
		Name: name,
		Kind: kind,
		URL:  "https://d3fend.mitre.org/" + string(kind) + "/d3f:" + id,
	}
}

// testIndex builds a small index covering the parent/sub-technique and
// name-search paths.
func testIndex() *Index {
	return New([]ontology.Technique{
		{
			AttackID:   "T1566",
			AttackName: "Phishing",
			Countermeasures: []ontology.Entry{
				entry("Detect", "Detect", ontology.KindTactic),
				entry("D3-NTA", "Network Traffic Analysis", ontology.KindTechnique),
			},
		},
		{
			AttackID:   "T1566.001",
			AttackName: "Phishing: Spearphishing Attachment",
			Countermeasures: []ontology.Entry{
				entry("D3-FA", "File Analysis", ontology.KindTechnique),
			},
		},
		{
			AttackID:   "T1566.002",
			AttackName: "Phishing: Spearphishing Link",
			Countermeasures: []ontology.Entry{
				entry("D3-UA", "URL Analysis", ontology.KindTechnique),
			},
		},
		{
			AttackID:   "T1059",
			AttackName: "Command and Scripting Interpreter",
			Countermeasures: []ontology.Entry{
				entry("D3-PA", "Process Analysis", ontology.KindTechnique),
				entry("D3-SEA", "Script Execution Analysis", ontology.KindTechnique),
			},
		},
	})
}

func matchedIDs(r *SearchResult) []string {
	ids := make([]string, 0, len(r.Techniques))
	for _, t := range r.Techniques {
		ids = append(ids, t.AttackID)
	}
	return ids
}

func TestSearchParentExpansion(t *testing.T) {
	ix := testIndex()

	result, err := ix.Search("T1566")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1566", "T1566.001", "T1566.002"}, matchedIDs(result))
	assert.Equal(t, 4, result.TotalCountermeasures)
}

func TestSearchExactSubTechnique(t *testing.T) {
	ix := testIndex()

	result, err := ix.Search("T1566.001")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1566.001"}, matchedIDs(result))
	assert.Equal(t, 1, result.TotalCountermeasures)
}

func TestSearchIDEmbeddedInText(t *testing.T) {
	ix := testIndex()

	result, err := ix.Search("how do I defend against t1059?")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1059"}, matchedIDs(result))
}

func TestSearchNameFallback(t *testing.T) {
	ix := testIndex()

	t.Run("case-insensitive substring", func(t *testing.T) {
		result, err := ix.Search("phishing")
		require.NoError(t, err)
		assert.Equal(t, []string{"T1566", "T1566.001", "T1566.002"}, matchedIDs(result))
	})

	t.Run("partial word", func(t *testing.T) {
		result, err := ix.Search("Interpreter")
		require.NoError(t, err)
		assert.Equal(t, []string{"T1059"}, matchedIDs(result))
	})
}

func TestSearchEmptyQuery(t *testing.T) {
	ix := testIndex()

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := ix.Search(q)
		assert.ErrorIs(t, err, ErrEmptyQuery, "query %q", q)
	}
}

func TestSearchNoResults(t *testing.T) {
	ix := testIndex()

	t.Run("unknown sub-technique", func(t *testing.T) {
		_, err := ix.Search("T9999.999")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoResults)

		var noResults *NoResultsError
		require.True(t, errors.As(err, &noResults))
		assert.Equal(t, "T9999.999", noResults.Query)
	})

	t.Run("original query echoed", func(t *testing.T) {
		_, err := ix.Search("  quantum basket weaving  ")
		var noResults *NoResultsError
		require.True(t, errors.As(err, &noResults))
		assert.Equal(t, "quantum basket weaving", noResults.Query)
	})
}

func TestSearchSubTechniquesOnlyFamily(t *testing.T) {
	// Parent query still expands when the parent itself is absent.
	ix := New([]ontology.Technique{
		{AttackID: "T1566.001", AttackName: "A", Countermeasures: []ontology.Entry{entry("D3-FA", "File Analysis", ontology.KindTechnique)}},
		{AttackID: "T1566.002", AttackName: "B", Countermeasures: []ontology.Entry{entry("D3-UA", "URL Analysis", ontology.KindTechnique)}},
	})

	result, err := ix.Search("T1566")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1566.001", "T1566.002"}, matchedIDs(result))
}

func TestListTechniques(t *testing.T) {
	ix := testIndex()

	t.Run("empty filter lists all", func(t *testing.T) {
		out := ix.ListTechniques("", 0)
		require.Len(t, out, 4)
		assert.Equal(t, "T1566", out[0].ID)
		assert.Equal(t, "Phishing", out[0].Name)
	})

	t.Run("filter by id substring", func(t *testing.T) {
		out := ix.ListTechniques("1566.0", 0)
		require.Len(t, out, 2)
		assert.Equal(t, "T1566.001", out[0].ID)
	})

	t.Run("filter by name substring", func(t *testing.T) {
		out := ix.ListTechniques("scripting", 0)
		require.Len(t, out, 1)
		assert.Equal(t, "T1059", out[0].ID)
	})

	t.Run("limit truncates in index order", func(t *testing.T) {
		out := ix.ListTechniques("", 2)
		require.Len(t, out, 2)
		assert.Equal(t, "T1566", out[0].ID)
		assert.Equal(t, "T1566.001", out[1].ID)
	})

	t.Run("no match is empty not error", func(t *testing.T) {
		assert.Empty(t, ix.ListTechniques("zzz", 0))
	})
}

func TestIndexAccessors(t *testing.T) {
	ix := testIndex()

	assert.Equal(t, 4, ix.Len())

	tech, ok := ix.Get("T1059")
	require.True(t, ok)
	assert.Equal(t, "Command and Scripting Interpreter", tech.AttackName)

	_, ok = ix.Get("T0000")
	assert.False(t, ok)

	stats := ix.Stats()
	assert.Equal(t, 4, stats.Techniques)
	assert.Equal(t, 6, stats.Countermeasures)
	assert.Equal(t, []string{"T1566", "T1566.001", "T1566.002", "T1059"}, stats.SampleIDs)
}

func TestIndexCopiesInput(t *testing.T) {
	techniques := []ontology.Technique{
		{AttackID: "T1059", AttackName: "Command and Scripting Interpreter",
			Countermeasures: []ontology.Entry{entry("D3-PA", "Process Analysis", ontology.KindTechnique)}},
	}
	ix := New(techniques)

	techniques[0] = ontology.Technique{AttackID: "T9999"}

	got, ok := ix.Get("T1059")
	require.True(t, ok)
	assert.Equal(t, "T1059", got.AttackID)
	assert.Equal(t, "Command and Scripting Interpreter", got.AttackName)
}
