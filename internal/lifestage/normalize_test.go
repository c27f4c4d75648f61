package lifestage

import (
	"testing"

	"github.com/KaramelBytes/vetviz-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ageTable(t *testing.T, rows ...[2]string) *table.Table {
	t.Helper()
	tbl := table.New("ages", []string{"Species", "Age"})
	for _, r := range rows {
		require.NoError(t, tbl.Append([]table.Value{table.Text(r[0]), table.Text(r[1])}))
	}
	return tbl
}

func ages(tbl *table.Table) []string {
	out := make([]string, tbl.Len())
	for i := range out {
		out[i] = tbl.Cell(i, 1).String()
	}
	return out
}

func TestNormalizeCat(t *testing.T) {
	src := ageTable(t,
		[2]string{"cat", "3 days"},
		[2]string{"cat", "2 months"},
		[2]string{"cat", "5 years"},
		[2]string{"cat", "unknown"},
	)

	out, rep, err := Normalize(src, TargetCat, Columns{Age: 1, Species: -1})
	require.NoError(t, err)

	assert.Equal(t, []string{"neonate", "neonate", "adult", "unknown"}, ages(out))
	assert.Equal(t, 3, rep.Classified)
	assert.Equal(t, []TokenCount{{Token: "unknown", Count: 1}}, rep.Unclassified)
	assert.Equal(t, []StageCount{
		{Species: Cat, Stage: Neonate, Count: 2},
		{Species: Cat, Stage: Adult, Count: 1},
	}, rep.Stages)

	// The source table is never modified.
	assert.Equal(t, "3 days", src.Cell(0, 1).String())
}

func TestNormalizeDog(t *testing.T) {
	src := ageTable(t,
		[2]string{"dog", "1 week"},
		[2]string{"dog", "8 months"},
		[2]string{"dog", "1 year"},
		[2]string{"dog", "4 years"},
		[2]string{"dog", "12 years"},
	)
	out, _, err := Normalize(src, TargetDog, Columns{Age: 1, Species: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"puppy", "juvenile", "young adult", "mature adult", "senior"}, ages(out))
}

func TestNormalizeMultiPassThrough(t *testing.T) {
	src := ageTable(t,
		[2]string{"Cat", "6 months"},
		[2]string{"dog", "6 months"},
		[2]string{"rabbit", "6 months"},
		[2]string{"", "2 years"},
	)
	out, rep, err := Normalize(src, TargetMulti, Columns{Age: 1, Species: 0})
	require.NoError(t, err)

	assert.Equal(t, []string{"kitten", "juvenile", "6 months", "2 years"}, ages(out))
	assert.Equal(t, 2, rep.PassThrough)
	assert.Empty(t, rep.Unclassified)
}

func TestNormalizeMissingAndErrors(t *testing.T) {
	src := table.New("ages", []string{"Species", "Age"})
	require.NoError(t, src.Append([]table.Value{table.Text("cat"), table.Null()}))

	_, rep, err := Normalize(src, TargetCat, Columns{Age: 1, Species: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Missing)
	assert.Equal(t, 0, rep.UnclassifiedRows())

	_, _, err = Normalize(src, TargetMulti, Columns{Age: 1, Species: -1})
	assert.Error(t, err)
	_, _, err = Normalize(src, TargetCat, Columns{Age: 5, Species: -1})
	assert.Error(t, err)
}

func TestCatalogsDisjointAndTotal(t *testing.T) {
	for _, c := range []*Catalog{CatCatalog, DogCatalog} {
		t.Run(string(c.Species), func(t *testing.T) {
			require.NoError(t, c.Validate())

			// Every enumerated token maps to exactly one stage.
			count := map[string]int{}
			for _, b := range c.Buckets {
				for _, tok := range b.Tokens() {
					count[tok.String()]++
					stage, ok := c.Classify(tok.String())
					require.True(t, ok, tok.String())
					assert.Equal(t, b.Stage, stage)
				}
			}
			for tok, n := range count {
				assert.Equal(t, 1, n, tok)
			}

			// Whole years 1..30 are covered.
			for y := 1; y <= 30; y++ {
				_, ok := c.Classify(Token{Amount: y, Unit: Year}.String())
				assert.True(t, ok, "year %d", y)
			}
			assert.Len(t, c.Stages(), 5)
		})
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	c := &Catalog{Species: Cat, Buckets: []Bucket{
		{Stage: Adult, Spans: []Span{{Year, 2, 7}}},
		{Stage: Senior, Spans: []Span{{Year, 7, 30}}},
	}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"7 years"`)
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "1 day", Token{1, Day}.String())
	assert.Equal(t, "0 days", Token{0, Day}.String())
	assert.Equal(t, "2 weeks", Token{2, Week}.String())
	assert.Equal(t, "1 month", Token{1, Month}.String())
	assert.Equal(t, "30 years", Token{30, Year}.String())
}

func TestParseTarget(t *testing.T) {
	got, err := ParseTarget(" Multi ")
	require.NoError(t, err)
	assert.Equal(t, TargetMulti, got)

	_, err = ParseTarget("horse")
	assert.Error(t, err)
}

func TestReportByCatalog(t *testing.T) {
	src := ageTable(t,
		[2]string{"dog", "10 years"},
		[2]string{"cat", "5 years"},
		[2]string{"dog", "3 weeks"},
		[2]string{"cat", "3 days"},
	)
	_, rep, err := Normalize(src, TargetMulti, Columns{Age: 1, Species: 0})
	require.NoError(t, err)

	assert.Equal(t, []StageCount{
		{Species: Dog, Stage: Puppy, Count: 1},
		{Species: Dog, Stage: Senior, Count: 1},
		{Species: Cat, Stage: Neonate, Count: 1},
		{Species: Cat, Stage: Adult, Count: 1},
	}, rep.ByCatalog())
	assert.Equal(t, Senior, rep.Stages[0].Stage, "Stages keeps first-appearance order")
}
