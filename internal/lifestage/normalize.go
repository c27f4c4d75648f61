package lifestage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/vetviz-cli/internal/table"
)

// Target selects which catalog applies to a table.
type Target string

const (
	TargetCat Target = "cat"
	TargetDog Target = "dog"
	// TargetMulti picks the catalog per row from a species column.
	TargetMulti Target = "multi"
)

// ParseTarget validates a configured species option.
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case TargetCat, TargetDog, TargetMulti:
		return t, nil
	}
	return "", fmt.Errorf("invalid species %q (want cat, dog or multi)", s)
}

// Columns locates the cells Normalize reads. Species is only used with TargetMulti.
type Columns struct {
	Age     int
	Species int
}

// StageCount is the number of rows assigned to a stage.
type StageCount struct {
	Species Species `json:"species" yaml:"species"`
	Stage   Stage   `json:"stage" yaml:"stage"`
	Count   int     `json:"count" yaml:"count"`
}

// TokenCount is a raw age value that no bucket accepts, with its frequency.
type TokenCount struct {
	Token string `json:"token" yaml:"token"`
	Count int    `json:"count" yaml:"count"`
}

// Report summarizes one normalization pass.
type Report struct {
	Classified int          `json:"classified" yaml:"classified"`
	Stages     []StageCount `json:"stages" yaml:"stages"`
	// Unclassified raw values in first-appearance order; cells are left unchanged.
	Unclassified []TokenCount `json:"unclassified,omitempty" yaml:"unclassified,omitempty"`
	// PassThrough counts rows skipped because their species is neither cat nor dog.
	PassThrough int `json:"pass_through" yaml:"pass_through"`
	// Missing counts rows with an empty age cell.
	Missing int `json:"missing" yaml:"missing"`
}

// UnclassifiedRows is the total number of rows whose age matched no bucket.
func (r Report) UnclassifiedRows() int {
	n := 0
	for _, u := range r.Unclassified {
		n += u.Count
	}
	return n
}

// ByCatalog returns the stage counts with each species' stages in bucket
// order. Species keep their first-appearance order.
func (r Report) ByCatalog() []StageCount {
	out := append([]StageCount(nil), r.Stages...)
	first := map[Species]int{}
	for i, s := range out {
		if _, ok := first[s.Species]; !ok {
			first[s.Species] = i
		}
	}
	rank := func(s StageCount) int {
		if c := CatalogFor(s.Species); c != nil {
			for i, st := range c.Stages() {
				if st == s.Stage {
					return i
				}
			}
		}
		return len(out)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if fi, fj := first[out[i].Species], first[out[j].Species]; fi != fj {
			return fi < fj
		}
		return rank(out[i]) < rank(out[j])
	})
	return out
}

// Normalize replaces raw age expressions with life-stage labels on a copy of t.
// Matching is exact membership of the cell text in a catalog's token set.
func Normalize(t *table.Table, target Target, cols Columns) (*table.Table, Report, error) {
	var rep Report
	if cols.Age < 0 || cols.Age >= t.Width() {
		return nil, rep, errors.New("age column out of range")
	}
	if target == TargetMulti && (cols.Species < 0 || cols.Species >= t.Width()) {
		return nil, rep, errors.New("species column required for multi-species tables")
	}
	var fixed *Catalog
	if target != TargetMulti {
		fixed = CatalogFor(Species(target))
		if fixed == nil {
			return nil, rep, fmt.Errorf("invalid species %q", target)
		}
	}

	out := t.Clone()
	stages := newStageCounter()
	unclassified := newTokenCounter()
	for r := 0; r < out.Len(); r++ {
		cat := fixed
		if cat == nil {
			sp, ok := ParseSpecies(out.Cell(r, cols.Species).String())
			if !ok {
				rep.PassThrough++
				continue
			}
			cat = CatalogFor(sp)
		}
		cell := out.Cell(r, cols.Age)
		if cell.IsNull() {
			rep.Missing++
			continue
		}
		raw := cell.String()
		stage, ok := cat.Classify(raw)
		if !ok {
			unclassified.add(raw)
			continue
		}
		out.Set(r, cols.Age, table.Text(string(stage)))
		stages.add(cat.Species, stage)
		rep.Classified++
	}
	rep.Stages = stages.list
	rep.Unclassified = unclassified.list
	return out, rep, nil
}

type stageKey struct {
	species Species
	stage   Stage
}

type stageCounter struct {
	pos  map[stageKey]int
	list []StageCount
}

func newStageCounter() *stageCounter { return &stageCounter{pos: map[stageKey]int{}} }

func (c *stageCounter) add(sp Species, st Stage) {
	k := stageKey{sp, st}
	if i, ok := c.pos[k]; ok {
		c.list[i].Count++
		return
	}
	c.pos[k] = len(c.list)
	c.list = append(c.list, StageCount{Species: sp, Stage: st, Count: 1})
}

type tokenCounter struct {
	pos  map[string]int
	list []TokenCount
}

func newTokenCounter() *tokenCounter { return &tokenCounter{pos: map[string]int{}} }

func (c *tokenCounter) add(tok string) {
	if i, ok := c.pos[tok]; ok {
		c.list[i].Count++
		return
	}
	c.pos[tok] = len(c.list)
	c.list = append(c.list, TokenCount{Token: tok, Count: 1})
}
