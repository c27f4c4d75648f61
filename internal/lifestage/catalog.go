package lifestage

import (
	"fmt"
	"strconv"
	"strings"
)

// Species is an animal the catalogs know about.
type Species string

const (
	Cat Species = "cat"
	Dog Species = "dog"
)

// ParseSpecies matches a species cell (trimmed, case-insensitive).
func ParseSpecies(s string) (Species, bool) {
	switch Species(strings.ToLower(strings.TrimSpace(s))) {
	case Cat:
		return Cat, true
	case Dog:
		return Dog, true
	}
	return "", false
}

// Stage is a life-stage label.
type Stage string

const (
	Neonate     Stage = "neonate"
	Kitten      Stage = "kitten"
	Teen        Stage = "teen"
	Adult       Stage = "adult"
	Puppy       Stage = "puppy"
	Juvenile    Stage = "juvenile"
	YoungAdult  Stage = "young adult"
	MatureAdult Stage = "mature adult"
	Senior      Stage = "senior"
)

// Unit is the time unit of an age token.
type Unit int

const (
	Day Unit = iota
	Week
	Month
	Year
)

var unitNames = [...]string{Day: "day", Week: "week", Month: "month", Year: "year"}

func (u Unit) String() string { return unitNames[u] }

// Token is one accepted age expression, e.g. {2, Week} for "2 weeks".
type Token struct {
	Amount int
	Unit   Unit
}

// String renders the token the way source records spell it:
// singular unit for an amount of one, plural otherwise.
func (t Token) String() string {
	name := t.Unit.String()
	if t.Amount != 1 {
		name += "s"
	}
	return strconv.Itoa(t.Amount) + " " + name
}

// Span is an inclusive range of amounts in one unit.
type Span struct {
	Unit     Unit
	From, To int
}

// Bucket is a life stage and the token spans it accepts.
type Bucket struct {
	Stage Stage
	Spans []Span
}

// Tokens enumerates every token in the bucket's spans.
func (b Bucket) Tokens() []Token {
	var out []Token
	for _, s := range b.Spans {
		for n := s.From; n <= s.To; n++ {
			out = append(out, Token{Amount: n, Unit: s.Unit})
		}
	}
	return out
}

// Catalog is the ordered bucket table for one species.
type Catalog struct {
	Species Species
	Buckets []Bucket

	index map[string]Stage
}

func newCatalog(species Species, buckets ...Bucket) *Catalog {
	c := &Catalog{Species: species, Buckets: buckets}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	c.index = make(map[string]Stage)
	for _, b := range c.Buckets {
		for _, tok := range b.Tokens() {
			c.index[tok.String()] = b.Stage
		}
	}
	return c
}

// Validate checks that no token belongs to two buckets.
func (c *Catalog) Validate() error {
	seen := make(map[Token]Stage)
	for _, b := range c.Buckets {
		for _, tok := range b.Tokens() {
			if prev, dup := seen[tok]; dup {
				return fmt.Errorf("%s catalog: token %q in both %q and %q", c.Species, tok, prev, b.Stage)
			}
			seen[tok] = b.Stage
		}
	}
	return nil
}

// Classify returns the stage whose token set contains raw verbatim.
func (c *Catalog) Classify(raw string) (Stage, bool) {
	s, ok := c.index[raw]
	return s, ok
}

// Stages lists the labels in bucket order.
func (c *Catalog) Stages() []Stage {
	out := make([]Stage, len(c.Buckets))
	for i, b := range c.Buckets {
		out[i] = b.Stage
	}
	return out
}

// CatCatalog buckets feline ages.
var CatCatalog = newCatalog(Cat,
	Bucket{Stage: Neonate, Spans: []Span{{Day, 0, 90}, {Week, 0, 12}, {Month, 0, 3}}},
	Bucket{Stage: Kitten, Spans: []Span{{Day, 91, 182}, {Week, 13, 26}, {Month, 4, 6}}},
	Bucket{Stage: Teen, Spans: []Span{{Week, 27, 104}, {Month, 7, 24}, {Year, 1, 1}}},
	Bucket{Stage: Adult, Spans: []Span{{Year, 2, 7}}},
	Bucket{Stage: Senior, Spans: []Span{{Year, 8, 30}}},
)

// DogCatalog buckets canine ages.
var DogCatalog = newCatalog(Dog,
	Bucket{Stage: Puppy, Spans: []Span{{Day, 0, 182}, {Week, 0, 26}, {Month, 0, 5}}},
	Bucket{Stage: Juvenile, Spans: []Span{{Week, 27, 52}, {Month, 6, 12}}},
	Bucket{Stage: YoungAdult, Spans: []Span{{Week, 53, 104}, {Month, 13, 24}, {Year, 1, 1}}},
	Bucket{Stage: MatureAdult, Spans: []Span{{Year, 2, 6}}},
	Bucket{Stage: Senior, Spans: []Span{{Year, 7, 30}}},
)

// CatalogFor returns the bucket table of a species.
func CatalogFor(s Species) *Catalog {
	switch s {
	case Cat:
		return CatCatalog
	case Dog:
		return DogCatalog
	}
	return nil
}
