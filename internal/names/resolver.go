// Package names turns numeric author seeds into readable display names.
package names

import (
	"math/rand/v2"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Resolver maps a seed to a display name. Implementations must be pure:
// the same seed always yields the same name.
type Resolver interface {
	Resolve(seed int64) string
}

// Generator builds "Adjective Animal" names from fixed dictionaries.
type Generator struct {
	adjectives []string
	animals    []string
	separator  string
}

func NewGenerator() *Generator {
	return &Generator{
		adjectives: adjectives,
		animals:    animals,
		separator:  " ",
	}
}

// Resolve is safe for concurrent use; every call draws from its own source.
func (g *Generator) Resolve(seed int64) string {
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	// cases.Caser keeps state, so it is never shared between calls
	caser := cases.Title(language.English)
	adj := caser.String(g.adjectives[r.IntN(len(g.adjectives))])
	animal := caser.String(g.animals[r.IntN(len(g.animals))])

	return adj + g.separator + animal
}
