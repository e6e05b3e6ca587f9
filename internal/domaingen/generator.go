// Package domaingen turns a facility name into a ranked, deduplicated list
// of candidate domains. Generation is pure and deterministic: the same name
// always yields the same ordered list, which is what makes results cacheable
// and the package testable without a network.
package domaingen

import (
	"sort"
	"strings"

	"github.com/lodgeleads/enrich/internal/config"
)

// defaultInsertWord is spliced into names that carry no type word of their
// own. Real-world domains put it anywhere: "pearlhotelistanbul.com" has it
// between the core tokens, not appended.
const defaultInsertWord = "hotel"

// Generator produces candidate domains for facility names.
type Generator struct {
	typeWords map[string]bool
	stopWords map[string]bool
	tlds      []string
	maxOut    int
}

// New creates a Generator from discovery configuration.
func New(cfg config.DiscoveryConfig) *Generator {
	g := &Generator{
		typeWords: make(map[string]bool, len(cfg.TypeWords)),
		stopWords: make(map[string]bool, len(cfg.StopWords)),
		tlds:      append([]string(nil), cfg.TLDs...),
		maxOut:    cfg.MaxCandidates,
	}
	for _, w := range cfg.TypeWords {
		g.typeWords[Normalize(w)] = true
	}
	for _, w := range cfg.StopWords {
		g.stopWords[Normalize(w)] = true
	}
	if len(g.tlds) == 0 {
		g.tlds = []string{".com.tr", ".com", ".net"}
	}
	if g.maxOut <= 0 {
		g.maxOut = 200
	}
	return g
}

// Generate returns an ordered, deduplicated candidate domain list for the
// raw facility name. Returns nil when the name normalizes to nothing usable.
func (g *Generator) Generate(name string) []string {
	tokens := Tokenize(Normalize(name))
	if len(tokens) == 0 {
		return nil
	}

	core, typeInName := g.splitTokens(tokens)

	variants := g.buildVariants(tokens, core, typeInName)
	if len(variants) == 0 {
		return nil
	}
	variants = prioritize(variants)

	seen := make(map[string]bool, g.maxOut)
	out := make([]string, 0, g.maxOut)
	for _, v := range variants {
		for _, tld := range g.tlds {
			d := v + tld
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			if len(out) >= g.maxOut {
				return out
			}
		}
	}
	return out
}

// CoreTokens returns the distinctive tokens of a facility name: normalized,
// with type words and stop words removed. Used for scoring and for building
// search queries.
func (g *Generator) CoreTokens(name string) []string {
	tokens := Tokenize(Normalize(name))
	if len(tokens) == 0 {
		return nil
	}
	core, _ := g.splitTokens(tokens)
	return core
}

// splitTokens separates core name tokens from type words. When filtering
// leaves nothing, progressively fall back so every name produces output.
func (g *Generator) splitTokens(tokens []string) (core []string, typeInName string) {
	for _, t := range tokens {
		switch {
		case g.typeWords[t]:
			if typeInName == "" {
				typeInName = t
			}
		case g.stopWords[t]:
		default:
			core = append(core, t)
		}
	}
	if len(core) == 0 {
		for _, t := range tokens {
			if !g.stopWords[t] {
				core = append(core, t)
			}
		}
	}
	if len(core) == 0 {
		core = tokens
	}
	return core, typeInName
}

// buildVariants produces the domain name bodies, before TLD expansion.
// For k core tokens, each insertion word is spliced at every one of the
// k+1 boundary positions via an explicit position loop.
func (g *Generator) buildVariants(tokens, core []string, typeInName string) []string {
	var ordered []string
	seen := make(map[string]bool)
	add := func(parts []string) {
		for _, v := range []string{strings.Join(parts, ""), strings.Join(parts, "-")} {
			if len(v) < 3 || seen[v] {
				continue
			}
			seen[v] = true
			ordered = append(ordered, v)
		}
	}

	// The name as written, type word kept in its original position, stop
	// words dropped.
	if typeInName != "" {
		written := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if !g.stopWords[t] {
				written = append(written, t)
			}
		}
		add(written)
	}

	// Bare concatenation of core tokens.
	add(core)

	insertWords := []string{defaultInsertWord}
	if typeInName != "" && typeInName != defaultInsertWord {
		insertWords = []string{typeInName, defaultInsertWord}
	}

	for _, w := range insertWords {
		for pos := 0; pos <= len(core); pos++ {
			parts := make([]string, 0, len(core)+1)
			parts = append(parts, core[:pos]...)
			parts = append(parts, w)
			parts = append(parts, core[pos:]...)
			add(parts)
		}
	}

	return ordered
}

// prioritize orders variant bodies the way validation wants to see them:
// Turkish-specific suffixes first, then specific (hotel-free) bodies, then
// generic hotel-bearing ones, longest first within each group. Sorting is
// stable so equal-length variants keep generation order.
func prioritize(variants []string) []string {
	groups := [4][]string{}
	for _, v := range variants {
		switch {
		case strings.HasSuffix(v, "oteli"):
			groups[0] = append(groups[0], v)
		case strings.HasSuffix(v, "otel"):
			groups[1] = append(groups[1], v)
		case !strings.Contains(v, "hotel"):
			groups[2] = append(groups[2], v)
		default:
			groups[3] = append(groups[3], v)
		}
	}

	out := make([]string, 0, len(variants))
	for _, grp := range groups {
		sort.SliceStable(grp, func(i, j int) bool { return len(grp[i]) > len(grp[j]) })
		out = append(out, grp...)
	}
	return out
}
