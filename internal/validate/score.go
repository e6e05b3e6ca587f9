package validate

import (
	"math"
	"strings"

	"github.com/lodgeleads/enrich/internal/domaingen"
)

// Scorer assigns a 0-100 confidence score to a candidate website for a
// facility. Scoring is pure string analysis; fetching lives in Validator.
//
// Weights, summing to 100:
//
//	domain token similarity   45
//	hospitality keyword       15  (domain or title)
//	city present in content   15
//	name present in title     15
//	domain length bonus       10
type Scorer struct {
	keywords []string
}

// NewScorer creates a Scorer. keywords are the hospitality type words whose
// presence in a domain or title counts toward the score.
func NewScorer(keywords []string) *Scorer {
	s := &Scorer{keywords: make([]string, 0, len(keywords))}
	for _, k := range keywords {
		if k = domaingen.Normalize(k); k != "" {
			s.keywords = append(s.keywords, k)
		}
	}
	return s
}

// Score computes the full confidence score from the fetched page. More of
// the name's tokens appearing in the domain never lowers the score.
func (s *Scorer) Score(nameTokens []string, city, domain, title, content string) float64 {
	body := domainBody(domain)
	title = strings.ToLower(title)
	content = strings.ToLower(content)

	score := tokenCoverage(nameTokens, body) * 45

	if s.hasKeyword(body) || s.hasKeyword(title) {
		score += 15
	}
	if cityPresent(city, content) || cityPresent(city, body) {
		score += 15
	}
	score += tokenCoverage(nameTokens, title) * 15

	switch {
	case len(body) > 0 && len(body) <= 15:
		score += 10
	case len(body) <= 25:
		score += 5
	}

	return math.Round(math.Min(100, score)*100) / 100
}

// FastScore is the cheap pre-check used to shortcut full content analysis:
// domain similarity is worth 40 points and city presence another 40. When
// the sum clears the fast-pass threshold the candidate is accepted without
// reading the rest of the page.
func (s *Scorer) FastScore(nameTokens []string, city, domain, content string) float64 {
	body := domainBody(domain)
	score := tokenCoverage(nameTokens, body) * 40
	if cityPresent(city, strings.ToLower(content)) || cityPresent(city, body) {
		score += 40
	}
	return math.Round(score*100) / 100
}

func (s *Scorer) hasKeyword(in string) bool {
	for _, k := range s.keywords {
		if strings.Contains(in, k) {
			return true
		}
	}
	return false
}

// domainBody strips the TLD and any www prefix, leaving the registrable
// name the candidates were generated from.
func domainBody(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '.'); i > 0 {
		d = d[:i]
	}
	return d
}

// tokenCoverage is the fraction of tokens appearing as substrings of in.
// Single-character tokens are ignored; they match everything.
func tokenCoverage(tokens []string, in string) float64 {
	var total, hits int
	for _, t := range tokens {
		if len(t) < 2 {
			continue
		}
		total++
		if strings.Contains(in, t) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func cityPresent(city, in string) bool {
	c := domaingen.Normalize(city)
	return c != "" && strings.Contains(in, c)
}
