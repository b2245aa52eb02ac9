package rank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/verdantlab/floramatch/internal/domain"
)

// Catalog attributes use free-form dataset phrasing ("keep soil evenly
// moist"); the questionnaire offers coarse buckets ("high"). These mappings
// translate dataset values into the bucket vocabulary so lexical matching
// compares like with like. A value missing here is a dataset defect and
// fails corpus construction.
var wateringBuckets = map[string]string{
	"keep soil consistently moist":  "high",
	"keep soil evenly moist":        "high",
	"keep soil moist":               "high",
	"keep soil slightly moist":      "high",
	"let soil dry between watering": "low",
	"regular watering":              "moderate",
	"regular, moist soil":           "moderate",
	"regular, well-drained soil":    "moderate",
	"water weekly":                  "low",
	"water when soil feels dry":     "low",
	"water when soil is dry":        "low",
	"water when topsoil is dry":     "low",
}

var sunlightBuckets = map[string]string{
	"full sunlight":     "full",
	"indirect sunlight": "indirect",
	"partial sunlight":  "partial",
}

var soilBuckets = map[string]string{
	"well-drained": "drained",
	"sandy":        "sandy",
	"moist":        "moist",
	"loamy":        "loamy",
	"acidic":       "acidic",
}

var fertilizationBuckets = map[string]string{
	"acidic":       "yes",
	"low-nitrogen": "yes",
	"balanced":     "yes",
	"organic":      "yes",
	"no":           "no",
}

var growthBuckets = map[string]string{
	"slow":     "slow",
	"moderate": "moderate",
	"fast":     "fast",
}

// positionalTokens is the number of leading document tokens (id, name) that
// identify the candidate rather than describe it. They are excluded from
// the matched/unmatched term diagnostics.
const positionalTokens = 2

// Document is one candidate's lexical representation: the id and name
// followed by one namespaced token per describable attribute.
type Document struct {
	PlantID int64
	Tokens  []string
}

// DescribableTokens returns the document tokens that carry attribute
// information, excluding the positional id and name tokens.
func (d Document) DescribableTokens() []string {
	if len(d.Tokens) <= positionalTokens {
		return nil
	}
	return d.Tokens[positionalTokens:]
}

// BuildLexicalCorpus turns the catalog into one tokenized document per
// plant. Namespacing ("soil_moist" vs "water_moist") prevents cross-category
// false matches between attributes sharing surface text.
func BuildLexicalCorpus(plants []domain.Plant) ([]Document, error) {
	docs := make([]Document, 0, len(plants))

	for _, p := range plants {
		growth, ok := growthBuckets[p.Growth]
		if !ok {
			return nil, unmapped(p, domain.CategoryGrowth, p.Growth)
		}
		soil, ok := soilBuckets[p.Soil]
		if !ok {
			return nil, unmapped(p, domain.CategorySoil, p.Soil)
		}
		water, ok := wateringBuckets[p.Watering]
		if !ok {
			return nil, unmapped(p, domain.CategoryWater, p.Watering)
		}
		sun, ok := sunlightBuckets[p.Sunlight]
		if !ok {
			return nil, unmapped(p, domain.CategorySun, p.Sunlight)
		}
		fertilizer, ok := fertilizationBuckets[p.Fertilization]
		if !ok {
			return nil, unmapped(p, domain.CategoryFertilizer, p.Fertilization)
		}

		docs = append(docs, Document{
			PlantID: p.ID,
			Tokens: []string{
				strconv.FormatInt(p.ID, 10),
				p.Name,
				namespaced(domain.CategoryGrowth, growth),
				namespaced(domain.CategorySoil, soil),
				namespaced(domain.CategoryWater, water),
				namespaced(domain.CategorySun, sun),
				namespaced(domain.CategoryFertilizer, fertilizer),
			},
		})
	}

	return docs, nil
}

// BuildLexicalQuery turns resolved questionnaire answers into the same
// namespaced token vocabulary the corpus uses. "Don't care" selections are
// skipped, so the result may be empty.
func BuildLexicalQuery(q domain.StructuredQuery) []string {
	tokens := make([]string, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.Value == domain.DontCare {
			continue
		}
		tokens = append(tokens, namespaced(a.Category, a.Value))
	}
	return tokens
}

// BuildSentence renders one plant as the natural-language line the
// embedding scorer encodes.
func BuildSentence(p domain.Plant) string {
	return fmt.Sprintf("%s that grows %s, has %s soil, needs %s, needs %s fertilizer and %s.",
		p.Name, p.Growth, p.Soil, p.Sunlight, p.Fertilization, p.Watering)
}

// BuildSentences renders the whole catalog in corpus order.
func BuildSentences(plants []domain.Plant) []string {
	sentences := make([]string, len(plants))
	for i, p := range plants {
		sentences[i] = BuildSentence(p)
	}
	return sentences
}

func namespaced(c domain.Category, value string) string {
	return string(c) + "_" + value
}

func unmapped(p domain.Plant, c domain.Category, value string) error {
	return fmt.Errorf("plant %d (%s): %s %q: %w", p.ID, p.Name, c, value, domain.ErrUnmappedValue)
}

// maxFreeTextLen bounds free-text queries the same way the submission
// storage column does.
const maxFreeTextLen = 300

// SanitizeFreeText rewrites malformed free text instead of rejecting it:
// characters outside the allowed class are dropped, whitespace collapses to
// single spaces, and the result is length-bounded.
func SanitizeFreeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case isAllowedRune(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}

	out := strings.TrimRight(b.String(), " ")
	if len(out) > maxFreeTextLen {
		out = strings.TrimRight(out[:maxFreeTextLen], " ")
	}
	return out
}

func isAllowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ',' || r == '.' || r == '-' || r == '\'' || r == '!' || r == '?':
		return true
	}
	return false
}
