package reference

import (
	"sort"
	"strings"
	"unicode"
)

// Store is the read-only reference table set. It is built once at start-up
// and shared by every request without locking.
type Store struct {
	normalizer *Normalizer
	countries  map[string]Country
	byISO3     map[string]string
	byFold     map[string]string
	industries []Industry
	indByFold  map[string]int
}

// NewStore indexes countries and industries. Later duplicates overwrite
// earlier ones; the loader rejects duplicates before reaching here.
func NewStore(normalizer *Normalizer, countries []Country, industries []Industry) *Store {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	s := &Store{
		normalizer: normalizer,
		countries:  make(map[string]Country, len(countries)),
		byISO3:     make(map[string]string, len(countries)),
		byFold:     make(map[string]string, len(countries)),
		industries: make([]Industry, 0, len(industries)),
		indByFold:  make(map[string]int, len(industries)),
	}
	for _, c := range countries {
		s.countries[c.Name] = c
		s.byFold[strings.ToLower(c.Name)] = c.Name
		if c.ISO3 != "" {
			s.byISO3[strings.ToUpper(c.ISO3)] = c.Name
		}
	}
	for _, ind := range industries {
		s.indByFold[strings.ToLower(ind.Name)] = len(s.industries)
		s.industries = append(s.industries, ind)
	}
	return s
}

// Normalizer returns the normalizer the store canonicalizes with.
func (s *Store) Normalizer() *Normalizer { return s.normalizer }

// LookupCountry normalizes name and returns the matching country. ISO3 codes
// and case-insensitive canonical names also resolve.
func (s *Store) LookupCountry(name string) (Country, bool) {
	canonical := s.normalizer.Normalize(name)
	if c, ok := s.countries[canonical]; ok {
		return c, true
	}
	if key, ok := s.byISO3[strings.ToUpper(canonical)]; ok {
		return s.countries[key], true
	}
	if key, ok := s.byFold[strings.ToLower(canonical)]; ok {
		return s.countries[key], true
	}
	return Country{}, false
}

// LookupIndustry resolves a free-text industry. An exact case-insensitive
// name wins outright. Otherwise every entry is tested for word overlap in
// either direction or substring containment either way, and among the
// matches the one whose risk score is furthest from the neutral midpoint is
// returned. Ties keep table order.
func (s *Store) LookupIndustry(query string) (Industry, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Industry{}, false
	}
	if idx, ok := s.indByFold[q]; ok {
		return s.industries[idx], true
	}

	qWords := significantWords(q)
	best, found := Industry{}, false
	for _, ind := range s.industries {
		if !fuzzyMatch(q, qWords, strings.ToLower(ind.Name)) {
			continue
		}
		if !found || ind.extremity() > best.extremity() {
			best, found = ind, true
		}
	}
	return best, found
}

// IndustryMatches returns every industry the fuzzy rule accepts for query,
// most extreme first. It backs the reference lookup endpoint.
func (s *Store) IndustryMatches(query string) []Industry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	qWords := significantWords(q)
	var out []Industry
	for _, ind := range s.industries {
		name := strings.ToLower(ind.Name)
		if name == q || fuzzyMatch(q, qWords, name) {
			out = append(out, ind)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].extremity() > out[j].extremity() })
	return out
}

// ScanKeywords returns the industries whose keywords occur in text, in
// table order, each at most once.
func (s *Store) ScanKeywords(text string) []Industry {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return nil
	}
	var out []Industry
	for _, ind := range s.industries {
		for _, kw := range ind.Keywords {
			if kw != "" && strings.Contains(t, strings.ToLower(kw)) {
				out = append(out, ind)
				break
			}
		}
	}
	return out
}

// Countries returns the canonical country names, sorted.
func (s *Store) Countries() []string {
	out := make([]string, 0, len(s.countries))
	for name := range s.countries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Industries returns the industry names, sorted.
func (s *Store) Industries() []string {
	out := make([]string, 0, len(s.industries))
	for _, ind := range s.industries {
		out = append(out, ind.Name)
	}
	sort.Strings(out)
	return out
}

// CountryCount and IndustryCount report table sizes for health checks.
func (s *Store) CountryCount() int  { return len(s.countries) }
func (s *Store) IndustryCount() int { return len(s.industries) }

// ─────────────────────────────────────────────────────────────────────────────
// Fuzzy matching
// ─────────────────────────────────────────────────────────────────────────────

var stopwords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true,
	"industry": true, "sector": true, "services": true, "products": true,
	"manufacturing": true, "production": true, "company": true,
}

// significantWords splits s on non-letters and keeps words of three or more
// letters that are not stopwords.
func significantWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	out := fields[:0]
	for _, w := range fields {
		if len([]rune(w)) >= 3 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

// sameWord treats a word and its plural or stem as equal ("garment",
// "garments").
func sameWord(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if sameWord(x, w) {
			return true
		}
	}
	return false
}

// fuzzyMatch accepts a candidate when the two share a significant word
// (sameWord is symmetric, so this covers query-in-candidate and
// candidate-in-query) or when one string contains the other.
func fuzzyMatch(query string, queryWords []string, candidate string) bool {
	candWords := significantWords(candidate)
	for _, w := range queryWords {
		if containsWord(candWords, w) {
			return true
		}
	}
	return strings.Contains(candidate, query) || strings.Contains(query, candidate)
}
