package registry

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinMatchLength is the shortest folded name that may take part in a
// containment or fuzzy match. Exact matches have no minimum.
const MinMatchLength = 3

// DefaultFuzzyThreshold is the Levenshtein similarity the fallback requires.
const DefaultFuzzyThreshold = 0.9

// Match methods.
const (
	MethodExact     = "exact"
	MethodSubstring = "substring"
	MethodFuzzy     = "fuzzy"
)

// Match is a resolved registry entry.
type Match struct {
	Kind       Kind    `json:"kind"`
	Record     Record  `json:"record"`
	Method     string  `json:"method"`
	Similarity float64 `json:"similarity"`
}

// DataSource is the registry name for reporting.
func (m Match) DataSource() string { return m.Kind.DataSource() }

type entry struct {
	rec    Record
	folded string
}

// Matcher resolves a company name against the loaded registries. It is
// immutable once built and safe for concurrent use.
type Matcher struct {
	priority  []Kind
	entries   map[Kind][]entry
	threshold float64
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithPriority sets the order in which registries are consulted. Kinds
// without a loaded snapshot are skipped.
func WithPriority(kinds ...Kind) MatcherOption {
	return func(m *Matcher) {
		if len(kinds) > 0 {
			m.priority = append([]Kind(nil), kinds...)
		}
	}
}

// WithFuzzyThreshold sets the Levenshtein fallback similarity. A value
// outside (0,1] disables the fallback.
func WithFuzzyThreshold(t float64) MatcherOption {
	return func(m *Matcher) { m.threshold = t }
}

// NewMatcher indexes the given snapshots.
func NewMatcher(snapshots []*Snapshot, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		priority:  append([]Kind(nil), AllKinds...),
		entries:   make(map[Kind][]entry, len(snapshots)),
		threshold: DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		for _, rec := range snap.Records {
			m.entries[snap.Kind] = append(m.entries[snap.Kind], entry{rec: rec, folded: FoldName(rec.Company())})
		}
	}
	return m
}

// Priority returns the configured registry order.
func (m *Matcher) Priority() []Kind { return append([]Kind(nil), m.priority...) }

// Counts reports the number of records loaded per registry.
func (m *Matcher) Counts() map[Kind]int {
	out := make(map[Kind]int, len(m.entries))
	for k, e := range m.entries {
		out[k] = len(e)
	}
	return out
}

// Match returns the first registry entry whose folded name equals the
// folded company name, or contains it (or is contained in it) as whole
// words, walking registries in priority order and rows in file order. When
// nothing matches that way, the entry with the highest Levenshtein
// similarity at or above the threshold is returned, ties going to the
// higher-priority registry.
func (m *Matcher) Match(company string) (Match, bool) {
	q := FoldName(company)
	if q == "" {
		return Match{}, false
	}

	for _, kind := range m.priority {
		for _, e := range m.entries[kind] {
			if method, ok := compare(q, e.folded); ok {
				return Match{Kind: kind, Record: e.rec, Method: method, Similarity: Similarity(q, e.folded)}, true
			}
		}
	}

	if m.threshold <= 0 || m.threshold > 1 || runeLen(q) < MinMatchLength {
		return Match{}, false
	}
	best, found := Match{}, false
	for _, kind := range m.priority {
		for _, e := range m.entries[kind] {
			if runeLen(e.folded) < MinMatchLength {
				continue
			}
			sim := Similarity(q, e.folded)
			if sim >= m.threshold && (!found || sim > best.Similarity) {
				best, found = Match{Kind: kind, Record: e.rec, Method: MethodFuzzy, Similarity: sim}, true
			}
		}
	}
	return best, found
}

// MatchAll returns the first exact or containment hit in every registry, in
// priority order. It backs the match preview endpoint.
func (m *Matcher) MatchAll(company string) []Match {
	q := FoldName(company)
	if q == "" {
		return nil
	}
	var out []Match
	for _, kind := range m.priority {
		for _, e := range m.entries[kind] {
			if method, ok := compare(q, e.folded); ok {
				out = append(out, Match{Kind: kind, Record: e.rec, Method: method, Similarity: Similarity(q, e.folded)})
				break
			}
		}
	}
	return out
}

// compare matches two folded names. Equal names match at any length;
// containment needs both sides at MinMatchLength and whole-word alignment,
// so "tech" does not hit "brightwave technology services".
func compare(q, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if q == name {
		return MethodExact, true
	}
	if runeLen(q) < MinMatchLength || runeLen(name) < MinMatchLength {
		return "", false
	}
	if containsWords(name, q) || containsWords(q, name) {
		return MethodSubstring, true
	}
	return "", false
}

// containsWords reports whether needle occurs in hay on word boundaries.
// Both are folded, so words are separated by single spaces.
func containsWords(hay, needle string) bool {
	return strings.Contains(" "+hay+" ", " "+needle+" ")
}

func runeLen(s string) int { return len([]rune(s)) }

// Similarity is 1 - distance/maxLen over runes, in [0,1].
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// ─────────────────────────────────────────────────────────────────────────────
// Name folding
// ─────────────────────────────────────────────────────────────────────────────

// legalSuffixes are trailing corporate designators dropped before matching.
var legalSuffixes = map[string]bool{
	"plc": true, "ltd": true, "limited": true, "inc": true, "incorporated": true,
	"llc": true, "pty": true, "corp": true, "corporation": true, "co": true,
	"ag": true, "sa": true, "gmbh": true, "bv": true, "nv": true,
	"jsc": true, "tbk": true, "berhad": true, "bhd": true,
}

// FoldName strips diacritics, case-folds, replaces punctuation with spaces,
// drops trailing legal designators and collapses whitespace. "Société
// Générale S.A." and "societe generale" fold to the same string.
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)

	folded = strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '\'':
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		}
		return ' '
	}, folded)

	words := strings.Fields(folded)
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
