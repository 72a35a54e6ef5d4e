package reference

import "strings"

// countryAliases maps alternate spellings to the canonical table name.
// Keys are matched exactly (case-preserving). No canonical name may appear
// as a key, which keeps Normalize idempotent.
var countryAliases = map[string]string{
	"Korea, Republic of": "South Korea",
	"Republic of Korea":  "South Korea",
	"Korea (South)":      "South Korea",
	"ROK":                "South Korea",

	"Korea, Democratic People's Republic of": "North Korea",
	"Democratic People's Republic of Korea":  "North Korea",
	"Korea (North)":                          "North Korea",
	"DPRK":                                   "North Korea",

	"UK":                                                   "United Kingdom",
	"U.K.":                                                 "United Kingdom",
	"Great Britain":                                        "United Kingdom",
	"Britain":                                              "United Kingdom",
	"England":                                              "United Kingdom",
	"United Kingdom of Great Britain and Northern Ireland": "United Kingdom",

	"USA":                      "United States",
	"US":                       "United States",
	"U.S.":                     "United States",
	"U.S.A.":                   "United States",
	"United States of America": "United States",
	"America":                  "United States",

	"Viet Nam":                      "Vietnam",
	"Socialist Republic of Vietnam": "Vietnam",

	"Russian Federation": "Russia",

	"Ivory Coast":   "Côte d'Ivoire",
	"Cote d'Ivoire": "Côte d'Ivoire",
	"Cote dIvoire":  "Côte d'Ivoire",

	"DRC":                               "Democratic Republic of the Congo",
	"DR Congo":                          "Democratic Republic of the Congo",
	"Congo, Democratic Republic of the": "Democratic Republic of the Congo",
	"Congo (Kinshasa)":                  "Democratic Republic of the Congo",

	"UAE":    "United Arab Emirates",
	"U.A.E.": "United Arab Emirates",

	"PRC":                         "China",
	"People's Republic of China":  "China",
	"China, People's Republic of": "China",
	"Mainland China":              "China",

	"Türkiye": "Turkey",
	"Turkiye": "Turkey",

	"Burma": "Myanmar",

	"Holland":         "Netherlands",
	"The Netherlands": "Netherlands",

	"Lao PDR":                          "Laos",
	"Lao People's Democratic Republic": "Laos",

	"Iran, Islamic Republic of": "Iran",

	"Syrian Arab Republic": "Syria",

	"Czechia": "Czech Republic",

	"Deutschland": "Germany",

	"Brasil": "Brazil",

	"Republic of India": "India",

	"Kingdom of Saudi Arabia": "Saudi Arabia",
	"KSA":                     "Saudi Arabia",
}

// Normalizer canonicalizes country names. The zero value uses the built-in
// alias table.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer returns a Normalizer over the built-in aliases plus extra.
// Extra entries whose key is itself a canonical target are ignored, and
// targets that are themselves aliases are resolved first.
func NewNormalizer(extra map[string]string) *Normalizer {
	merged := make(map[string]string, len(countryAliases)+len(extra))
	for k, v := range countryAliases {
		merged[k] = v
	}
	targets := make(map[string]bool, len(merged))
	for _, v := range merged {
		targets[v] = true
	}
	for k, v := range extra {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if canonical, ok := merged[v]; ok {
			v = canonical
		}
		if k == "" || v == "" || k == v || targets[k] {
			continue
		}
		merged[k] = v
		targets[v] = true
	}
	return &Normalizer{aliases: merged}
}

// Normalize returns the canonical name for name, or name trimmed of
// surrounding whitespace when no alias applies. It never fails.
func (n *Normalizer) Normalize(name string) string {
	trimmed := strings.TrimSpace(name)
	aliases := countryAliases
	if n != nil && n.aliases != nil {
		aliases = n.aliases
	}
	if canonical, ok := aliases[trimmed]; ok {
		return canonical
	}
	return trimmed
}

// Aliases returns a copy of the alias table.
func (n *Normalizer) Aliases() map[string]string {
	src := countryAliases
	if n != nil && n.aliases != nil {
		src = n.aliases
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// NormalizeCountry canonicalizes name with the built-in alias table.
func NormalizeCountry(name string) string {
	return (*Normalizer)(nil).Normalize(name)
}
