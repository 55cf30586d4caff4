package usecase

import (
	"strings"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
)

var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

var stateCodeByName = buildStateCodeIndex()

func buildStateCodeIndex() map[string]string {
	out := make(map[string]string, len(stateNames))
	for code, name := range stateNames {
		out[strings.ToUpper(name)] = code
	}
	return out
}

type metro struct {
	city  string
	state string
}

// metroByAlias resolves historically ambiguous shorthand to a canonical
// metro. Keys are upper-cased, whitespace-squashed forms.
var metroByAlias = map[string]metro{
	"STL":          {"Saint Louis", "MO"},
	"SAINTLOUIS":   {"Saint Louis", "MO"},
	"STLOUIS":      {"Saint Louis", "MO"},
	"NYC":          {"New York", "NY"},
	"MANHATTAN":    {"New York", "NY"},
	"NEWYORK":      {"New York", "NY"},
	"KC":           {"Kansas City", "MO"},
	"KANSASCITY":   {"Kansas City", "MO"},
	"LOSANGELES":   {"Los Angeles", "CA"},
	"SF":           {"San Francisco", "CA"},
	"FRISCO":       {"San Francisco", "CA"},
	"SANFRANCISCO": {"San Francisco", "CA"},
	"CHICAGO":      {"Chicago", "IL"},
}

// cityAbbreviations expand a leading word in either direction. Order decides
// variant order, which must be deterministic.
var cityAbbreviations = []struct {
	full  string
	short []string
}{
	{"SAINT", []string{"ST.", "ST"}},
	{"FORT", []string{"FT.", "FT"}},
	{"MOUNT", []string{"MT.", "MT"}},
}

// normalizeLocation expands a free-form location string into the variant set
// used for structured matching. Pure; same input, same output.
func normalizeLocation(raw string) domain.Location {
	raw = collapseSpaces(raw)
	if raw == "" {
		return domain.Location{}
	}

	city, state := splitCityState(raw)
	loc := domain.Location{City: city, State: state}

	if state != "" {
		name := stateNames[state]
		loc.StateVariants = []string{state, name, strings.ToUpper(name)}
	}
	if city != "" {
		loc.CityVariants = cityVariants(city)
		if alias, ok := metroByAlias[squash(strings.ToUpper(city))]; ok {
			loc.City = alias.city
			if loc.State == "" {
				loc.State = alias.state
				loc.StateVariants = []string{alias.state, stateNames[alias.state], strings.ToUpper(stateNames[alias.state])}
			}
		}
	}

	switch {
	case loc.City != "" && loc.State != "":
		loc.Region = titleWords(loc.City) + ", " + loc.State
	case loc.City != "":
		loc.Region = titleWords(loc.City)
	default:
		loc.Region = loc.State
	}
	return loc
}

// splitCityState understands "City, ST", "City, State Name", a bare state
// (code or name), and a bare city or metro alias.
func splitCityState(raw string) (city, state string) {
	if idx := strings.LastIndex(raw, ","); idx >= 0 {
		city = collapseSpaces(raw[:idx])
		state = resolveState(collapseSpaces(raw[idx+1:]))
		return city, state
	}
	if code := resolveState(raw); code != "" {
		return "", code
	}
	if alias, ok := metroByAlias[squash(strings.ToUpper(raw))]; ok {
		return alias.city, alias.state
	}
	return raw, ""
}

// resolveState accepts a 2-letter code or a full state name, returning the
// canonical code or "".
func resolveState(token string) string {
	token = strings.ToUpper(collapseSpaces(token))
	if len(token) == 2 {
		if _, ok := stateNames[token]; ok {
			return token
		}
		return ""
	}
	return stateCodeByName[token]
}

// cityVariants returns the upper-cased spelling variants for a city name:
// abbreviation expansions in both directions, the metro synonym set, and a
// squashed form of the fully spelled name. Insertion order, duplicates
// dropped.
func cityVariants(city string) []string {
	base := strings.ToUpper(collapseSpaces(city))
	if base == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	add := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	spelled := base
	first, rest, hasRest := strings.Cut(base, " ")
	for _, abbr := range cityAbbreviations {
		if first == abbr.full && hasRest {
			spelled = base
			add(spelled)
			for _, short := range abbr.short {
				add(short + " " + rest)
			}
		}
		for _, short := range abbr.short {
			if first == short && hasRest {
				spelled = abbr.full + " " + rest
				add(base)
				add(spelled)
				for _, other := range abbr.short {
					add(other + " " + rest)
				}
			}
		}
	}
	add(base)
	add(squash(spelled))

	if alias, ok := metroByAlias[squash(strings.ToUpper(spelled))]; ok {
		canonical := strings.ToUpper(alias.city)
		add(canonical)
		for _, m := range metroAliasVariants(canonical) {
			add(m)
		}
	}
	return out
}

// metroAliasVariants lists the shorthand forms that resolve to the given
// canonical metro, in table order.
func metroAliasVariants(canonicalUpper string) []string {
	var out []string
	for _, alias := range metroAliasOrder {
		m := metroByAlias[alias]
		if strings.ToUpper(m.city) == canonicalUpper && alias != squash(canonicalUpper) {
			out = append(out, alias)
		}
	}
	return out
}

// metroAliasOrder pins iteration order over metroByAlias.
var metroAliasOrder = []string{
	"STL", "SAINTLOUIS", "STLOUIS",
	"NYC", "MANHATTAN", "NEWYORK",
	"KC", "KANSASCITY",
	"LOSANGELES",
	"SF", "FRISCO", "SANFRANCISCO",
	"CHICAGO",
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func squash(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "of" && i > 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
