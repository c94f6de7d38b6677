package country

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vietddude/ratesync/internal/core/domain"
)

const maxTextLength = 255

var requiredFields = []string{"name", "capital", "continents", "currencies", "unMember", "population", "timezones"}

var knownContinents = []string{
	"Africa", "Antarctica", "Asia", "Europe", "North America", "South America", "Oceania",
}

// Validate reports problems in a raw country that do not prevent storing it.
func Validate(raw map[string]any) []string {
	var problems []string
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			problems = append(problems, fmt.Sprintf("missing field %q", field))
		}
	}

	if v, ok := raw["name"]; ok {
		if _, isMap := v.(map[string]any); !isMap {
			problems = append(problems, "name is not an object")
		}
	}
	if v, ok := raw["currencies"]; ok && v != nil {
		if _, isMap := v.(map[string]any); !isMap {
			problems = append(problems, "currencies is not an object")
		}
	}
	if v, ok := raw["timezones"]; ok && v != nil {
		if _, isList := v.([]any); !isList {
			problems = append(problems, "timezones is not a list")
		}
	}
	if v, ok := raw["population"]; ok {
		if _, valid := toPopulation(v); !valid {
			problems = append(problems, fmt.Sprintf("invalid population %v", v))
		}
	}
	if continents := stringList(raw["continents"]); len(continents) > 0 && !slices.Contains(knownContinents, continents[0]) {
		problems = append(problems, fmt.Sprintf("unknown continent %q", continents[0]))
	}
	return problems
}

// Transform normalizes a raw REST Countries object. A country without a
// common name is discarded.
func Transform(raw map[string]any, now time.Time) (domain.CountryRecord, error) {
	var nameObj map[string]any
	if v, ok := raw["name"].(map[string]any); ok {
		nameObj = v
	}
	name := sanitize(asString(nameObj["common"]))
	if name == "" {
		return domain.CountryRecord{}, domain.NewDiscard(domain.ReasonMissingKey, "country has no common name")
	}

	var capitals []string
	for _, c := range stringList(raw["capital"]) {
		if c = sanitize(c); c != "" {
			capitals = append(capitals, c)
		}
	}

	var continent string
	if continents := stringList(raw["continents"]); len(continents) > 0 {
		continent = sanitize(continents[0])
	}

	population, _ := toPopulation(raw["population"])
	unMember, _ := raw["unMember"].(bool)
	timezones, _ := TimezoneSnapshot(stringList(raw["timezones"]), now)

	return domain.CountryRecord{
		Name:       name,
		Capitals:   capitals,
		Continent:  continent,
		Currencies: currencyCodes(raw["currencies"]),
		IsUNMember: unMember,
		Population: population,
		Timezones:  timezones,
	}, nil
}

// Key is the natural key of a country.
func Key(c domain.CountryRecord) string { return c.Name }

// currencyCodes returns the sorted 3-letter codes of a currencies object.
func currencyCodes(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	codes := make([]string, 0, len(obj))
	for code := range obj {
		code = strings.ToUpper(strings.TrimSpace(code))
		if domain.IsCurrencyCode(code) && !slices.Contains(codes, code) {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	return codes
}

// toPopulation accepts non-negative integral numbers only.
func toPopulation(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil && i >= 0 {
			return i, true
		}
	case float64:
		if n >= 0 && n == math.Trunc(n) && n <= math.MaxInt64 {
			return int64(n), true
		}
	case int:
		if n >= 0 {
			return int64(n), true
		}
	case int64:
		if n >= 0 {
			return n, true
		}
	}
	return 0, false
}

// stringList accepts a list of strings or a single string.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// sanitize trims s and cuts it to the column width.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxTextLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxTextLength]))
}
