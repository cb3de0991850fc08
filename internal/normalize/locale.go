package normalize

import (
	"sort"
	"strings"
)

// LocalePreference is the fixed order used to pick a single name out of a
// multi-locale field: Spanish, then Portuguese, then English. When none of
// those has a value the lexically first non-empty locale key wins.
var LocalePreference = []string{"es", "pt", "en"}

// PickLocalized returns the preferred non-empty value of a locale map
func PickLocalized(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	for _, locale := range LocalePreference {
		if v := strings.TrimSpace(values[locale]); v != "" {
			return v
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(values[k]); v != "" {
			return v
		}
	}
	return ""
}
