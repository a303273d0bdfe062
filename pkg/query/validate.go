package query

import (
	"strings"
	"time"
)

// DateLayout is the calendar format accepted for since/until bounds.
const DateLayout = "2006-01-02"

// languageCodes is the closed set of ISO 639-1 codes accepted by the
// search API's lang filter.
var languageCodes = func() map[string]struct{} {
	codes := []string{
		"ab", "aa", "af", "ak", "sq", "am", "ar", "an", "hy", "as", "av", "ae", "ay", "az",
		"bm", "ba", "eu", "be", "bn", "bh", "bi", "bs", "br", "bg", "my", "ca", "ch", "ce",
		"ny", "zh", "cv", "kw", "co", "cr", "hr", "cs", "da", "dv", "nl", "dz", "en", "eo",
		"et", "ee", "fo", "fj", "fi", "fr", "ff", "gl", "ka", "de", "el", "gn", "gu", "ht",
		"ha", "he", "hz", "hi", "ho", "hu", "ia", "id", "ie", "ga", "ig", "ik", "io", "is",
		"it", "iu", "ja", "jv", "kl", "kn", "kr", "ks", "kk", "km", "ki", "rw", "ky", "kv",
		"kg", "ko", "ku", "kj", "la", "lb", "lg", "li", "ln", "lo", "lt", "lu", "lv", "gv",
		"mk", "mg", "ms", "ml", "mt", "mi", "mr", "mh", "mn", "na", "nv", "nd", "ne", "ng",
		"nb", "nn", "no", "ii", "nr", "oc", "oj", "cu", "om", "or", "os", "pa", "pi", "fa",
		"pl", "ps", "pt", "qu", "rm", "rn", "ro", "ru", "sa", "sc", "sd", "se", "sm", "sg",
		"sr", "gd", "sn", "si", "sk", "sl", "so", "st", "es", "su", "sw", "ss", "sv", "ta",
		"te", "tg", "th", "ti", "bo", "tk", "tl", "tn", "to", "tr", "ts", "tt", "tw", "ty",
		"ug", "uk", "ur", "uz", "ve", "vi", "vo", "wa", "cy", "wo", "fy", "xh", "yi", "yo",
		"za", "zu",
	}
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}()

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
// The parse is strict: "2024-02-30", "2024-1-5" and surrounding whitespace
// are all rejected. An empty string is treated as absent and is invalid.
func ValidDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidLanguageCode reports whether s names a supported ISO 639-1 code.
// Matching is exact on the trimmed, lower-cased value.
func ValidLanguageCode(s string) bool {
	code := strings.ToLower(strings.TrimSpace(s))
	if code == "" {
		return false
	}
	_, ok := languageCodes[code]
	return ok
}
