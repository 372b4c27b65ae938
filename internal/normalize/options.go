package normalize

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// SelectedOptions reduces a free-form "selected option(s)" value into
// ordered, trimmed tokens. Strings are split on commas, arrays are flattened
// one level (only their string elements are split) and other values are
// kept whole. A literal 0 is a real answer.
func SelectedOptions(v gjson.Result) []string {
	out := []string{}
	switch {
	case !v.Exists(), v.Type == gjson.Null:
		return out
	case v.IsArray():
		for _, el := range v.Array() {
			switch el.Type {
			case gjson.String:
				out = appendTokens(out, el.Str)
			case gjson.Null:
			case gjson.JSON:
				out = append(out, el.Raw)
			default:
				out = append(out, el.String())
			}
		}
	case v.Type == gjson.String:
		out = appendTokens(out, v.Str)
	case v.IsObject():
		out = append(out, v.Raw)
	default:
		out = append(out, v.String())
	}
	return out
}

func appendTokens(out []string, s string) []string {
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// OptionValues turns an options list or key-value mapping into an ordered
// sequence of option texts, preserving document order.
func OptionValues(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() && !v.IsObject() {
		return out
	}
	v.ForEach(func(_, el gjson.Result) bool {
		if s := optionText(el); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func optionText(el gjson.Result) string {
	if el.IsObject() {
		if s := firstText(el, "text", "option_text", "value", "label", "name"); s != "" {
			return s
		}
		return el.Raw
	}
	return scalarText(el)
}

// OptionLetter converts a zero-based option index to its letter (0 -> A).
func OptionLetter(i int) string {
	if i < 0 || i > 25 {
		return strconv.Itoa(i)
	}
	return string(rune('A' + i))
}
