package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// scalarText returns the trimmed text of a scalar value. Objects, arrays,
// null and missing values yield "".
func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number, gjson.True, gjson.False:
		return v.String()
	}
	return ""
}

// firstText returns the first non-empty scalar among keys.
func firstText(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := scalarText(r.Get(k)); s != "" {
			return s
		}
	}
	return ""
}

// firstInt returns the first key holding a number or numeric string.
func firstInt(r gjson.Result, keys ...string) (int, bool) {
	for _, k := range keys {
		v := r.Get(k)
		switch v.Type {
		case gjson.Number:
			return int(math.Round(v.Num)), true
		case gjson.String:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
			if err == nil {
				return int(math.Round(f)), true
			}
		}
	}
	return 0, false
}

// truthy mirrors the loose "present" test used by the dashboard payloads:
// missing, null, false, "" and 0 are absent.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	}
	return v.Exists()
}

// firstTruthy returns the first truthy value among keys, or an empty Result.
func firstTruthy(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); truthy(v) {
			return v
		}
	}
	return gjson.Result{}
}

// firstExisting returns the first non-null value among keys.
func firstExisting(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// FormatPercent renders a percentage with a trailing "%".
func FormatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "%"
}
