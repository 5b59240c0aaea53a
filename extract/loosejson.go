package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	loosePair = regexp.MustCompile(`"(name|key|label|title)"\s*:\s*"([^"]{1,200})"\s*,\s*"(value|val|content)"\s*:\s*"([^"]{1,200})"`)

	jsonArtifacts  = regexp.MustCompile(`["\\]`)
	objectBoundary = regexp.MustCompile(`\}\s*,\s*\{`)
	trailingBrace  = regexp.MustCompile(`\}\s*$`)
	leadingPunct   = regexp.MustCompile(`^[^a-zA-Z0-9\x{4e00}-\x{9fff}]*`)
)

// LooseArray decodes the body of a JSON array captured out of inline script.
// A strict parse is tried first. When that fails, quoted key/value pairs are
// recovered by pattern. Nothing recoverable yields nil.
func LooseArray(body string) []map[string]any {
	var items []any
	if err := json.Unmarshal([]byte("["+body+"]"), &items); err == nil {
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	}

	var out []map[string]any
	for _, m := range loosePair.FindAllStringSubmatch(body, -1) {
		out = append(out, map[string]any{m[1]: m[2], m[3]: m[4]})
	}
	return out
}

// CleanJSONValue removes quoting debris left behind by pattern captures.
func CleanJSONValue(v string) string {
	v = jsonArtifacts.ReplaceAllString(v, "")
	if loc := objectBoundary.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	v = trailingBrace.ReplaceAllString(v, "")
	v = leadingPunct.ReplaceAllString(v, "")
	return strings.TrimSpace(v)
}

// scalarString renders a decoded JSON scalar. Objects, arrays and null are
// not scalars.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
