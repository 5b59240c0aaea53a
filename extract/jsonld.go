package extract

import (
	"encoding/json"
	"sort"
	"strings"
)

// ldDocuments decodes every JSON-LD block in the page. Blocks that are not
// valid JSON are ignored.
func ldDocuments(bodies []string) []any {
	var out []any
	for _, body := range bodies {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// findString walks v depth first and returns the first string under one of
// keys accepted by ok. Object keys are checked before nested values, and
// nested values are visited in key order.
func findString(v any, keys []string, ok func(string) bool) (string, bool) {
	switch node := v.(type) {
	case map[string]any:
		for _, k := range keys {
			if s, isString := node[k].(string); isString && ok(s) {
				return s, true
			}
		}
		names := make([]string, 0, len(node))
		for k := range node {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			switch node[k].(type) {
			case map[string]any, []any:
				if s, found := findString(node[k], keys, ok); found {
					return s, true
				}
			}
		}
	case []any:
		for _, item := range node {
			if s, found := findString(item, keys, ok); found {
				return s, true
			}
		}
	}
	return "", false
}
