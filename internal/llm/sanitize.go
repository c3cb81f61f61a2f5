package llm

import (
	"slices"
	"strconv"
	"strings"
)

// SanitizeReply normalizes a decoded reply in place so the nullable-string
// schemas accept what models commonly send: numbers and booleans become
// strings, "" and "null" become null, nested values are dropped, and a
// missing or null group becomes an empty object. It returns the touched
// paths, sorted.
func SanitizeReply(doc map[string]any, groups []string) []string {
	var changed []string
	for _, g := range groups {
		switch m := doc[g].(type) {
		case map[string]any:
			changed = append(changed, coerceScalars(m, g)...)
		case nil:
			doc[g] = map[string]any{}
			changed = append(changed, g+"(empty)")
		default:
			doc[g] = map[string]any{}
			changed = append(changed, g+"(type)")
		}
	}
	if s, ok := doc["rawText"]; ok {
		if _, isStr := s.(string); !isStr && s != nil {
			delete(doc, "rawText")
			changed = append(changed, "rawText(type)")
		}
	}
	if items, ok := doc["divergencies"].([]any); ok {
		for i, it := range items {
			d, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if vals, ok := d["values"].(map[string]any); ok {
				changed = append(changed, coerceScalars(vals, "divergencies["+strconv.Itoa(i)+"].values")...)
			}
		}
	}
	slices.Sort(changed)
	return changed
}

func coerceScalars(m map[string]any, path string) []string {
	var changed []string
	for k, v := range m {
		switch t := v.(type) {
		case nil:
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				m[k] = nil
				if t != "" {
					changed = append(changed, path+"."+k+"(null)")
				}
				continue
			}
			m[k] = s
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
			changed = append(changed, path+"."+k+"(number)")
		case bool:
			m[k] = strconv.FormatBool(t)
			changed = append(changed, path+"."+k+"(bool)")
		default:
			m[k] = nil
			changed = append(changed, path+"."+k+"(type)")
		}
	}
	return changed
}
