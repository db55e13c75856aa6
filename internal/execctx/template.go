package execctx

import (
	"fmt"
	"strings"
)

// Resolve interpolates {expr} placeholders found in value. Strings,
// slices, and maps are resolved recursively; anything else is returned
// verbatim. A string that is exactly one placeholder ("{expr}", nothing
// else around it) returns the raw resolved value, preserving its type;
// a string with surrounding or multiple placeholders is stringified with
// each resolvable placeholder substituted and unresolved ones left as
// the literal "{expr}" text.
//
// This is a dedicated scanner for the segment(.segment|[N])* grammar, not
// a general expression evaluator or text/template instance - the engine
// never needs more than path lookups.
func (c *Context) Resolve(value any) any {
	switch v := value.(type) {
	case string:
		return c.resolveString(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = c.Resolve(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = c.Resolve(elem)
		}
		return out
	default:
		return value
	}
}

// ResolveInputs resolves every value in a template spec map.
func (c *Context) ResolveInputs(spec map[string]any) map[string]any {
	out := make(map[string]any, len(spec))
	for k, v := range spec {
		out[k] = c.Resolve(v)
	}
	return out
}

func (c *Context) resolveString(s string) any {
	if expr, ok := fullPlaceholder(s); ok {
		if v, ok := c.get(expr); ok {
			return v
		}
		return s
	}

	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '{' {
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				break
			}
			expr := s[i+1 : i+end]
			if v, ok := c.get(expr); ok {
				b.WriteString(fmt.Sprint(v))
			} else {
				b.WriteString(s[i : i+end+1])
			}
			i += end + 1
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// fullPlaceholder reports whether s is exactly "{expr}" with no other
// content, returning expr.
func fullPlaceholder(s string) (string, bool) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", false
	}
	inner := s[1 : len(s)-1]
	if inner == "" || strings.ContainsAny(inner, "{}") {
		return "", false
	}
	return inner, true
}
