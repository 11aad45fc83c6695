package match

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Expected-value forms recognized beyond plain literals.
const (
	KeywordExists  = "*"
	KeywordString  = "string"
	KeywordNumber  = "number"
	KeywordBoolean = "boolean"
	KeywordArray   = "array"
	KeywordObject  = "object"
)

// Mismatch describes one required field that did not hold on a candidate
// event. Converted to the verdict wire shape at the validate layer.
type Mismatch struct {
	Field    string
	Message  string
	Expected any
	Actual   any
}

// Resolve walks a dotted path through nested string-keyed maps starting at
// the event root. A segment that is missing or lands on a non-map value is a
// failed resolve, never an error.
func Resolve(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// CheckField evaluates one required field against an event root. Nil means
// the field holds. Matching never errors; an expectation that cannot be
// evaluated (an invalid pattern, say) degrades to a mismatch with a reason.
func CheckField(root map[string]any, path string, expected any) *Mismatch {
	actual, resolved := Resolve(root, path)
	if !resolved {
		actual = nil
	}

	if s, isStr := expected.(string); isStr {
		if s == KeywordExists {
			if resolved && actual != nil {
				return nil
			}
			return newMismatch(path, expected, actual, "")
		}
		if op, bound, ok := parseComparison(s); ok {
			if av, numeric := Number(actual); numeric && compareNumber(op, av, bound) {
				return nil
			}
			return newMismatch(path, expected, actual, "")
		}
		if expr, ok := patternExpr(s); ok {
			re, err := compilePattern(expr)
			if err != nil {
				return newMismatch(path, expected, actual, fmt.Sprintf("invalid pattern %s: %v", strconv.Quote(s), err))
			}
			if resolved && re.MatchString(stringForm(actual)) {
				return nil
			}
			return newMismatch(path, expected, actual, "")
		}
		if isTypeKeyword(s) {
			if typeKeywordHolds(s, actual) {
				return nil
			}
			return newMismatch(path, expected, actual, "")
		}
	}

	if resolved && literalEqual(expected, actual) {
		return nil
	}
	return newMismatch(path, expected, actual, "")
}

// Satisfies checks every required field against the event root. Mismatches
// come back ordered by field path so reports are stable run to run.
func Satisfies(root map[string]any, required map[string]any) []Mismatch {
	if len(required) == 0 {
		return nil
	}
	paths := make([]string, 0, len(required))
	for path := range required {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var out []Mismatch
	for _, path := range paths {
		if mm := CheckField(root, path, required[path]); mm != nil {
			out = append(out, *mm)
		}
	}
	return out
}

// Number reports v as a float64 for the scalar shapes JSON and YAML decoding
// produce. Booleans are not numbers; numeric strings are.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		if fv, err := x.Float64(); err == nil {
			return fv, true
		}
	case string:
		raw := strings.TrimSpace(x)
		if raw == "" {
			return 0, false
		}
		if fv, err := strconv.ParseFloat(raw, 64); err == nil {
			return fv, true
		}
	}
	return 0, false
}

// numberShape is Number restricted to values that are numbers in the document
// itself, with no string coercion.
func numberShape(v any) (float64, bool) {
	if _, isStr := v.(string); isStr {
		return 0, false
	}
	return Number(v)
}

// literalEqual is type-aware equality: numbers compare numerically across the
// int/float shapes, strings and booleans compare exactly.
func literalEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case nil:
		return actual == nil
	}
	if ev, ok := numberShape(expected); ok {
		av, ok := numberShape(actual)
		return ok && numericEqual(av, ev)
	}
	return reflect.DeepEqual(expected, actual)
}

func numericEqual(a float64, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

var comparisonOps = []string{">=", "<=", ">", "<"}

// parseComparison splits a ">= 10" style expectation into operator and bound.
// The remainder must be a complete number or the whole string stays a literal
// ("<html>" is a literal).
func parseComparison(s string) (string, float64, bool) {
	for _, op := range comparisonOps {
		if !strings.HasPrefix(s, op) {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(s, op))
		if rest == "" {
			return "", 0, false
		}
		bound, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return "", 0, false
		}
		return op, bound, true
	}
	return "", 0, false
}

func compareNumber(op string, actual float64, bound float64) bool {
	switch op {
	case ">":
		return actual > bound
	case ">=":
		return actual >= bound
	case "<":
		return actual < bound
	case "<=":
		return actual <= bound
	default:
		return false
	}
}

// patternExpr extracts the inner expression of a "/pattern/" form. A lone "/"
// is a literal, not an empty pattern.
func patternExpr(s string) (string, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, "/") || !strings.HasSuffix(s, "/") {
		return "", false
	}
	return s[1 : len(s)-1], true
}

func isTypeKeyword(s string) bool {
	switch s {
	case KeywordString, KeywordNumber, KeywordBoolean, KeywordArray, KeywordObject:
		return true
	default:
		return false
	}
}

func typeKeywordHolds(keyword string, actual any) bool {
	switch keyword {
	case KeywordString:
		_, ok := actual.(string)
		return ok
	case KeywordNumber:
		_, ok := numberShape(actual)
		return ok
	case KeywordBoolean:
		_, ok := actual.(bool)
		return ok
	case KeywordArray:
		_, ok := actual.([]any)
		return ok
	case KeywordObject:
		_, ok := actual.(map[string]any)
		return ok
	default:
		return false
	}
}

// stringForm is the text a pattern matches against. Strings pass through
// unquoted; other values use their JSON text.
func stringForm(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}

func newMismatch(path string, expected any, actual any, reason string) *Mismatch {
	msg := fmt.Sprintf("field %q: expected %s got %s", path, valueAsString(expected), valueAsString(actual))
	if reason != "" {
		msg = fmt.Sprintf("field %q: %s", path, reason)
	}
	return &Mismatch{Field: path, Message: msg, Expected: expected, Actual: actual}
}

func valueAsString(value any) string {
	switch x := value.(type) {
	case string:
		return strconv.Quote(x)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	}
}
