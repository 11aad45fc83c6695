package match

import (
	"encoding/json"
	"strings"
	"testing"
)

func eventRoot(t *testing.T, raw string) map[string]any {
	t.Helper()
	var root map[string]any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return root
}

func TestResolve_WalksNestedMaps(t *testing.T) {
	t.Parallel()

	root := eventRoot(t, `{"event_type":"ai.request","data":{"provider":{"name":"openai"},"model":{"id":"gpt-4o-mini"},"null_field":null}}`)

	v, ok := Resolve(root, "data.provider.name")
	if !ok || v != "openai" {
		t.Fatalf("expected openai, got %v ok=%v", v, ok)
	}
	if v, ok := Resolve(root, "event_type"); !ok || v != "ai.request" {
		t.Fatalf("expected ai.request, got %v ok=%v", v, ok)
	}
	if _, ok := Resolve(root, "data.provider.missing"); ok {
		t.Fatalf("expected missing leaf to fail resolve")
	}
	if _, ok := Resolve(root, "data.provider.name.deeper"); ok {
		t.Fatalf("expected path through a string to fail resolve")
	}
	if _, ok := Resolve(root, "nope.provider"); ok {
		t.Fatalf("expected missing root segment to fail resolve")
	}

	// A literal null resolves; resolution and value are separate facts.
	v, ok = Resolve(root, "data.null_field")
	if !ok || v != nil {
		t.Fatalf("expected resolved null, got %v ok=%v", v, ok)
	}
}

func TestCheckField_Forms(t *testing.T) {
	t.Parallel()

	root := eventRoot(t, `{
		"event_type": "ai.response",
		"data": {
			"success": true,
			"provider": {"name": "openai"},
			"model": {"id": "gpt-4o-mini"},
			"usage": {"total_tokens": 42, "cost": "0.002"},
			"choices": [{"index": 0}],
			"body": "<html>",
			"count_word": "number"
		}
	}`)

	cases := []struct {
		name     string
		path     string
		expected any
		holds    bool
	}{
		{name: "literal_bool_true", path: "data.success", expected: true, holds: true},
		{name: "literal_bool_false", path: "data.success", expected: false, holds: false},
		{name: "literal_string", path: "data.provider.name", expected: "openai", holds: true},
		{name: "literal_string_case", path: "data.provider.name", expected: "OpenAI", holds: false},
		{name: "literal_int_vs_float", path: "data.usage.total_tokens", expected: 42, holds: true},
		{name: "literal_number_not_string", path: "data.usage.cost", expected: 0.002, holds: false},
		{name: "literal_missing_path", path: "data.usage.prompt_tokens", expected: 0, holds: false},

		{name: "gt_zero", path: "data.usage.total_tokens", expected: "> 0", holds: true},
		{name: "gt_hundred", path: "data.usage.total_tokens", expected: "> 100", holds: false},
		{name: "gte_exact", path: "data.usage.total_tokens", expected: ">= 42", holds: true},
		{name: "lte_exact_no_space", path: "data.usage.total_tokens", expected: "<=42", holds: true},
		{name: "lt_fails", path: "data.usage.total_tokens", expected: "< 42", holds: false},
		{name: "numeric_string_coerces", path: "data.usage.cost", expected: "> 0", holds: true},
		{name: "bool_is_not_numeric", path: "data.success", expected: "> 0", holds: false},
		{name: "comparison_on_missing", path: "data.usage.nope", expected: "> 0", holds: false},
		{name: "html_is_literal_not_comparison", path: "data.body", expected: "<html>", holds: true},

		{name: "pattern_prefix", path: "data.model.id", expected: "/gpt-4*/", holds: true},
		{name: "pattern_other_family", path: "data.model.id", expected: "/claude-*/", holds: false},
		{name: "pattern_anywhere", path: "data.model.id", expected: "/4o-mini/", holds: true},
		{name: "pattern_on_number", path: "data.usage.total_tokens", expected: "/^42$/", holds: true},
		{name: "pattern_on_missing", path: "data.usage.nope", expected: "/.*/", holds: false},
		{name: "lone_slash_is_literal", path: "data.model.id", expected: "/", holds: false},

		{name: "exists_present", path: "data.model.id", expected: "*", holds: true},
		{name: "exists_missing", path: "data.model.vendor", expected: "*", holds: false},

		{name: "type_string", path: "data.provider.name", expected: "string", holds: true},
		{name: "type_number", path: "data.usage.total_tokens", expected: "number", holds: true},
		{name: "type_number_rejects_bool", path: "data.success", expected: "number", holds: false},
		{name: "type_number_rejects_numeric_string", path: "data.usage.cost", expected: "number", holds: false},
		{name: "type_boolean", path: "data.success", expected: "boolean", holds: true},
		{name: "type_array", path: "data.choices", expected: "array", holds: true},
		{name: "type_object", path: "data.usage", expected: "object", holds: true},
		{name: "type_keyword_wins_over_literal", path: "data.count_word", expected: "number", holds: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mm := CheckField(root, tc.path, tc.expected)
			if tc.holds && mm != nil {
				t.Fatalf("expected match, got mismatch: %s", mm.Message)
			}
			if !tc.holds && mm == nil {
				t.Fatalf("expected mismatch, got match")
			}
		})
	}
}

func TestCheckField_ExistenceRejectsNull(t *testing.T) {
	t.Parallel()

	root := eventRoot(t, `{"data":{"error":null}}`)
	if mm := CheckField(root, "data.error", "*"); mm == nil {
		t.Fatalf("expected resolved null to fail the existence check")
	}
}

func TestCheckField_MismatchNamesFieldAndValues(t *testing.T) {
	t.Parallel()

	root := eventRoot(t, `{"data":{"model":{"id":"gpt-4o-mini"}}}`)
	mm := CheckField(root, "data.model.id", "/claude-*/")
	if mm == nil {
		t.Fatalf("expected mismatch")
	}
	if mm.Field != "data.model.id" {
		t.Fatalf("unexpected field: %q", mm.Field)
	}
	if !strings.Contains(mm.Message, `"data.model.id"`) || !strings.Contains(mm.Message, `"gpt-4o-mini"`) {
		t.Fatalf("message should name the field and the actual value, got: %s", mm.Message)
	}
	if mm.Actual != "gpt-4o-mini" {
		t.Fatalf("unexpected actual: %v", mm.Actual)
	}
}

func TestCheckField_InvalidPatternDegradesWithReason(t *testing.T) {
	t.Parallel()

	root := eventRoot(t, `{"data":{"model":{"id":"gpt-4o-mini"}}}`)
	mm := CheckField(root, "data.model.id", "/gpt-[/")
	if mm == nil {
		t.Fatalf("expected invalid pattern to be a mismatch, not a match")
	}
	if !strings.Contains(mm.Message, "invalid pattern") {
		t.Fatalf("expected reason in message, got: %s", mm.Message)
	}
}

func TestSatisfies_OrdersMismatchesByPath(t *testing.T) {
	t.Parallel()

	root := eventRoot(t, `{"event_type":"ai.response","data":{"success":false,"usage":{"total_tokens":1}}}`)
	required := map[string]any{
		"data.usage.total_tokens": "> 100",
		"data.success":            true,
		"event_type":              "ai.response",
	}

	got := Satisfies(root, required)
	if len(got) != 2 {
		t.Fatalf("expected 2 mismatches, got %d: %+v", len(got), got)
	}
	if got[0].Field != "data.success" || got[1].Field != "data.usage.total_tokens" {
		t.Fatalf("expected path-ordered mismatches, got: %q then %q", got[0].Field, got[1].Field)
	}
}

func TestSatisfies_EmptyRequiredAlwaysHolds(t *testing.T) {
	t.Parallel()

	if got := Satisfies(map[string]any{}, nil); got != nil {
		t.Fatalf("expected nil mismatches, got %+v", got)
	}
}

func TestNumber_Shapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{name: "float64", in: float64(1.5), want: 1.5, ok: true},
		{name: "int", in: 42, want: 42, ok: true},
		{name: "json_number", in: json.Number("33"), want: 33, ok: true},
		{name: "numeric_string", in: " 7 ", want: 7, ok: true},
		{name: "bool", in: true, ok: false},
		{name: "word", in: "seven", ok: false},
		{name: "nil", in: nil, ok: false},
		{name: "empty_string", in: "", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Number(tc.in)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCompilePattern_CachesAcrossCalls(t *testing.T) {
	t.Parallel()

	first, err := compilePattern(`^ai\.`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := compilePattern(`^ai\.`)
	if err != nil {
		t.Fatalf("compile again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached compiled pattern on the second call")
	}
	if _, err := compilePattern(`[`); err == nil {
		t.Fatalf("expected compile error for invalid pattern")
	}
	if _, err := compilePattern(`[`); err == nil {
		t.Fatalf("expected cached compile error for invalid pattern")
	}
}
