package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/sensorlab-io/sensorlab/internal/schema"
	"github.com/sensorlab-io/sensorlab/internal/store"
)

// RenderVerdict prints the human validation report. The shape is the stdout
// contract cookbook scripts grep, so lines here only change deliberately.
func RenderVerdict(w io.Writer, v schema.VerdictV1) {
	fmt.Fprintf(w, "Validating %s against %s\n", v.EventsPath, v.ExpectPath)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Loaded %d captured events\n", v.EventsTotal)
	fmt.Fprintf(w, "Checking %d expected patterns\n", v.RequirementsTotal)
	fmt.Fprintln(w)

	for _, warn := range v.Warnings {
		if warn.Path != "" && warn.Line > 0 {
			fmt.Fprintf(w, "WARNING %s: %s (%s:%d)\n", warn.Code, warn.Message, warn.Path, warn.Line)
		} else if warn.Path != "" {
			fmt.Fprintf(w, "WARNING %s: %s (%s)\n", warn.Code, warn.Message, warn.Path)
		} else {
			fmt.Fprintf(w, "WARNING %s: %s\n", warn.Code, warn.Message)
		}
	}
	if v.MinimumEvents != nil && !v.MinimumSatisfied {
		fmt.Fprintf(w, "FAIL: insufficient events: got %d of %d required\n", v.EventsTotal, *v.MinimumEvents)
	}
	if len(v.Warnings) > 0 || (v.MinimumEvents != nil && !v.MinimumSatisfied) {
		fmt.Fprintln(w)
	}

	for _, rr := range v.Requirements {
		typ := rr.EventType
		if typ == "" {
			typ = "unknown"
		}
		fmt.Fprintf(w, "[%d] Checking %s...\n", rr.Index, typ)
		if rr.Satisfied {
			fmt.Fprintln(w, "    PASS - Found matching event")
			continue
		}
		fmt.Fprintln(w, "    FAIL - No matching event found")
		switch rr.Reason {
		case schema.ReasonNoEventsOfType:
			fmt.Fprintf(w, "         - No events found with type '%s'\n", rr.EventType)
		default:
			if rr.ClosestCandidate != nil {
				fmt.Fprintf(w, "         - closest candidate: line %d\n", rr.ClosestCandidate.Line)
				for _, mm := range rr.ClosestCandidate.Mismatches {
					fmt.Fprintf(w, "         - %s\n", mm.Message)
				}
			}
		}
	}

	if len(v.Requirements) > 0 {
		fmt.Fprintln(w)
	}
	if v.OK {
		fmt.Fprintf(w, "SUCCESS: All %d expected events found\n", v.RequirementsTotal)
	} else {
		fmt.Fprintln(w, "FAILURE: Some expected events were not found")
	}
}

// RenderSummary prints the human form of a capture summary.
func RenderSummary(w io.Writer, s schema.CaptureSummaryV1) {
	fmt.Fprintf(w, "Capture summary: %s\n", s.EventsPath)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Events: %d\n", s.EventsTotal)
	for _, k := range sortedKeys(s.EventsByType) {
		fmt.Fprintf(w, "  %s: %d\n", k, s.EventsByType[k])
	}
	if len(s.Providers) > 0 {
		fmt.Fprintln(w, "Providers:")
		for _, k := range sortedKeys(s.Providers) {
			fmt.Fprintf(w, "  %s: %d\n", k, s.Providers[k])
		}
	}
	if len(s.Models) > 0 {
		fmt.Fprintln(w, "Models:")
		for _, k := range sortedKeys(s.Models) {
			fmt.Fprintf(w, "  %s: %d\n", k, s.Models[k])
		}
	}
	fmt.Fprintf(w, "Tokens: total %d (prompt %d, completion %d)\n", s.TotalTokens, s.PromptTokens, s.CompletionTokens)
	fmt.Fprintf(w, "Outcomes: %d success, %d failure, %d streaming\n", s.SuccessTotal, s.FailureTotal, s.StreamingTotal)
	if s.FirstTimestamp != "" {
		fmt.Fprintf(w, "Window: %s .. %s\n", s.FirstTimestamp, s.LastTimestamp)
	}
	for _, warn := range s.Warnings {
		if warn.Line > 0 {
			fmt.Fprintf(w, "WARNING %s: %s (line %d)\n", warn.Code, warn.Message, warn.Line)
		} else {
			fmt.Fprintf(w, "WARNING %s: %s\n", warn.Code, warn.Message)
		}
	}
}

// WriteVerdictAtomic persists a verdict next to the run's other artifacts.
func WriteVerdictAtomic(path string, v schema.VerdictV1) error {
	return store.WriteJSONAtomic(path, v)
}

func sortedKeys(in map[string]int64) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
