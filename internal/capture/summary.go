package capture

import (
	"time"

	"github.com/sensorlab-io/sensorlab/internal/match"
	"github.com/sensorlab-io/sensorlab/internal/schema"
)

// Summarize aggregates a loaded capture in a single pass. Token sums only
// count events whose usage fields resolve numerically; success and streaming
// tallies only count real booleans.
func Summarize(eventsPath string, events []Event, warnings []schema.FindingV1) schema.CaptureSummaryV1 {
	s := schema.CaptureSummaryV1{
		SchemaVersion: schema.SummarySchemaV1,
		EventsPath:    eventsPath,
		EventsTotal:   len(events),
		EventsByType:  map[string]int64{},
		Providers:     map[string]int64{},
		Models:        map[string]int64{},
		Warnings:      warnings,
	}

	var minTS, maxTS time.Time
	for _, ev := range events {
		typ := ev.Type
		if typ == "" {
			typ = "unknown"
		}
		s.EventsByType[typ]++

		if name, ok := resolveString(ev.Root, "data.provider.name"); ok {
			s.Providers[name]++
		}
		if id, ok := resolveString(ev.Root, "data.model.id"); ok {
			s.Models[id]++
		}

		s.TotalTokens += resolveTokens(ev.Root, "data.usage.total_tokens")
		s.PromptTokens += resolveTokens(ev.Root, "data.usage.prompt_tokens")
		s.CompletionTokens += resolveTokens(ev.Root, "data.usage.completion_tokens")

		if v, ok := match.Resolve(ev.Root, "data.success"); ok {
			if b, ok := v.(bool); ok {
				if b {
					s.SuccessTotal++
				} else {
					s.FailureTotal++
				}
			}
		}
		if v, ok := match.Resolve(ev.Root, "data.streaming"); ok {
			if b, ok := v.(bool); ok && b {
				s.StreamingTotal++
			}
		}

		if raw, ok := resolveString(ev.Root, "timestamp"); ok {
			if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				if minTS.IsZero() || ts.Before(minTS) {
					minTS = ts
					s.FirstTimestamp = raw
				}
				if maxTS.IsZero() || ts.After(maxTS) {
					maxTS = ts
					s.LastTimestamp = raw
				}
			}
		}
	}

	if len(s.EventsByType) == 0 {
		s.EventsByType = nil
	}
	if len(s.Providers) == 0 {
		s.Providers = nil
	}
	if len(s.Models) == 0 {
		s.Models = nil
	}
	return s
}

func resolveString(root map[string]any, path string) (string, bool) {
	v, ok := match.Resolve(root, path)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", false
	}
	return str, true
}

func resolveTokens(root map[string]any, path string) int64 {
	v, ok := match.Resolve(root, path)
	if !ok {
		return 0
	}
	n, ok := match.Number(v)
	if !ok {
		return 0
	}
	return int64(n)
}
