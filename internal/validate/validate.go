package validate

import (
	"errors"
	"os"
	"time"

	"github.com/sensorlab-io/sensorlab/internal/capture"
	"github.com/sensorlab-io/sensorlab/internal/codes"
	"github.com/sensorlab-io/sensorlab/internal/expect"
	"github.com/sensorlab-io/sensorlab/internal/match"
	"github.com/sensorlab-io/sensorlab/internal/schema"
)

type CliError struct {
	Code    string
	Message string
	Path    string
}

func (e *CliError) Error() string {
	if e.Path == "" {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + " (" + e.Path + ")"
}

func IsCliError(err error, code string) bool {
	var e *CliError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Options name the two inputs of a validation run.
type Options struct {
	EventsPath string
	ExpectPath string
}

// Run validates a capture file against an expectation document. An error is
// always infrastructure (missing input, unparseable document); a verdict with
// ok=false is a validation outcome, not an error.
func Run(now time.Time, opts Options) (schema.VerdictV1, error) {
	doc, err := expect.ParseFile(opts.ExpectPath)
	if err != nil {
		if os.IsNotExist(err) {
			return schema.VerdictV1{}, &CliError{Code: codes.IO, Message: "expectation document not found", Path: opts.ExpectPath}
		}
		return schema.VerdictV1{}, &CliError{Code: codes.InvalidExpectation, Message: err.Error(), Path: opts.ExpectPath}
	}

	loaded, err := capture.LoadFile(opts.EventsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return schema.VerdictV1{}, &CliError{Code: codes.IO, Message: "events file not found", Path: opts.EventsPath}
		}
		return schema.VerdictV1{}, &CliError{Code: codes.IO, Message: "cannot read events file: " + err.Error(), Path: opts.EventsPath}
	}

	return Evaluate(now, opts, doc, loaded), nil
}

// Evaluate runs the matching pass over already-loaded inputs. It never fails:
// every requirement is checked even after the minimum-count check or an
// earlier requirement has already sunk the verdict, so one run yields the
// complete report.
func Evaluate(now time.Time, opts Options, doc expect.Document, loaded capture.LoadResult) schema.VerdictV1 {
	v := schema.VerdictV1{
		SchemaVersion:    schema.VerdictSchemaV1,
		OK:               true,
		EventsPath:       opts.EventsPath,
		ExpectPath:       opts.ExpectPath,
		CheckedAt:        now.UTC().Format(time.RFC3339Nano),
		EventsTotal:      len(loaded.Events),
		MinimumSatisfied: true,
		Warnings:         loaded.Warnings,
	}

	if doc.MinimumEvents != nil {
		v.MinimumEvents = doc.MinimumEvents
		v.MinimumSatisfied = len(loaded.Events) >= *doc.MinimumEvents
		if !v.MinimumSatisfied {
			v.OK = false
		}
	}

	v.RequirementsTotal = len(doc.Events)
	for i, req := range doc.Events {
		rr := checkRequirement(i, req, loaded.Events)
		if !rr.Satisfied {
			v.OK = false
			v.RequirementsFailed++
		}
		v.Requirements = append(v.Requirements, rr)
	}
	return v
}

// checkRequirement scans the capture sequence from the start for the first
// event of the requirement's type whose every required field holds.
// Requirements scan independently and may land on the same event. On failure
// the closest candidate is the same-type event with the fewest field
// mismatches, earliest on ties.
func checkRequirement(index int, req expect.Requirement, events []capture.Event) schema.RequirementResultV1 {
	rr := schema.RequirementResultV1{
		Index:     index + 1,
		EventType: req.EventType,
	}

	sawType := false
	var best *schema.CandidateV1
	bestCount := 0

	for i := range events {
		ev := &events[i]
		if ev.Type != req.EventType {
			continue
		}
		sawType = true
		mms := match.Satisfies(ev.Root, req.RequiredFields)
		if len(mms) == 0 {
			idx := i
			rr.Satisfied = true
			rr.MatchedEvent = &idx
			rr.MatchedLine = ev.Line
			return rr
		}
		if best == nil || len(mms) < bestCount {
			best = &schema.CandidateV1{Event: i, Line: ev.Line, Mismatches: toVerdictMismatches(mms)}
			bestCount = len(mms)
		}
	}

	if !sawType {
		rr.Reason = schema.ReasonNoEventsOfType
		return rr
	}
	rr.Reason = schema.ReasonFieldsMismatched
	rr.ClosestCandidate = best
	return rr
}

func toVerdictMismatches(mms []match.Mismatch) []schema.MismatchV1 {
	out := make([]schema.MismatchV1, 0, len(mms))
	for _, mm := range mms {
		out = append(out, schema.MismatchV1{
			Field:    mm.Field,
			Message:  mm.Message,
			Expected: mm.Expected,
			Actual:   mm.Actual,
		})
	}
	if len(out) > schema.MismatchListMaxV1 {
		out = out[:schema.MismatchListMaxV1]
	}
	return out
}
