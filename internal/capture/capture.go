package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sensorlab-io/sensorlab/internal/codes"
	"github.com/sensorlab-io/sensorlab/internal/schema"
)

// Event is one parsed line of a capture file.
type Event struct {
	Line int            // 1-based line number in the capture file
	Type string         // event_type tag; empty when the line carries none
	Root map[string]any // full decoded object; field paths resolve from here
}

type LoadResult struct {
	Events   []Event
	Warnings []schema.FindingV1
}

// LoadFile reads a capture file in order. Blank lines are skipped; a line
// that does not decode as a JSON object becomes a warning and is excluded.
// The sensor occasionally emits partial lines when interrupted, and those
// must not kill validation; only I/O failure is an error here.
func LoadFile(path string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, err
	}
	defer func() { _ = f.Close() }()

	var res LoadResult
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), schema.EventLineMaxBytesV1)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var root map[string]any
		if err := json.Unmarshal(raw, &root); err != nil {
			res.Warnings = append(res.Warnings, schema.FindingV1{
				Code:    codes.WarnMalformedLine,
				Message: "line is not a valid json object",
				Path:    path,
				Line:    line,
			})
			continue
		}
		typ, _ := root["event_type"].(string)
		res.Events = append(res.Events, Event{Line: line, Type: typ, Root: root})
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			// The scanner cannot resync past an oversized line; keep what
			// parsed and flag the rest.
			res.Warnings = append(res.Warnings, schema.FindingV1{
				Code:    codes.WarnLineTooLong,
				Message: fmt.Sprintf("line exceeds %d bytes; remainder of file skipped", schema.EventLineMaxBytesV1),
				Path:    path,
				Line:    line + 1,
			})
			return res, nil
		}
		return LoadResult{}, err
	}
	return res, nil
}
