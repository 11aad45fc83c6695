package harness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/sensorlab-io/sensorlab/internal/schema"
)

// ExecResult summarizes one completed app command.
type ExecResult struct {
	ExitCode   int
	DurationMs int64

	OutPreview string
	ErrPreview string

	OutTruncated bool
	ErrTruncated bool
}

// boundedCapture keeps the first max bytes written and drops the rest.
type boundedCapture struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func (c *boundedCapture) Write(p []byte) (int, error) {
	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	_, _ = c.buf.Write(p)
	return len(p), nil
}

// runApp runs the cookbook command to completion, teeing full output to
// outFull/errFull while keeping bounded previews for run.json. A non-zero
// exit is a result, not an error; errors mean the command never ran.
func runApp(ctx context.Context, argv []string, dir string, outFull, errFull io.Writer) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{}, errors.New("missing app argv")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return ExecResult{}, err
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return ExecResult{}, err
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExecResult{}, err
	}

	outCap := &boundedCapture{max: schema.AppPreviewMaxBytesV1}
	errCap := &boundedCapture{max: schema.AppPreviewMaxBytesV1}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(teeWriter(outCap, outFull), outPipe)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(teeWriter(errCap, errFull), errPipe)
	}()

	// Drain the pipes before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	exitCode := 0
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			exitCode = ee.ExitCode()
		} else {
			return ExecResult{}, waitErr
		}
	}

	return ExecResult{
		ExitCode:     exitCode,
		DurationMs:   time.Since(start).Milliseconds(),
		OutPreview:   outCap.buf.String(),
		ErrPreview:   errCap.buf.String(),
		OutTruncated: outCap.truncated,
		ErrTruncated: errCap.truncated,
	}, nil
}

func teeWriter(capture, full io.Writer) io.Writer {
	if full == nil {
		return capture
	}
	return io.MultiWriter(capture, full)
}
