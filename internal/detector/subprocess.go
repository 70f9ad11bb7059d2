package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// SubprocessDetector runs the classifier script once per segment:
//
//	<command> <script> --mode analyze-video --video <file> --max-frames N --quiet
//
// and reads the last JSON line it prints. Debug output before it is ignored.
type SubprocessDetector struct {
	command   string
	script    string
	maxFrames int
	tempDir   string
	logger    *slog.Logger
}

func NewSubprocessDetector(command, script string, maxFrames int, logger *slog.Logger) *SubprocessDetector {
	if maxFrames <= 0 {
		maxFrames = 8
	}
	return &SubprocessDetector{
		command:   command,
		script:    script,
		maxFrames: maxFrames,
		logger:    logger,
	}
}

func (d *SubprocessDetector) Classify(ctx context.Context, segment []byte) (*Result, error) {
	f, err := os.CreateTemp(d.tempDir, "chunk-*.webm")
	if err != nil {
		return nil, fmt.Errorf("create segment file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(segment); err != nil {
		f.Close()
		return nil, fmt.Errorf("write segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close segment file: %w", err)
	}

	args := []string{
		"--mode", "analyze-video",
		"--video", path,
		"--max-frames", strconv.Itoa(d.maxFrames),
		"--quiet",
	}
	if d.script != "" {
		args = append([]string{d.script}, args...)
	}

	cmd := exec.CommandContext(ctx, d.command, args...)
	// Grandchildren may keep stdout open after the kill.
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result, parseErr := parseLastJSON(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			d.logger.Debug("Detector process failed", "error", runErr, "stderr", tail(stderr.Bytes(), 512))
			return nil, errors.Join(ErrDetectorFailed, runErr)
		}
		return nil, parseErr
	}
	return normalize(result)
}

func parseLastJSON(out []byte) (*Result, error) {
	lines := bytes.Split(out, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var r Result
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		return &r, nil
	}
	return nil, ErrBadOutput
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
